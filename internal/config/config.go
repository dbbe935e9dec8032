// Package config loads the JSON topology and names files that describe
// a routing lab mesh.
package config

import (
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/netsim/routelab/internal/identity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrConfigError is the sentinel wrapped by every load failure: a
// missing file, invalid JSON, or a wrong/missing top-level "type" tag.
var ErrConfigError = errors.New("config error")

// Topology maps each node id to its directly adjacent neighbor ids, as
// read from a topo-*.json file's "config" object.
type Topology map[identity.NodeID][]identity.NodeID

// Names maps each node id to its transport address: a "host:port"
// string for the direct TCP adapter, or an opaque channel name for the
// pub/sub adapter.
type Names map[identity.NodeID]string

// rawFile is the shared shape of both topo-*.json and names-*.json: a
// "type" discriminator plus a "config" object.
type rawFile struct {
	Type   string          `json:"type"`
	Config jsoniter.RawMessage `json:"config"`
}

// LoadTopology reads and validates a topo-*.json file.
func LoadTopology(path string) (Topology, error) {
	raw, err := loadRawFile(path, "topo")
	if err != nil {
		return nil, err
	}
	var topo Topology
	if err := json.Unmarshal(raw.Config, &topo); err != nil {
		return nil, fmt.Errorf("%w: %s: invalid topology config: %v", ErrConfigError, path, err)
	}
	return topo, nil
}

// LoadNames reads and validates a names-*.json file.
func LoadNames(path string) (Names, error) {
	raw, err := loadRawFile(path, "names")
	if err != nil {
		return nil, err
	}
	var names Names
	if err := json.Unmarshal(raw.Config, &names); err != nil {
		return nil, fmt.Errorf("%w: %s: invalid names config: %v", ErrConfigError, path, err)
	}
	return names, nil
}

func loadRawFile(path, expectType string) (rawFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rawFile{}, fmt.Errorf("%w: %s: %v", ErrConfigError, path, err)
	}

	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return rawFile{}, fmt.Errorf("%w: %s: %v", ErrConfigError, path, err)
	}
	if raw.Type != expectType {
		return rawFile{}, fmt.Errorf("%w: %s: expected type=%q, got %q", ErrConfigError, path, expectType, raw.Type)
	}
	return raw, nil
}

// Neighbors returns the neighbor list for id, or nil if id is absent.
func (t Topology) Neighbors(id identity.NodeID) []identity.NodeID {
	return t[id]
}

// HasNode reports whether id appears as a key in the topology.
func (t Topology) HasNode(id identity.NodeID) bool {
	_, ok := t[id]
	return ok
}

// Adjacency returns the topology as a plain map, the shape
// internal/graph.FromAdjacency expects.
func (t Topology) Adjacency() map[identity.NodeID][]identity.NodeID {
	return map[identity.NodeID][]identity.NodeID(t)
}

// Address returns the transport address registered for id.
func (n Names) Address(id identity.NodeID) (string, bool) {
	addr, ok := n[id]
	return addr, ok
}
