// Command run-node runs a single routing lab node process: it loads a
// topology and names file, attaches to a transport, and drives one of
// the three routing algorithms until the control shell exits.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/netsim/routelab/internal/config"
	"github.com/netsim/routelab/internal/identity"
	"github.com/netsim/routelab/internal/logging"
	"github.com/netsim/routelab/internal/metrics"
	"github.com/netsim/routelab/internal/node"
	"github.com/netsim/routelab/internal/routing"
	"github.com/netsim/routelab/internal/transport"
)

var (
	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-node",
		Short: "Run one distributed routing lab node",
	}
	cmd.AddCommand(runNodeCmd())
	return cmd
}

type nodeFlags struct {
	name      string
	topoPath  string
	namesPath string
	algo      string
	proto     string
	workers   int
	logLevel  string
	logFormat string
	redisAddr string
	redisPass string
}

func runNodeCmd() *cobra.Command {
	var flags nodeFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a node and its control shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.name, "name", "", "node id, must appear in the topology file (required)")
	f.StringVar(&flags.topoPath, "topo", "", "path to topo-*.json (required)")
	f.StringVar(&flags.namesPath, "names", "", "path to names-*.json (required)")
	f.StringVar(&flags.algo, "algo", "flooding", "routing algorithm: flooding|dv|linkstate")
	f.StringVar(&flags.proto, "proto", "tcp", "transport adapter: tcp|pubsub")
	f.IntVar(&flags.workers, "workers", node.DefaultWorkers, "bounded per-packet handler pool size")
	f.StringVar(&flags.logLevel, "log-level", "info", "debug|info|warn|error")
	f.StringVar(&flags.logFormat, "log-format", "text", "text|json")
	f.StringVar(&flags.redisAddr, "redis-addr", "localhost:6379", "pub/sub adapter: redis address")
	f.StringVar(&flags.redisPass, "redis-pass", "", "pub/sub adapter: redis password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("topo")
	_ = cmd.MarkFlagRequired("names")

	return cmd
}

func runNode(flags nodeFlags) error {
	logger := logging.NewLogger(flags.logLevel, flags.logFormat)

	self, err := identity.Parse(flags.name)
	if err != nil {
		return fmt.Errorf("invalid --name: %w", err)
	}

	topo, err := config.LoadTopology(flags.topoPath)
	if err != nil {
		return err
	}
	names, err := config.LoadNames(flags.namesPath)
	if err != nil {
		return err
	}
	if !topo.HasNode(self) {
		fmt.Fprintf(os.Stderr, "ERROR: node %s not found in topology\n", self)
		os.Exit(1)
	}
	neighbors := topo.Neighbors(self)

	t, err := buildTransport(flags, self, names)
	if err != nil {
		return err
	}
	defer t.Close()

	m := metrics.NewMetrics()
	n := node.New(self, neighbors, t, logger, m)
	n.Workers = flags.workers
	n.Router = buildRouter(flags.algo, self, neighbors, t, logger, m, n.DeliverLocal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- n.Run(ctx) }()

	fmt.Printf("%s node %s running %s. neighbors: %v\n",
		styleOK.Render("started"), self, flags.algo, neighbors)

	shellDone := make(chan struct{})
	go func() {
		defer close(shellDone)
		runShell(ctx, n, neighbors)
	}()

	go drainDelivered(ctx, n)

	select {
	case <-shellDone:
		cancel()
	case <-ctx.Done():
	}

	return <-runDone
}

func buildTransport(flags nodeFlags, self identity.NodeID, names config.Names) (transport.Transport, error) {
	switch flags.proto {
	case "pubsub":
		return transport.NewPubSubTransport(flags.redisAddr, flags.redisPass, 0, nil), nil
	case "tcp":
		addr, ok := names.Address(self)
		if !ok {
			return nil, fmt.Errorf("no address registered for %s in names file", self)
		}
		addrBook := make(map[string]string, len(names))
		for id, a := range names {
			addrBook[string(id)] = a
		}
		return transport.NewTCPTransport(addr, addrBook, nil), nil
	default:
		return nil, fmt.Errorf("unknown --proto %q, want tcp|pubsub", flags.proto)
	}
}

func buildRouter(algo string, self identity.NodeID, neighbors []identity.NodeID, t transport.Transport, logger *slog.Logger, m *metrics.Metrics, deliver routing.DeliverFunc) routing.Router {
	switch algo {
	case "dv":
		return routing.NewDVRouter(self, neighbors, t, logger, m, deliver)
	case "linkstate":
		return routing.NewLSRRouter(self, neighbors, t, logger, m, deliver)
	default:
		return routing.NewFloodRouter(self, neighbors, t, logger, m, deliver)
	}
}

func drainDelivered(ctx context.Context, n *node.Node) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.Delivered:
			fmt.Printf("%s [%s -> me] %s\n", styleOK.Render("MSG"), msg.From, msg.Text)
		}
	}
}

func runShell(ctx context.Context, n *node.Node, neighbors []identity.NodeID) {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	started := time.Now()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "exit":
			return
		case line == "peers":
			fmt.Printf("neighbors: %v\n", neighbors)
		case line == "table":
			printTable(n.TableSnapshot(), started)
		case strings.HasPrefix(line, "send "):
			parts := strings.SplitN(line, " ", 3)
			if len(parts) < 3 {
				fmt.Println("usage: send <dest> <message>")
				continue
			}
			dest, text := identity.NodeID(parts[1]), parts[2]
			if err := n.Send(ctx, dest, text); err != nil {
				fmt.Println(styleWarn.Render(fmt.Sprintf("send failed: %v", err)))
			}
		default:
			if interactive {
				fmt.Println("commands: send <dest> <msg>, peers, table, exit")
			}
		}
	}
}

func printTable(snap routing.TableSnapshot, started time.Time) {
	fmt.Printf("routing table (%s), running since %s\n", snap.Kind, humanize.Time(started))
	for _, e := range snap.Entries {
		if e.NextHop == "" {
			fmt.Printf("  %s: %d\n", e.Dest, e.Cost)
			continue
		}
		fmt.Printf("  %s: cost=%d via %s\n", e.Dest, e.Cost, e.NextHop)
	}
}
