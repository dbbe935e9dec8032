package identity

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    NodeID
		wantErr bool
	}{
		{"A", "A", false},
		{"  B  ", "B", false},
		{"", "", true},
		{"has space", "", true},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error, got nil", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsBroadcast(t *testing.T) {
	if !IsBroadcast("all") {
		t.Error("expected \"all\" to be a broadcast destination")
	}
	if IsBroadcast("A") {
		t.Error("did not expect \"A\" to be a broadcast destination")
	}
}

func TestSet(t *testing.T) {
	s := NewSet([]NodeID{"A", "B", "C"})
	if !s.Contains("A") || !s.Contains("B") || !s.Contains("C") {
		t.Fatal("expected set to contain all inserted ids")
	}
	if s.Contains("D") {
		t.Fatal("did not expect set to contain D")
	}
	if len(s.Slice()) != 3 {
		t.Fatalf("expected 3 members, got %d", len(s.Slice()))
	}
}
