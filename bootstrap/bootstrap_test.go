package bootstrap

import "testing"

func TestResolveNodesPassesThroughNonDNSEntries(t *testing.T) {
	r := NewResolver("127.0.0.1:53")
	out, err := r.ResolveNodes([]string{"mocknet://seed1", "tcp://10.0.0.1:4000"})
	if err != nil {
		t.Fatalf("ResolveNodes: %v", err)
	}
	if len(out) != 2 || out[0] != "mocknet://seed1" || out[1] != "tcp://10.0.0.1:4000" {
		t.Fatalf("expected entries unchanged, got %v", out)
	}
}

func TestResolveNodesEmptyInput(t *testing.T) {
	r := NewResolver("127.0.0.1:53")
	out, err := r.ResolveNodes(nil)
	if err != nil {
		t.Fatalf("ResolveNodes: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no entries, got %v", out)
	}
}
