package reconcile

import (
	"net/netip"
	"reflect"
	"testing"

	"github.com/dnsdrift/dnsdrift/desired"
	"github.com/dnsdrift/dnsdrift/provider"
)

func rec(hostname, recordType, value string) provider.Record {
	return provider.Record{
		AccountID: "acct-1",
		Zone:      "example.com",
		Hostname:  hostname,
		Type:      recordType,
		Value:     value,
		Editable:  true,
	}
}

func TestReconcile(t *testing.T) {
	ip := netip.MustParseAddr("203.0.113.5")

	tests := []struct {
		name     string
		snapshot []provider.Record
		entries  []desired.Entry
		expected []Action
		calls    int
	}{
		{
			name:     "create when no matching record",
			snapshot: []provider.Record{},
			entries:  []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionCreate, Type: "A", Hostname: "example.com", IP: "203.0.113.5"},
			},
			calls: 1,
		},
		{
			name: "create ignores records for other hostname or type",
			snapshot: []provider.Record{
				rec("other.example.com", "A", "203.0.113.9"),
				rec("example.com", "TXT", "hello"),
			},
			entries: []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionCreate, Type: "A", Hostname: "example.com", IP: "203.0.113.5"},
			},
			calls: 1,
		},
		{
			name: "update single stale record",
			snapshot: []provider.Record{
				rec("example.com", "A", "203.0.113.9"),
			},
			entries: []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionUpdate, Type: "A", Hostname: "example.com", IP: "203.0.113.5", Stale: []string{"203.0.113.9"}},
			},
			calls: 2,
		},
		{
			name: "update enumerates every stale duplicate",
			snapshot: []provider.Record{
				rec("example.com", "A", "203.0.113.9"),
				rec("example.com", "A", "203.0.113.10"),
				rec("example.com", "A", "203.0.113.11"),
			},
			entries: []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionUpdate, Type: "A", Hostname: "example.com", IP: "203.0.113.5", Stale: []string{"203.0.113.9", "203.0.113.10", "203.0.113.11"}},
			},
			calls: 4,
		},
		{
			name: "update deduplicates repeated stale values",
			snapshot: []provider.Record{
				rec("example.com", "A", "203.0.113.9"),
				rec("example.com", "A", "203.0.113.9"),
			},
			entries: []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionUpdate, Type: "A", Hostname: "example.com", IP: "203.0.113.5", Stale: []string{"203.0.113.9"}},
			},
			calls: 2,
		},
		{
			name: "cleanup stale duplicates next to a correct record",
			snapshot: []provider.Record{
				rec("example.com", "A", "203.0.113.5"),
				rec("example.com", "A", "203.0.113.9"),
			},
			entries: []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionCleanup, Type: "A", Hostname: "example.com", Stale: []string{"203.0.113.9"}},
			},
			calls: 1,
		},
		{
			name: "cleanup lists every stale value without a create",
			snapshot: []provider.Record{
				rec("example.com", "A", "203.0.113.8"),
				rec("example.com", "A", "203.0.113.5"),
				rec("example.com", "A", "203.0.113.9"),
			},
			entries: []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionCleanup, Type: "A", Hostname: "example.com", Stale: []string{"203.0.113.8", "203.0.113.9"}},
			},
			calls: 2,
		},
		{
			name: "skip when the only matching record is correct",
			snapshot: []provider.Record{
				rec("example.com", "A", "203.0.113.5"),
			},
			entries: []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionSkip, Type: "A", Hostname: "example.com"},
			},
			calls: 0,
		},
		{
			name: "skip when every matching record is correct",
			snapshot: []provider.Record{
				rec("example.com", "A", "203.0.113.5"),
				rec("example.com", "A", "203.0.113.5"),
			},
			entries: []desired.Entry{{Type: "A", Hostname: "example.com"}},
			expected: []Action{
				{Kind: ActionSkip, Type: "A", Hostname: "example.com"},
			},
			calls: 0,
		},
		{
			name: "actions preserve entry order and sum estimates",
			snapshot: []provider.Record{
				rec("www.example.com", "A", "203.0.113.9"),
				rec("example.com", "A", "203.0.113.5"),
			},
			entries: []desired.Entry{
				{Type: "A", Hostname: "example.com"},
				{Type: "A", Hostname: "www.example.com"},
				{Type: "CNAME", Hostname: "blog.example.com"},
			},
			expected: []Action{
				{Kind: ActionSkip, Type: "A", Hostname: "example.com"},
				{Kind: ActionUpdate, Type: "A", Hostname: "www.example.com", IP: "203.0.113.5", Stale: []string{"203.0.113.9"}},
				{Kind: ActionCreate, Type: "CNAME", Hostname: "blog.example.com", IP: "203.0.113.5"},
			},
			calls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Reconcile(ip, tt.snapshot, tt.entries)

			if !reflect.DeepEqual(plan.Actions, tt.expected) {
				t.Errorf("Expected actions %+v but got %+v", tt.expected, plan.Actions)
			}
			if plan.EstimatedCalls != tt.calls {
				t.Errorf("Expected %d estimated calls but got %d", tt.calls, plan.EstimatedCalls)
			}
		})
	}
}

func TestReconcileEmptyPlan(t *testing.T) {
	ip := netip.MustParseAddr("203.0.113.5")
	snapshot := []provider.Record{rec("example.com", "A", "203.0.113.5")}
	entries := []desired.Entry{{Type: "A", Hostname: "example.com"}}

	plan := Reconcile(ip, snapshot, entries)
	if !plan.IsEmpty() {
		t.Errorf("Expected empty plan, got %d estimated calls", plan.EstimatedCalls)
	}
}

// Running the reconciler against the snapshot a successful execution would
// produce must yield skip for every entry.
func TestReconcileIdempotence(t *testing.T) {
	ip := netip.MustParseAddr("203.0.113.5")
	snapshot := []provider.Record{
		rec("example.com", "A", "203.0.113.9"),
		rec("www.example.com", "A", "203.0.113.5"),
		rec("www.example.com", "A", "203.0.113.8"),
	}
	entries := []desired.Entry{
		{Type: "A", Hostname: "example.com"},
		{Type: "A", Hostname: "www.example.com"},
		{Type: "AAAA", Hostname: "v6.example.com"},
	}

	plan := Reconcile(ip, snapshot, entries)
	if plan.EstimatedCalls == 0 {
		t.Fatal("Expected a non-empty first plan")
	}

	after := applyToSnapshot(snapshot, plan)
	replan := Reconcile(ip, after, entries)

	for _, action := range replan.Actions {
		if action.Kind != ActionSkip {
			t.Errorf("Expected skip for %s %s after convergence, got %s", action.Type, action.Hostname, action.Kind)
		}
	}
	if replan.EstimatedCalls != 0 {
		t.Errorf("Expected 0 estimated calls after convergence, got %d", replan.EstimatedCalls)
	}
}

// applyToSnapshot simulates a fully successful execution: planned deletes
// removed, planned creates added.
func applyToSnapshot(snapshot []provider.Record, plan Plan) []provider.Record {
	var after []provider.Record
	for _, r := range snapshot {
		retired := false
		for _, action := range plan.Actions {
			if action.Hostname != r.Hostname || action.Type != r.Type {
				continue
			}
			for _, stale := range action.Stale {
				if stale == r.Value {
					retired = true
				}
			}
		}
		if !retired {
			after = append(after, r)
		}
	}
	for _, action := range plan.Actions {
		if action.Kind == ActionCreate || action.Kind == ActionUpdate {
			after = append(after, rec(action.Hostname, action.Type, action.IP))
		}
	}
	return after
}
