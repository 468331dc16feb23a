package reconcile

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/dnsdrift/dnsdrift/provider"
)

type mockClient struct {
	calls  []string
	failOn map[string]error
}

func (m *mockClient) ListRecords(ctx context.Context) ([]provider.Record, error) {
	m.calls = append(m.calls, "list")
	return nil, nil
}

func (m *mockClient) AddRecord(ctx context.Context, hostname, recordType, value, comment string) error {
	call := fmt.Sprintf("add %s %s %s", recordType, hostname, value)
	m.calls = append(m.calls, call)
	return m.failOn[call]
}

func (m *mockClient) RemoveRecord(ctx context.Context, hostname, recordType, value string) error {
	call := fmt.Sprintf("remove %s %s %s", recordType, hostname, value)
	m.calls = append(m.calls, call)
	return m.failOn[call]
}

func TestExecutorApply(t *testing.T) {
	tests := []struct {
		name          string
		plan          Plan
		failOn        map[string]error
		expectedCalls []string
		created       int
		deleted       int
		skipped       int
		failures      int
	}{
		{
			name: "create issues a single add",
			plan: Plan{Actions: []Action{
				{Kind: ActionCreate, Type: "A", Hostname: "example.com", IP: "203.0.113.5"},
			}},
			expectedCalls: []string{"add A example.com 203.0.113.5"},
			created:       1,
		},
		{
			name: "update deletes every stale record before creating",
			plan: Plan{Actions: []Action{
				{Kind: ActionUpdate, Type: "A", Hostname: "example.com", IP: "203.0.113.5", Stale: []string{"203.0.113.9", "203.0.113.10"}},
			}},
			expectedCalls: []string{
				"remove A example.com 203.0.113.9",
				"remove A example.com 203.0.113.10",
				"add A example.com 203.0.113.5",
			},
			created: 1,
			deleted: 2,
		},
		{
			name: "cleanup never creates",
			plan: Plan{Actions: []Action{
				{Kind: ActionCleanup, Type: "A", Hostname: "example.com", Stale: []string{"203.0.113.9"}},
			}},
			expectedCalls: []string{"remove A example.com 203.0.113.9"},
			deleted:       1,
		},
		{
			name: "skip makes no calls",
			plan: Plan{Actions: []Action{
				{Kind: ActionSkip, Type: "A", Hostname: "example.com"},
			}},
			expectedCalls: nil,
			skipped:       1,
		},
		{
			name: "failed delete does not halt the run",
			plan: Plan{Actions: []Action{
				{Kind: ActionUpdate, Type: "A", Hostname: "example.com", IP: "203.0.113.5", Stale: []string{"203.0.113.9"}},
				{Kind: ActionCreate, Type: "A", Hostname: "www.example.com", IP: "203.0.113.5"},
			}},
			failOn: map[string]error{
				"remove A example.com 203.0.113.9": provider.ErrNoSuchRecord,
			},
			expectedCalls: []string{
				"remove A example.com 203.0.113.9",
				"add A example.com 203.0.113.5",
				"add A www.example.com 203.0.113.5",
			},
			created:  2,
			failures: 1,
		},
		{
			name: "failed create recorded and run continues",
			plan: Plan{Actions: []Action{
				{Kind: ActionCreate, Type: "A", Hostname: "example.com", IP: "203.0.113.5"},
				{Kind: ActionCreate, Type: "A", Hostname: "www.example.com", IP: "203.0.113.5"},
			}},
			failOn: map[string]error{
				"add A example.com 203.0.113.5": provider.ErrRecordExists,
			},
			expectedCalls: []string{
				"add A example.com 203.0.113.5",
				"add A www.example.com 203.0.113.5",
			},
			created:  1,
			failures: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{failOn: tt.failOn}
			executor := NewExecutor(client, 0)

			results := executor.Apply(context.Background(), tt.plan)

			if !reflect.DeepEqual(client.calls, tt.expectedCalls) {
				t.Errorf("Expected calls %v but got %v", tt.expectedCalls, client.calls)
			}
			if len(results.Created) != tt.created {
				t.Errorf("Created mismatch: got %d, want %d", len(results.Created), tt.created)
			}
			if len(results.Deleted) != tt.deleted {
				t.Errorf("Deleted mismatch: got %d, want %d", len(results.Deleted), tt.deleted)
			}
			if results.Skipped != tt.skipped {
				t.Errorf("Skipped mismatch: got %d, want %d", results.Skipped, tt.skipped)
			}
			if len(results.Failures) != tt.failures {
				t.Errorf("Failures mismatch: got %d, want %d", len(results.Failures), tt.failures)
			}
		})
	}
}

func TestExecutorCanceledContext(t *testing.T) {
	client := &mockClient{}
	executor := NewExecutor(client, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := Plan{Actions: []Action{
		{Kind: ActionCreate, Type: "A", Hostname: "example.com", IP: "203.0.113.5"},
		{Kind: ActionCreate, Type: "A", Hostname: "www.example.com", IP: "203.0.113.5"},
	}}
	results := executor.Apply(ctx, plan)

	if len(client.calls) != 0 {
		t.Errorf("Expected no calls after cancellation, got %v", client.calls)
	}
	if len(results.Created) != 0 {
		t.Errorf("Expected no created records, got %d", len(results.Created))
	}
}

func TestExecutorFailureError(t *testing.T) {
	client := &mockClient{failOn: map[string]error{
		"add A example.com 203.0.113.5": provider.WrapOp("add", provider.ErrNoSuchZone),
	}}
	executor := NewExecutor(client, 0)

	plan := Plan{Actions: []Action{
		{Kind: ActionCreate, Type: "A", Hostname: "example.com", IP: "203.0.113.5"},
	}}
	results := executor.Apply(context.Background(), plan)

	if len(results.Failures) != 1 {
		t.Fatalf("Expected 1 failure, got %d", len(results.Failures))
	}
	failure := results.Failures[0]
	if failure.Op != "add" || failure.Hostname != "example.com" {
		t.Errorf("Unexpected failure identity: %+v", failure)
	}
	wrapped := provider.WrapOp("add", provider.ErrNoSuchZone)
	if !errors.Is(wrapped, provider.ErrNoSuchZone) {
		t.Error("Expected wrapped error to match sentinel")
	}
	if failure.Error != wrapped.Error() {
		t.Errorf("Expected error text %q, got %q", wrapped.Error(), failure.Error)
	}
}
