package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/dnsdrift/dnsdrift/provider"
)

// recordComment is written into the panel's comment column for records this
// tool creates.
const recordComment = "managed by dnsdrift"

// Executor applies a plan through the provider client, pacing mutating
// calls with a fixed delay to stay inside the hourly quota.
type Executor struct {
	client provider.Client
	delay  time.Duration

	madeCall bool
}

func NewExecutor(client provider.Client, delay time.Duration) *Executor {
	return &Executor{
		client: client,
		delay:  delay,
	}
}

// Apply executes every action in plan order. Within an action, all stale
// deletions complete before the creation is attempted; the panel rejects a
// create while a record with the same subject and type exists. A failed
// provider call is recorded and the run continues, since each action
// targets an independent entry.
func (e *Executor) Apply(ctx context.Context, plan Plan) Results {
	results := Results{}

	for _, action := range plan.Actions {
		switch action.Kind {
		case ActionSkip:
			slog.Debug("Record already correct", "hostname", action.Hostname, "type", action.Type)
			results.Skipped++
			continue
		case ActionCreate, ActionUpdate, ActionCleanup:
			e.applyAction(ctx, action, &results)
		}
		if ctx.Err() != nil {
			slog.Warn("Execution interrupted", "error", ctx.Err())
			return results
		}
	}
	return results
}

func (e *Executor) applyAction(ctx context.Context, action Action, results *Results) {
	for _, value := range action.Stale {
		if err := e.pace(ctx); err != nil {
			return
		}
		op := OperationResult{
			Hostname: action.Hostname,
			Type:     action.Type,
			Value:    value,
			Op:       "remove",
		}
		if err := e.client.RemoveRecord(ctx, action.Hostname, action.Type, value); err != nil {
			slog.Error("Failed to delete record", "hostname", action.Hostname, "type", action.Type, "value", value, "error", err)
			op.Error = err.Error()
			results.Failures = append(results.Failures, op)
			continue
		}
		results.Deleted = append(results.Deleted, op)
	}

	if action.Kind == ActionCleanup {
		return
	}

	if err := e.pace(ctx); err != nil {
		return
	}
	op := OperationResult{
		Hostname: action.Hostname,
		Type:     action.Type,
		Value:    action.IP,
		Op:       "add",
	}
	if err := e.client.AddRecord(ctx, action.Hostname, action.Type, action.IP, recordComment); err != nil {
		slog.Error("Failed to create record", "hostname", action.Hostname, "type", action.Type, "value", action.IP, "error", err)
		op.Error = err.Error()
		results.Failures = append(results.Failures, op)
		return
	}
	results.Created = append(results.Created, op)
}

// pace sleeps the configured delay before every mutating call after the
// first, honoring context cancellation.
func (e *Executor) pace(ctx context.Context) error {
	if !e.madeCall {
		e.madeCall = true
		return ctx.Err()
	}
	if e.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
