package reconcile

import (
	"net/netip"

	"github.com/dnsdrift/dnsdrift/desired"
	"github.com/dnsdrift/dnsdrift/provider"
)

// Reconcile computes the minimal edit script that converges the provider's
// record set to the desired entries, all pointing at ip. The snapshot is
// treated as immutable; one action is emitted per entry, in entry order.
//
// The decision never deletes a record that is already correct and never
// issues a create when a correct record exists, keeping the mutating call
// count minimal under the panel's hourly quota.
func Reconcile(ip netip.Addr, snapshot []provider.Record, entries []desired.Entry) Plan {
	plan := Plan{
		Actions: make([]Action, 0, len(entries)),
	}

	want := ip.String()
	for _, entry := range entries {
		action := decide(want, snapshot, entry)
		plan.Actions = append(plan.Actions, action)
		plan.EstimatedCalls += action.Calls()
	}
	return plan
}

// decide applies the decision table for one entry. With M the matching
// records and correct the members of M already holding the resolved IP:
//
//	|M| == 0                 create
//	|correct| == 0, |M| > 0  update, all of M is stale
//	|M| > |correct| > 0      cleanup, stale duplicates only
//	|M| == |correct| > 0     skip
func decide(want string, snapshot []provider.Record, entry desired.Entry) Action {
	action := Action{
		Type:     entry.Type,
		Hostname: entry.Hostname,
	}

	matched := 0
	correct := 0
	var stale []string
	seen := make(map[string]bool)
	for _, r := range snapshot {
		if r.Hostname != entry.Hostname || r.Type != entry.Type {
			continue
		}
		matched++
		if r.Value == want {
			correct++
			continue
		}
		if !seen[r.Value] {
			seen[r.Value] = true
			stale = append(stale, r.Value)
		}
	}

	switch {
	case matched == 0:
		action.Kind = ActionCreate
		action.IP = want
	case correct == 0:
		action.Kind = ActionUpdate
		action.IP = want
		action.Stale = stale
	case matched > correct:
		action.Kind = ActionCleanup
		action.Stale = stale
	default:
		action.Kind = ActionSkip
	}
	return action
}
