package reconcile

// ActionKind tags what the reconciler decided for one desired entry.
type ActionKind string

const (
	// ActionCreate publishes a new record; nothing matched the entry.
	ActionCreate ActionKind = "create"
	// ActionUpdate retires every stale match, then publishes the new value.
	ActionUpdate ActionKind = "update"
	// ActionCleanup retires stale duplicates; a correct record already
	// exists so no create is issued.
	ActionCleanup ActionKind = "cleanup"
	// ActionSkip means every matching record already has the correct value.
	ActionSkip ActionKind = "skip"
)

// Action is the reconciler's decision for a single desired entry.
type Action struct {
	Kind     ActionKind
	Type     string
	Hostname string

	// IP is the value to publish. Set for create and update.
	IP string

	// Stale holds the values to delete, in snapshot order without
	// duplicates. Set for update and cleanup.
	Stale []string
}

// Calls is the number of mutating provider calls this action will spend.
func (a Action) Calls() int {
	switch a.Kind {
	case ActionCreate:
		return 1
	case ActionUpdate:
		return len(a.Stale) + 1
	case ActionCleanup:
		return len(a.Stale)
	}
	return 0
}

// Plan is the ordered action list for a run plus its total call estimate,
// used to respect the panel's hourly quota.
type Plan struct {
	Actions        []Action
	EstimatedCalls int
}

// IsEmpty reports whether the plan requires no mutating calls.
func (p Plan) IsEmpty() bool {
	return p.EstimatedCalls == 0
}

// Results summarizes what the executor actually did.
type Results struct {
	Created  []OperationResult
	Deleted  []OperationResult
	Skipped  int
	Failures []OperationResult
}

// OperationResult identifies one provider call and, for failures, the
// provider's error text.
type OperationResult struct {
	Hostname string
	Type     string
	Value    string
	Op       string
	Error    string
}
