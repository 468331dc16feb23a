package state

import (
	"github.com/dnsdrift/dnsdrift/provider"
)

// Snapshot labels for the two dumps a run persists.
const (
	LabelBefore = "before"
	LabelAfter  = "after"
)

// Snapshot is one full record listing captured from the panel, persisted
// so the operator can diff the pre- and post-run state. It is never read
// back by the reconciler.
type Snapshot struct {
	Label   string            `json:"label"`
	TakenAt int64             `json:"takenAt"`
	Records []provider.Record `json:"records"`
}
