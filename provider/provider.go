package provider

import (
	"context"
	"errors"
	"fmt"
)

// Client is the minimal surface the rest of the tool needs from the DNS
// provider. All three operations are keyed by the shared secret carried by
// the concrete implementation.
type Client interface {
	ListRecords(ctx context.Context) ([]Record, error)
	AddRecord(ctx context.Context, hostname, recordType, value, comment string) error
	RemoveRecord(ctx context.Context, hostname, recordType, value string) error
}

// Record is one row of the provider's record listing. Only Hostname, Type
// and Value participate in reconciliation; the remaining columns are carried
// for the operator snapshots.
type Record struct {
	AccountID string `json:"accountId"`
	Zone      string `json:"zone"`
	Hostname  string `json:"hostname"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Comment   string `json:"comment"`
	Editable  bool   `json:"editable"`
}

// recordTypes is the set of record types the desired list may reference.
// The panel accepts MX as well, but this tool never manipulates it.
var recordTypes = map[string]bool{
	"A":     true,
	"AAAA":  true,
	"CNAME": true,
	"NS":    true,
	"NAPTR": true,
	"SRV":   true,
	"TXT":   true,
}

// ValidType reports whether t is a record type this tool is allowed to manage.
func ValidType(t string) bool {
	return recordTypes[t]
}

// Common errors returned by provider operations.
var (
	// ErrQueryFailed indicates the record listing could not be fetched or
	// the panel reported an error status for it.
	ErrQueryFailed = errors.New("record query failed")

	// ErrRecordExists indicates an add was rejected because an identical
	// record is already published. The panel requires removing it first.
	ErrRecordExists = errors.New("record already exists")

	// ErrInvalidType indicates the panel rejected the record type.
	ErrInvalidType = errors.New("invalid record type")

	// ErrNoSuchZone indicates the hostname does not belong to any zone on
	// the account.
	ErrNoSuchZone = errors.New("no such zone")

	// ErrNoSuchRecord indicates a remove targeted a record that does not
	// exist.
	ErrNoSuchRecord = errors.New("no such record")

	// ErrUnauthorized indicates the shared secret was rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// OpError wraps a provider failure with the operation that produced it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// WrapOp attaches operation context to a provider error.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
