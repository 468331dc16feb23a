package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dnsdrift/dnsdrift/metrics"
	"github.com/dnsdrift/dnsdrift/provider"
)

const snapshotPrefix = "snapshot:"

// ErrNoSnapshot indicates no snapshot has been stored under a label yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

type Manager interface {
	SaveSnapshot(ctx context.Context, label string, records []provider.Record) error
	LoadSnapshot(ctx context.Context, label string) (Snapshot, error)
	Close() error
}

type badgerManager struct {
	db      *badger.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(path string, metrics *metrics.Metrics) (Manager, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	m := &badgerManager{db: db, metrics: metrics, now: time.Now}
	return m, nil
}

func (m *badgerManager) SaveSnapshot(ctx context.Context, label string, records []provider.Record) error {
	snapshot := Snapshot{
		Label:   label,
		TakenAt: m.now().Unix(),
		Records: records,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		m.metrics.IncBadgerRequest("write", false)
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotPrefix+label), data)
	})
	m.metrics.IncBadgerRequest("write", err == nil)
	return err
}

func (m *badgerManager) LoadSnapshot(ctx context.Context, label string) (Snapshot, error) {
	var snapshot Snapshot

	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotPrefix + label))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNoSnapshot, label)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snapshot)
		})
	})
	m.metrics.IncBadgerRequest("read", err == nil)
	return snapshot, err
}

func (m *badgerManager) Close() error {
	return m.db.Close()
}
