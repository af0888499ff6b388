package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/singleflight"

	"pfolio-api/pkg/fault"
)

// Persistence receives encoded snapshot documents after they are committed to
// the in-memory store. Writes run asynchronously; a failure is logged, never
// surfaced to the caller.
type Persistence interface {
	SaveSnapshot(ctx context.Context, id string, doc []byte) error
}

// Transform mutates a derived payload in place. The base snapshot passed in is
// a copy of the stored one.
type Transform func(base *Snapshot, draft *Payload) error

// Store holds snapshots in memory. Reads are concurrent; snapshots are frozen
// on Create and handed out as deep copies.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot

	deriving singleflight.Group

	persist Persistence
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPersistence attaches an async persistence sink.
func WithPersistence(p Persistence) Option {
	return func(s *Store) { s.persist = p }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore builds an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		snapshots: make(map[string]*Snapshot),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create freezes a payload into a new snapshot and returns it.
func (s *Store) Create(ctx context.Context, payload *Payload) (*Snapshot, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	snap := s.freeze(payload, NewID(s.now()), "", nil)

	s.mu.Lock()
	s.snapshots[snap.ID] = snap
	s.mu.Unlock()

	s.persistAsync(ctx, snap)
	return snap.Clone(), nil
}

// Get returns a copy of the snapshot or a NotFoundError.
func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &fault.NotFoundError{Kind: "snapshot", ID: id}
	}
	return snap.Clone(), nil
}

// List returns all snapshot ids, sorted. The timestamp prefix makes the order
// chronological.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Derive builds a new snapshot from baseID by applying transform to a copy of
// the base. The base snapshot is never mutated. Concurrent derivations of the
// same id collapse into one computation, and an already-derived id is returned
// as-is, so deterministic scenario ids are idempotent.
func (s *Store) Derive(ctx context.Context, baseID, id string, adjustments map[string]float64, transform Transform) (*Snapshot, error) {
	if id == "" {
		return nil, fmt.Errorf("snapshot: derive needs a target id")
	}

	v, err, _ := s.deriving.Do(id, func() (any, error) {
		s.mu.RLock()
		existing, ok := s.snapshots[id]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}

		base, err := s.Get(ctx, baseID)
		if err != nil {
			return nil, err
		}

		draft := base.Payload()
		if err := transform(base, draft); err != nil {
			return nil, err
		}
		if err := draft.Validate(); err != nil {
			return nil, err
		}
		snap := s.freeze(draft, id, baseID, adjustments)

		s.mu.Lock()
		s.snapshots[id] = snap
		s.mu.Unlock()

		s.persistAsync(ctx, snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot).Clone(), nil
}

// Restore inserts an already-frozen snapshot, typically rehydrated from
// persistent storage at startup. It does not write back to persistence. An
// existing id is left untouched.
func (s *Store) Restore(snap *Snapshot) {
	if snap == nil || snap.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snap.ID]; ok {
		return
	}
	s.snapshots[snap.ID] = snap.Clone()
}

func (s *Store) freeze(p *Payload, id, baseID string, adjustments map[string]float64) *Snapshot {
	snap := &Snapshot{
		Meta: Meta{
			ID:          id,
			CreatedAt:   s.now().UTC(),
			HorizonDays: p.HorizonDays,
			Tickers:     p.tickers(),
			BaseID:      baseID,
			Adjustments: cloneFloats(adjustments),
		},
		Mu:        cloneFloats(p.Mu),
		Sigma:     cloneFloats(p.Sigma),
		Sentiment: cloneFloats(p.Sentiment),
	}
	if p.Returns != nil {
		snap.Returns = make(map[string][]float64, len(p.Returns))
		for t, r := range p.Returns {
			snap.Returns[t] = append([]float64(nil), r...)
		}
	}
	return snap
}

func (s *Store) persistAsync(ctx context.Context, snap *Snapshot) {
	if s.persist == nil {
		return
	}
	doc, err := Encode(snap)
	if err != nil {
		logx.Errorf("snapshot: encode %s for persistence: %v", snap.ID, err)
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.persist.SaveSnapshot(pctx, snap.ID, doc); err != nil {
			logx.Errorf("snapshot: persist %s: %v", snap.ID, err)
		}
	}()
}
