package credits

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for demos and tests.
// WithinTx holds a single lock for the whole unit of work and stages writes,
// applying them only if fn returns nil.
type MemoryStore struct {
	mu       sync.Mutex
	officers map[string]Officer
	ledger   []Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{officers: make(map[string]Officer)}
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:   m,
		staged:  make(map[string]Officer),
		deleted: make(map[string]bool),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryStore) GetOfficer(_ context.Context, officerID string) (Officer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.officers[officerID]
	if !ok {
		return Officer{}, ErrOfficerNotFound
	}
	return o, nil
}

func (m *MemoryStore) ListOfficers(_ context.Context, f OfficerFilter) ([]Officer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search := strings.ToLower(f.Search)
	var matched []Officer
	for _, o := range m.officers {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(o.Name), search) &&
			!strings.Contains(o.Mobile, search) &&
			!strings.Contains(strings.ToLower(o.BadgeNumber), search) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return window(matched, f.Offset, f.Limit), len(matched), nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, f TransactionFilter) ([]Transaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search := strings.ToLower(f.Search)
	var matched []Transaction
	for _, t := range m.ledger {
		if f.OfficerID != "" && t.OfficerID != f.OfficerID {
			continue
		}
		if f.Action != "" && t.Action != f.Action {
			continue
		}
		if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.CreatedAt.After(f.To) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Remarks), search) &&
			!strings.Contains(strings.ToLower(t.PaymentReference), search) {
			continue
		}
		matched = append(matched, t)
	}
	sortNewestFirst(matched)
	return window(matched, f.Offset, f.Limit), len(matched), nil
}

// Corrupt overwrites an officer's cached balance without a ledger entry.
// It exists to exercise drift detection.
func (m *MemoryStore) Corrupt(officerID string, remaining int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.officers[officerID]; ok {
		o.CreditsRemaining = remaining
		m.officers[officerID] = o
	}
}

type memoryTx struct {
	store   *MemoryStore
	staged  map[string]Officer
	deleted map[string]bool
	inserts []Transaction
}

func (t *memoryTx) officer(officerID string) (Officer, bool) {
	if t.deleted[officerID] {
		return Officer{}, false
	}
	if o, ok := t.staged[officerID]; ok {
		return o, true
	}
	o, ok := t.store.officers[officerID]
	return o, ok
}

func (t *memoryTx) LockOfficer(_ context.Context, officerID string) (Officer, error) {
	o, ok := t.officer(officerID)
	if !ok {
		return Officer{}, ErrOfficerNotFound
	}
	return o, nil
}

func (t *memoryTx) WriteBalance(_ context.Context, officerID string, remaining, total int64, at time.Time) error {
	o, ok := t.officer(officerID)
	if !ok {
		return ErrOfficerNotFound
	}
	o.CreditsRemaining = remaining
	o.TotalCredits = total
	o.UpdatedAt = at
	t.staged[officerID] = o
	return nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, tr Transaction) error {
	if _, ok := t.officer(tr.OfficerID); !ok {
		return ErrOfficerNotFound
	}
	t.inserts = append(t.inserts, tr)
	return nil
}

func (t *memoryTx) entries(officerID string, fn func(Transaction) bool) {
	for _, tr := range t.store.ledger {
		if tr.OfficerID == officerID && !fn(tr) {
			return
		}
	}
	for _, tr := range t.inserts {
		if tr.OfficerID == officerID && !fn(tr) {
			return
		}
	}
}

func (t *memoryTx) FindByIdempotencyKey(_ context.Context, officerID, key string) (Transaction, bool, error) {
	var found Transaction
	var ok bool
	t.entries(officerID, func(tr Transaction) bool {
		if tr.IdempotencyKey == key {
			found, ok = tr, true
			return false
		}
		return true
	})
	return found, ok, nil
}

func (t *memoryTx) SumCredits(_ context.Context, officerID string) (int64, int, error) {
	var sum int64
	var n int
	t.entries(officerID, func(tr Transaction) bool {
		sum += tr.Credits
		n++
		return true
	})
	return sum, n, nil
}

func (t *memoryTx) CountTransactions(ctx context.Context, officerID string) (int, error) {
	_, n, err := t.SumCredits(ctx, officerID)
	return n, err
}

func (t *memoryTx) CreateOfficer(_ context.Context, o Officer) error {
	if _, ok := t.officer(o.ID); ok {
		return ErrDuplicateMobile
	}
	for id, existing := range t.store.officers {
		if t.deleted[id] {
			continue
		}
		if existing.Mobile == o.Mobile {
			return ErrDuplicateMobile
		}
	}
	for _, existing := range t.staged {
		if existing.Mobile == o.Mobile {
			return ErrDuplicateMobile
		}
	}
	t.staged[o.ID] = o
	return nil
}

func (t *memoryTx) UpdateOfficerStatus(_ context.Context, officerID string, status OfficerStatus, at time.Time) error {
	o, ok := t.officer(officerID)
	if !ok {
		return ErrOfficerNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	t.staged[officerID] = o
	return nil
}

func (t *memoryTx) UpdateOfficerProfile(_ context.Context, o Officer) error {
	cur, ok := t.officer(o.ID)
	if !ok {
		return ErrOfficerNotFound
	}
	if o.Mobile != cur.Mobile {
		for id, existing := range t.store.officers {
			if id == o.ID || t.deleted[id] {
				continue
			}
			if staged, ok := t.staged[id]; ok {
				existing = staged
			}
			if existing.Mobile == o.Mobile {
				return ErrDuplicateMobile
			}
		}
		for id, existing := range t.staged {
			if id != o.ID && existing.Mobile == o.Mobile {
				return ErrDuplicateMobile
			}
		}
	}
	cur.Name = o.Name
	cur.Mobile = o.Mobile
	cur.Email = o.Email
	cur.Department = o.Department
	cur.Rank = o.Rank
	cur.BadgeNumber = o.BadgeNumber
	cur.UpdatedAt = o.UpdatedAt
	t.staged[o.ID] = cur
	return nil
}

func (t *memoryTx) DeleteOfficer(_ context.Context, officerID string) error {
	if _, ok := t.officer(officerID); !ok {
		return ErrOfficerNotFound
	}
	delete(t.staged, officerID)
	t.deleted[officerID] = true
	return nil
}

func (t *memoryTx) commit() {
	for id := range t.deleted {
		delete(t.store.officers, id)
	}
	for id, o := range t.staged {
		t.store.officers[id] = o
	}
	t.store.ledger = append(t.store.ledger, t.inserts...)
}

// sortNewestFirst orders by created_at desc, then id desc.
func sortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
