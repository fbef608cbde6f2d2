package credits

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pickme-intel/pkg/logger"
)

type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestService(t *testing.T, opts ...Option) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	clock := &stepClock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), step: time.Second}
	base := []Option{WithClock(clock.Now), WithLogger(logger.Discard())}
	return NewService(store, append(base, opts...)...), store
}

func openOfficer(t *testing.T, svc *Service, mobile string, grant int64) Officer {
	t.Helper()
	o, _, err := svc.OpenAccount(context.Background(), Officer{Name: "Inspector Rao", Mobile: mobile}, grant, Metadata{ProcessedBy: "admin-1"})
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	return o
}

func requireBalance(t *testing.T, svc *Service, officerID string, remaining, total int64) {
	t.Helper()
	o, err := svc.Balance(context.Background(), officerID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if o.CreditsRemaining != remaining || o.TotalCredits != total {
		t.Fatalf("expected %d/%d, got %d/%d", remaining, total, o.CreditsRemaining, o.TotalCredits)
	}
}

func requireConsistent(t *testing.T, svc *Service, officerID string) Reconciliation {
	t.Helper()
	rec, err := svc.Reconcile(context.Background(), officerID)
	if err != nil {
		t.Fatalf("Reconcile: %v (%+v)", err, rec)
	}
	if !rec.Consistent {
		t.Fatalf("expected consistent ledger, got %+v", rec)
	}
	return rec
}

func TestLedger_TopUpAndDeductScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 50)
	requireBalance(t, svc, o.ID, 50, 50)

	res, err := svc.Grant(ctx, o.ID, ActionTopUp, 20, Metadata{PaymentMode: "UPI", PaymentReference: "UPI-7781"})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if res.PreviousBalance != 50 || res.NewBalance != 70 || res.TotalCredits != 70 {
		t.Fatalf("unexpected grant result: %+v", res)
	}
	if res.Transaction.Credits != 20 || res.Transaction.Action != ActionTopUp {
		t.Fatalf("unexpected entry: %+v", res.Transaction)
	}
	requireBalance(t, svc, o.ID, 70, 70)

	_, err = svc.Deduct(ctx, o.ID, 100, Metadata{})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	requireBalance(t, svc, o.ID, 70, 70)
	page, err := svc.OfficerHistory(ctx, o.ID, 1, 0)
	if err != nil {
		t.Fatalf("OfficerHistory: %v", err)
	}
	if page.Pagination.Total != 2 {
		t.Fatalf("rejected deduction must not be recorded, got %d entries", page.Pagination.Total)
	}

	res, err = svc.Deduct(ctx, o.ID, 70, Metadata{})
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if res.Transaction.Credits != -70 || res.NewBalance != 0 || res.TotalCredits != 70 {
		t.Fatalf("unexpected deduct result: %+v", res)
	}
	requireBalance(t, svc, o.ID, 0, 70)

	rec := requireConsistent(t, svc, o.ID)
	if rec.Entries != 3 || rec.ComputedBalance != 0 {
		t.Fatalf("unexpected reconciliation: %+v", rec)
	}
}

func TestGrant_RefundDoesNotRaiseTotal(t *testing.T) {
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 10)

	res, err := svc.Grant(context.Background(), o.ID, ActionRefund, 4, Metadata{Remarks: "failed lookup"})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if res.NewBalance != 14 || res.TotalCredits != 10 {
		t.Fatalf("refund must raise balance only, got %+v", res)
	}

	res, err = svc.Grant(context.Background(), o.ID, ActionRenewal, 6, Metadata{})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if res.NewBalance != 20 || res.TotalCredits != 16 {
		t.Fatalf("renewal must raise both, got %+v", res)
	}
}

func TestGrant_RejectsInvalidArgs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 0)

	if _, err := svc.Grant(ctx, "", ActionTopUp, 5, Metadata{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation (missing officer), got %v", err)
	}
	if _, err := svc.Grant(ctx, o.ID, ActionDeduction, 5, Metadata{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation (deduction via grant), got %v", err)
	}
	if _, err := svc.Grant(ctx, o.ID, Action("Bonus"), 5, Metadata{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation (unknown action), got %v", err)
	}
	if _, err := svc.Grant(ctx, o.ID, ActionTopUp, 0, Metadata{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Grant(ctx, "missing", ActionTopUp, 5, Metadata{}); !errors.Is(err, ErrOfficerNotFound) {
		t.Fatalf("expected ErrOfficerNotFound, got %v", err)
	}
	if _, err := svc.Deduct(ctx, o.ID, -3, Metadata{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Deduct(ctx, "missing", 1, Metadata{}); !errors.Is(err, ErrOfficerNotFound) {
		t.Fatalf("expected ErrOfficerNotFound, got %v", err)
	}
}

func TestDeduct_DefaultsMetadata(t *testing.T) {
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 5)

	res, err := svc.Deduct(context.Background(), o.ID, 2, Metadata{ProcessedBy: "admin-1"})
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	tr := res.Transaction
	if tr.Action != ActionDeduction || tr.PaymentMode != "Manual Adjustment" || tr.Remarks != "Manual credit deduction" {
		t.Fatalf("unexpected defaults: %+v", tr)
	}
	if tr.ProcessedBy != "admin-1" {
		t.Fatalf("processed_by not recorded: %+v", tr)
	}
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 10)

	if _, err := svc.Adjust(ctx, o.ID, 5, Metadata{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing remarks, got %v", err)
	}
	if _, err := svc.Adjust(ctx, o.ID, 0, Metadata{Remarks: "noop"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	res, err := svc.Adjust(ctx, o.ID, 5, Metadata{Remarks: "missed top-up"})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.NewBalance != 15 || res.TotalCredits != 10 || res.Transaction.Action != ActionAdjustment {
		t.Fatalf("unexpected adjust: %+v", res)
	}

	if _, err := svc.Adjust(ctx, o.ID, -16, Metadata{Remarks: "too much"}); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	res, err = svc.Adjust(ctx, o.ID, -3, Metadata{Remarks: "duplicate renewal", CorrectTotal: true})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.NewBalance != 12 || res.TotalCredits != 7 || res.Transaction.Credits != -3 {
		t.Fatalf("unexpected corrected adjust: %+v", res)
	}
	requireConsistent(t, svc, o.ID)
}

func TestLedger_BalanceAlwaysEqualsLedgerSum(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 50)

	ops := []func() error{
		func() error { _, err := svc.Grant(ctx, o.ID, ActionTopUp, 20, Metadata{}); return err },
		func() error { _, err := svc.Deduct(ctx, o.ID, 7, Metadata{}); return err },
		func() error { _, err := svc.Deduct(ctx, o.ID, 500, Metadata{}); return err },
		func() error { _, err := svc.Grant(ctx, o.ID, ActionRefund, 2, Metadata{}); return err },
		func() error { _, err := svc.Adjust(ctx, o.ID, -10, Metadata{Remarks: "correction"}); return err },
		func() error { _, err := svc.Deduct(ctx, o.ID, 55, Metadata{}); return err },
		func() error { _, err := svc.Deduct(ctx, o.ID, 1, Metadata{}); return err },
	}
	for i, op := range ops {
		err := op()
		if err != nil && !errors.Is(err, ErrInsufficientCredits) {
			t.Fatalf("op %d: %v", i, err)
		}
		rec := requireConsistent(t, svc, o.ID)
		if rec.CachedBalance < 0 {
			t.Fatalf("op %d: negative balance %d", i, rec.CachedBalance)
		}
	}
	requireBalance(t, svc, o.ID, 0, 70)
}

type faultyStore struct {
	*MemoryStore
	failWrite  error
	failInsert error
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return f.MemoryStore.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return fn(ctx, faultyTx{Tx: tx, s: f})
	})
}

type faultyTx struct {
	Tx
	s *faultyStore
}

func (t faultyTx) WriteBalance(ctx context.Context, officerID string, remaining, total int64, at time.Time) error {
	if t.s.failWrite != nil {
		return t.s.failWrite
	}
	return t.Tx.WriteBalance(ctx, officerID, remaining, total, at)
}

func (t faultyTx) InsertTransaction(ctx context.Context, tr Transaction) error {
	if t.s.failInsert != nil {
		return t.s.failInsert
	}
	return t.Tx.InsertTransaction(ctx, tr)
}

func TestFailureInjection_BalanceWriteRollsBackEntry(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{MemoryStore: NewMemoryStore()}
	svc := NewService(fs, WithLogger(logger.Discard()))
	o := openOfficer(t, svc, "9876543210", 50)

	fs.failWrite = errors.New("disk full")
	_, err := svc.Deduct(ctx, o.ID, 10, Metadata{})
	if !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "write balance" || se.OfficerID != o.ID || se.TransactionID == "" {
		t.Fatalf("unexpected store error detail: %#v", err)
	}

	fs.failWrite = nil
	requireBalance(t, svc, o.ID, 50, 50)
	rec := requireConsistent(t, svc, o.ID)
	if rec.Entries != 1 {
		t.Fatalf("failed deduction must leave no entry, got %d", rec.Entries)
	}
}

func TestFailureInjection_InsertFailureLeavesBalance(t *testing.T) {
	fs := &faultyStore{MemoryStore: NewMemoryStore()}
	svc := NewService(fs, WithLogger(logger.Discard()))
	o := openOfficer(t, svc, "9876543210", 50)

	fs.failInsert = errors.New("connection reset")
	if _, err := svc.Grant(context.Background(), o.ID, ActionTopUp, 5, Metadata{}); !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
	fs.failInsert = nil
	requireBalance(t, svc, o.ID, 50, 50)
	requireConsistent(t, svc, o.ID)
}

func TestFailureInjection_OpenAccountIsAtomic(t *testing.T) {
	fs := &faultyStore{MemoryStore: NewMemoryStore(), failWrite: errors.New("boom")}
	svc := NewService(fs, WithLogger(logger.Discard()))

	_, _, err := svc.OpenAccount(context.Background(), Officer{Name: "SI Mehta", Mobile: "9123456780"}, 50, Metadata{})
	if !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
	page, err := svc.ListOfficers(context.Background(), OfficerQuery{})
	if err != nil {
		t.Fatalf("ListOfficers: %v", err)
	}
	if page.Pagination.Total != 0 {
		t.Fatalf("officer must not exist after failed open, got %d", page.Pagination.Total)
	}
}

func TestIdempotency_ReplayReturnsOriginalEntry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 50)

	first, err := svc.Deduct(ctx, o.ID, 10, Metadata{IdempotencyKey: "req-1"})
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	again, err := svc.Deduct(ctx, o.ID, 10, Metadata{IdempotencyKey: "req-1"})
	if err != nil {
		t.Fatalf("Deduct replay: %v", err)
	}
	if !again.Replayed || again.Transaction.ID != first.Transaction.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Transaction.ID, again)
	}
	if again.NewBalance != 40 {
		t.Fatalf("replay must report original new balance, got %d", again.NewBalance)
	}
	requireBalance(t, svc, o.ID, 40, 50)

	// Same key on a different officer is a different request.
	other := openOfficer(t, svc, "9876543211", 50)
	res, err := svc.Deduct(ctx, other.ID, 10, Metadata{IdempotencyKey: "req-1"})
	if err != nil || res.Replayed {
		t.Fatalf("expected fresh entry for other officer, got %+v, %v", res, err)
	}
}

func TestIdempotency_KeyReusedForDifferentOperationConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 50)

	if _, err := svc.Grant(ctx, o.ID, ActionTopUp, 20, Metadata{IdempotencyKey: "k1"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	if _, err := svc.Deduct(ctx, o.ID, 30, Metadata{IdempotencyKey: "k1"}); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict for deduct, got %v", err)
	}
	if _, err := svc.Deduct(ctx, o.ID, 20, Metadata{IdempotencyKey: "k1"}); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict for same amount, got %v", err)
	}
	if _, err := svc.Grant(ctx, o.ID, ActionRefund, 20, Metadata{IdempotencyKey: "k1"}); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict for other action, got %v", err)
	}
	if _, err := svc.Grant(ctx, o.ID, ActionTopUp, 25, Metadata{IdempotencyKey: "k1"}); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict for other amount, got %v", err)
	}
	requireBalance(t, svc, o.ID, 70, 70)

	res, err := svc.Grant(ctx, o.ID, ActionTopUp, 20, Metadata{IdempotencyKey: "k1"})
	if err != nil || !res.Replayed {
		t.Fatalf("expected replay of matching request, got %+v, %v", res, err)
	}
	rec := requireConsistent(t, svc, o.ID)
	if rec.Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", rec.Entries)
	}
}

func TestGrant_RejectsBalanceOverflow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 50)

	if _, err := svc.Grant(ctx, o.ID, ActionTopUp, math.MaxInt64, Metadata{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Grant(ctx, o.ID, ActionRefund, math.MaxInt64-49, Metadata{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for refund, got %v", err)
	}
	if _, err := svc.Adjust(ctx, o.ID, math.MaxInt64, Metadata{Remarks: "bulk"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for adjust, got %v", err)
	}
	if _, err := svc.Adjust(ctx, o.ID, math.MinInt64, Metadata{Remarks: "bulk"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for minimum adjust, got %v", err)
	}
	requireBalance(t, svc, o.ID, 50, 50)

	// A refund up to the limit is still representable.
	res, err := svc.Grant(ctx, o.ID, ActionRefund, math.MaxInt64-50, Metadata{})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if res.NewBalance != math.MaxInt64 || res.TotalCredits != 50 {
		t.Fatalf("unexpected result: %+v", res)
	}
	requireConsistent(t, svc, o.ID)
}

func TestLedger_EntryTimestampsFollowApplyOrder(t *testing.T) {
	ctx := context.Background()
	var armed atomic.Bool
	entered := make(chan struct{})
	release := make(chan struct{})
	svc, _ := newTestService(t, WithIDGenerator(func() string {
		if armed.CompareAndSwap(true, false) {
			close(entered)
			<-release
		}
		return newEntryID()
	}))
	o := openOfficer(t, svc, "9876543210", 50)
	armed.Store(true)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.Deduct(ctx, o.ID, 10, Metadata{})
	}()
	<-entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = svc.Deduct(ctx, o.ID, 5, Metadata{})
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("deduct %d: %v", i, err)
		}
	}

	cur, err := svc.Balance(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	page, err := svc.OfficerHistory(ctx, o.ID, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	txs := page.Transactions
	if len(txs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(txs))
	}
	if txs[0].NewBalance != cur.CreditsRemaining {
		t.Fatalf("newest entry shows %d, balance is %d", txs[0].NewBalance, cur.CreditsRemaining)
	}
	for i := 0; i+1 < len(txs); i++ {
		if txs[i].PreviousBalance != txs[i+1].NewBalance {
			t.Fatalf("balance chain broken at %d: %+v then %+v", i, txs[i+1], txs[i])
		}
	}
}

func TestReconcile_DetectsDrift(t *testing.T) {
	svc, store := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 50)

	store.Corrupt(o.ID, 45)
	rec, err := svc.Reconcile(context.Background(), o.ID)
	if !errors.Is(err, ErrConsistencyViolation) {
		t.Fatalf("expected ErrConsistencyViolation, got %v", err)
	}
	if rec.Consistent || rec.ComputedBalance != 50 || rec.CachedBalance != 45 || rec.Drift != -5 {
		t.Fatalf("unexpected report: %+v", rec)
	}

	if _, err := svc.Reconcile(context.Background(), "missing"); !errors.Is(err, ErrOfficerNotFound) {
		t.Fatalf("expected ErrOfficerNotFound, got %v", err)
	}
}

func TestOpenAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	o, seed, err := svc.OpenAccount(ctx, Officer{Name: "ASI Khan", Mobile: "+919812345678", Rank: "ASI"}, 0, Metadata{})
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if seed != nil {
		t.Fatalf("zero grant must not write a seed entry")
	}
	if o.Status != OfficerStatusActive || o.CreditsRemaining != 0 {
		t.Fatalf("unexpected officer: %+v", o)
	}
	requireConsistent(t, svc, o.ID)

	_, _, err = svc.OpenAccount(ctx, Officer{Name: "Duplicate", Mobile: "+919812345678"}, 10, Metadata{})
	if !errors.Is(err, ErrDuplicateMobile) {
		t.Fatalf("expected ErrDuplicateMobile, got %v", err)
	}

	o2, seed, err := svc.OpenAccount(ctx, Officer{Name: "Constable Das", Mobile: "9000000001"}, 50, Metadata{})
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if seed == nil || seed.Action != ActionRenewal || seed.Credits != 50 || seed.PreviousBalance != 0 {
		t.Fatalf("unexpected seed: %+v", seed)
	}
	if o2.CreditsRemaining != 50 || o2.TotalCredits != 50 {
		t.Fatalf("unexpected balances: %+v", o2)
	}

	bad := []Officer{
		{Name: "X", Mobile: "9000000002"},
		{Name: "Valid Name", Mobile: "not-a-phone"},
		{Name: "Valid Name", Mobile: "9000000003", Status: "Retired"},
	}
	for _, b := range bad {
		if _, _, err := svc.OpenAccount(ctx, b, 0, Metadata{}); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", b, err)
		}
	}
	if _, _, err := svc.OpenAccount(ctx, Officer{Name: "Valid Name", Mobile: "9000000004"}, -1, Metadata{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCloseAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	withLedger := openOfficer(t, svc, "9876543210", 50)
	if err := svc.CloseAccount(ctx, withLedger.ID); !errors.Is(err, ErrOfficerHasLedger) {
		t.Fatalf("expected ErrOfficerHasLedger, got %v", err)
	}
	requireConsistent(t, svc, withLedger.ID)

	archived, err := svc.SetStatus(ctx, withLedger.ID, OfficerStatusInactive)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if archived.Status != OfficerStatusInactive || archived.CreditsRemaining != 50 {
		t.Fatalf("unexpected archived officer: %+v", archived)
	}

	empty := openOfficer(t, svc, "9876543211", 0)
	if err := svc.CloseAccount(ctx, empty.ID); err != nil {
		t.Fatalf("CloseAccount: %v", err)
	}
	if _, err := svc.Balance(ctx, empty.ID); !errors.Is(err, ErrOfficerNotFound) {
		t.Fatalf("expected deleted officer to be gone, got %v", err)
	}
	if err := svc.CloseAccount(ctx, empty.ID); !errors.Is(err, ErrOfficerNotFound) {
		t.Fatalf("expected ErrOfficerNotFound, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, withLedger.ID, "Retired"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a := openOfficer(t, svc, "9876543210", 50)
	b := openOfficer(t, svc, "9876543211", 0)

	name, dept := "  Inspector R. Rao ", "Cyber Cell"
	before, after, err := svc.UpdateProfile(ctx, a.ID, ProfileUpdate{Name: &name, Department: &dept})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if before.Name != "Inspector Rao" || after.Name != "Inspector R. Rao" || after.Department != dept {
		t.Fatalf("unexpected profile change: %+v -> %+v", before, after)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("expected updated_at to advance, got %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	requireBalance(t, svc, a.ID, 50, 50)

	stored, err := svc.Balance(ctx, a.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if stored.Name != after.Name || stored.Department != dept || stored.Mobile != a.Mobile {
		t.Fatalf("profile not persisted: %+v", stored)
	}

	short, badMobile, taken := "R", "12", b.Mobile
	if _, _, err := svc.UpdateProfile(ctx, a.ID, ProfileUpdate{Name: &short}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for short name, got %v", err)
	}
	if _, _, err := svc.UpdateProfile(ctx, a.ID, ProfileUpdate{Mobile: &badMobile}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad mobile, got %v", err)
	}
	if _, _, err := svc.UpdateProfile(ctx, a.ID, ProfileUpdate{Mobile: &taken}); !errors.Is(err, ErrDuplicateMobile) {
		t.Fatalf("expected ErrDuplicateMobile, got %v", err)
	}
	if _, _, err := svc.UpdateProfile(ctx, "missing", ProfileUpdate{Name: &name}); !errors.Is(err, ErrOfficerNotFound) {
		t.Fatalf("expected ErrOfficerNotFound, got %v", err)
	}

	same := a.Mobile
	if _, _, err := svc.UpdateProfile(ctx, a.ID, ProfileUpdate{Mobile: &same}); err != nil {
		t.Fatalf("keeping the same mobile should succeed, got %v", err)
	}
}

func TestOfficerStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithCreditPrice(3))

	o := openOfficer(t, svc, "9876543210", 50)
	other := openOfficer(t, svc, "9876543211", 10)
	if _, err := svc.Grant(ctx, o.ID, ActionTopUp, 20, Metadata{}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if _, err := svc.Deduct(ctx, o.ID, 5, Metadata{}); err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if _, err := svc.Deduct(ctx, other.ID, 7, Metadata{}); err != nil {
		t.Fatalf("Deduct: %v", err)
	}

	st, err := svc.OfficerStats(ctx, o.ID, Range{})
	if err != nil {
		t.Fatalf("OfficerStats: %v", err)
	}
	if st.CreditsRemaining != 65 || st.TotalCredits != 70 || st.Name != o.Name {
		t.Fatalf("unexpected balance in stats: %+v", st)
	}
	want := Stats{TotalCreditsIssued: 70, TotalCreditsUsed: 5, TotalTransactions: 3, Renewals: 1, TopUps: 1, Deductions: 1, EstimatedRevenue: 15}
	if st.Ledger != want {
		t.Fatalf("expected %+v, got %+v", want, st.Ledger)
	}

	if _, err := svc.OfficerStats(ctx, "missing", Range{}); !errors.Is(err, ErrOfficerNotFound) {
		t.Fatalf("expected ErrOfficerNotFound, got %v", err)
	}
}

func TestHistory_OrderingTiesByDescendingID(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	seq := 0
	svc, _ := newTestService(t,
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
	)
	o := openOfficer(t, svc, "9876543210", 10)
	for i := 0; i < 4; i++ {
		if _, err := svc.Deduct(ctx, o.ID, 1, Metadata{}); err != nil {
			t.Fatalf("Deduct: %v", err)
		}
	}

	page, err := svc.History(ctx, HistoryQuery{OfficerID: o.ID})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	txs := page.Transactions
	if len(txs) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].CreatedAt.After(txs[i-1].CreatedAt) {
			t.Fatalf("created_at increased at %d", i)
		}
		if txs[i].ID >= txs[i-1].ID {
			t.Fatalf("ties must be ordered by descending id: %s then %s", txs[i-1].ID, txs[i].ID)
		}
	}
}

func TestHistory_FiltersAndPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a := openOfficer(t, svc, "9876543210", 50)
	b := openOfficer(t, svc, "9876543211", 50)

	if _, err := svc.Grant(ctx, a.ID, ActionTopUp, 10, Metadata{PaymentReference: "NEFT-001"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Deduct(ctx, a.ID, 1, Metadata{Remarks: fmt.Sprintf("RC lookup %d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Deduct(ctx, b.ID, 2, Metadata{Remarks: "CELLID lookup"}); err != nil {
		t.Fatal(err)
	}

	page, err := svc.History(ctx, HistoryQuery{Page: 1, Limit: 3})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if page.Pagination.Total != 7 || page.Pagination.Pages != 3 || len(page.Transactions) != 3 {
		t.Fatalf("unexpected pagination: %+v (%d rows)", page.Pagination, len(page.Transactions))
	}
	last, err := svc.History(ctx, HistoryQuery{Page: 3, Limit: 3})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(last.Transactions) != 1 {
		t.Fatalf("expected 1 row on last page, got %d", len(last.Transactions))
	}

	deductions, err := svc.History(ctx, HistoryQuery{OfficerID: a.ID, Action: ActionDeduction})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if deductions.Pagination.Total != 3 {
		t.Fatalf("expected 3 deductions for a, got %d", deductions.Pagination.Total)
	}

	search, err := svc.History(ctx, HistoryQuery{Search: "neft"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if search.Pagination.Total != 1 || search.Transactions[0].PaymentReference != "NEFT-001" {
		t.Fatalf("unexpected search result: %+v", search)
	}

	if _, err := svc.History(ctx, HistoryQuery{Action: "Bonus"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.History(ctx, HistoryQuery{From: from, To: from.Add(-time.Hour)}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for inverted range, got %v", err)
	}

	officerPage, err := svc.OfficerHistory(ctx, b.ID, 0, 0)
	if err != nil {
		t.Fatalf("OfficerHistory: %v", err)
	}
	if officerPage.Pagination.Limit != DefaultOfficerHistoryLimit || officerPage.Pagination.Total != 2 {
		t.Fatalf("unexpected officer page: %+v", officerPage.Pagination)
	}
	if _, err := svc.OfficerHistory(ctx, "missing", 1, 10); !errors.Is(err, ErrOfficerNotFound) {
		t.Fatalf("expected ErrOfficerNotFound, got %v", err)
	}
}

func TestHistory_DateRangeIsInclusive(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Hour}
	svc := NewService(NewMemoryStore(), WithClock(clock.Now), WithLogger(logger.Discard()))
	o := openOfficer(t, svc, "9876543210", 10) // seed at 01:00
	for i := 0; i < 3; i++ {
		if _, err := svc.Deduct(ctx, o.ID, 1, Metadata{}); err != nil { // 02:00, 03:00, 04:00
			t.Fatal(err)
		}
	}

	from := time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	page, err := svc.History(ctx, HistoryQuery{From: from, To: to})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if page.Pagination.Total != 2 {
		t.Fatalf("expected both boundary entries, got %d", page.Pagination.Total)
	}
}

func TestReads_AreIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	o := openOfficer(t, svc, "9876543210", 50)
	for i := int64(1); i <= 5; i++ {
		if _, err := svc.Deduct(ctx, o.ID, i, Metadata{}); err != nil {
			t.Fatal(err)
		}
	}

	q := HistoryQuery{Page: 1, Limit: 4}
	p1, err := svc.History(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := svc.History(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(p1.Transactions) != len(p2.Transactions) || p1.Pagination != p2.Pagination {
		t.Fatalf("history changed between identical reads")
	}
	for i := range p1.Transactions {
		if p1.Transactions[i] != p2.Transactions[i] {
			t.Fatalf("row %d differs between identical reads", i)
		}
	}

	s1, err := svc.AggregateStats(ctx, Range{})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := svc.AggregateStats(ctx, Range{})
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatalf("stats changed between identical reads: %+v vs %+v", s1, s2)
	}
	requireConsistent(t, svc, o.ID)
}

func TestAggregateStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithCreditPrice(2))
	o := openOfficer(t, svc, "9876543210", 50)

	steps := []func() (Result, error){
		func() (Result, error) { return svc.Grant(ctx, o.ID, ActionTopUp, 20, Metadata{}) },
		func() (Result, error) { return svc.Grant(ctx, o.ID, ActionRefund, 5, Metadata{}) },
		func() (Result, error) { return svc.Deduct(ctx, o.ID, 30, Metadata{}) },
		func() (Result, error) { return svc.Adjust(ctx, o.ID, -5, Metadata{Remarks: "fix"}) },
	}
	for _, step := range steps {
		if _, err := step(); err != nil {
			t.Fatal(err)
		}
	}

	st, err := svc.AggregateStats(ctx, Range{})
	if err != nil {
		t.Fatalf("AggregateStats: %v", err)
	}
	want := Stats{
		TotalCreditsIssued: 75,
		TotalCreditsUsed:   35,
		TotalTransactions:  5,
		Renewals:           1,
		TopUps:             1,
		Refunds:            1,
		Deductions:         1,
		Adjustments:        1,
		EstimatedRevenue:   70,
	}
	if st != want {
		t.Fatalf("stats mismatch:\n got %+v\nwant %+v", st, want)
	}

	empty, err := svc.AggregateStats(ctx, Range{From: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatal(err)
	}
	if empty != (Stats{}) {
		t.Fatalf("expected zero stats for future range, got %+v", empty)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	ops     map[string]int
	failed  map[string]int
	credits map[Action]int64
	drift   []int64
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ops: map[string]int{}, failed: map[string]int{}, credits: map[Action]int64{}}
}

func (r *recordingObserver) ObserveOperation(op string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op]++
	if err != nil {
		r.failed[op]++
	}
}

func (r *recordingObserver) ObserveCredits(a Action, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credits[a] += n
}

func (r *recordingObserver) ObserveDrift(_ string, d int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drift = append(r.drift, d)
}

func TestObserver_ReceivesLedgerTelemetry(t *testing.T) {
	ctx := context.Background()
	obs := newRecordingObserver()
	svc, store := newTestService(t, WithObserver(obs))
	o := openOfficer(t, svc, "9876543210", 10)

	if _, err := svc.Deduct(ctx, o.ID, 4, Metadata{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Deduct(ctx, o.ID, 40, Metadata{}); err == nil {
		t.Fatal("expected failure")
	}
	store.Corrupt(o.ID, 1)
	_, _ = svc.Reconcile(ctx, o.ID)

	if obs.ops["deduct"] != 2 || obs.failed["deduct"] != 1 {
		t.Fatalf("unexpected op counts: %+v / %+v", obs.ops, obs.failed)
	}
	if obs.credits[ActionRenewal] != 10 || obs.credits[ActionDeduction] != -4 {
		t.Fatalf("unexpected credit totals: %+v", obs.credits)
	}
	if len(obs.drift) != 1 || obs.drift[0] != -5 {
		t.Fatalf("unexpected drift: %+v", obs.drift)
	}
}
