package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"casinoledger/internal/config"
	"casinoledger/internal/model"
	"casinoledger/internal/repository"
	"casinoledger/internal/service"
	"casinoledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// =============================================================================
// FAKE STORE
// =============================================================================

type fakeStore struct {
	nextID      int64
	purchases   map[int64]*model.ChipPurchase
	tables      map[int64]*model.Table
	adjustments []*model.CasinoBalanceAdjustment
	calls       []string

	// loose 为 true 时 CreditPurchases 不做过滤，模拟一个查询条件写错的存储
	loose bool

	failDelete error
	failUpdate error
	failCreate error
	failTable  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		purchases: map[int64]*model.ChipPurchase{},
		tables:    map[int64]*model.Table{},
	}
}

func (f *fakeStore) add(sessionID string, seatNo int, paymentType string, amount int64, at time.Time) int64 {
	f.nextID++
	f.purchases[f.nextID] = &model.ChipPurchase{
		ID:          f.nextID,
		SessionID:   sessionID,
		SeatNo:      seatNo,
		PaymentType: paymentType,
		Amount:      amount,
		CreatedAt:   at,
	}
	return f.nextID
}

func (f *fakeStore) CreditPurchases(_ context.Context, sessionID string, seatNo int) ([]*model.ChipPurchase, error) {
	var out []*model.ChipPurchase
	for _, p := range f.purchases {
		if p.SessionID != sessionID || p.SeatNo != seatNo {
			continue
		}
		if !f.loose && !p.IsOutstandingCredit() {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) DeletePurchase(_ context.Context, id int64) error {
	f.calls = append(f.calls, fmt.Sprintf("delete:%d", id))
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.purchases, id)
	return nil
}

func (f *fakeStore) UpdatePurchaseAmount(_ context.Context, id int64, amount int64) error {
	f.calls = append(f.calls, fmt.Sprintf("update:%d=%d", id, amount))
	if f.failUpdate != nil {
		return f.failUpdate
	}
	f.purchases[id].Amount = amount
	return nil
}

func (f *fakeStore) CreateAdjustment(_ context.Context, adj *model.CasinoBalanceAdjustment) error {
	f.calls = append(f.calls, fmt.Sprintf("adjust:%d", adj.Amount))
	if f.failCreate != nil {
		return f.failCreate
	}
	f.nextID++
	adj.ID = f.nextID
	f.adjustments = append(f.adjustments, adj)
	return nil
}

func (f *fakeStore) TableByID(_ context.Context, id int64) (*model.Table, error) {
	if f.failTable != nil {
		return nil, f.failTable
	}
	return f.tables[id], nil
}

func (f *fakeStore) outstanding(sessionID string, seatNo int) int64 {
	var total int64
	for _, p := range f.purchases {
		if p.SessionID == sessionID && p.SeatNo == seatNo && p.IsOutstandingCredit() {
			total += p.Amount
		}
	}
	return total
}

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	sessionDay = time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	playStart  = time.Date(2024, time.March, 5, 21, 0, 0, 0, time.UTC)
)

func newSessionAndSeat(name string, seatNo int) (*model.Session, *model.Seat) {
	d := sessionDay
	session := &model.Session{ID: "S1", TableID: 1, Date: &d, Status: model.SessionStatusOpen}
	seat := &model.Seat{SessionID: "S1", SeatNo: seatNo, PlayerName: name}
	return session, seat
}

func newCreditService() *service.CreditService {
	cfg := config.DefaultCreditConfig()
	cfg.RejectOverSettlement = true
	return service.NewCreditService(cfg)
}

func lenientCreditService() *service.CreditService {
	return service.NewCreditService(config.DefaultCreditConfig())
}

// =============================================================================
// AGGREGATOR
// =============================================================================

func TestTotalCredit(t *testing.T) {
	assert.Equal(t, int64(0), service.TotalCredit(nil))
	assert.Equal(t, int64(100), service.TotalCredit([]*model.ChipPurchase{
		{Amount: 30}, {Amount: 50}, {Amount: 20},
	}))
}

func TestCreditPurchases_ExcludesNonCredit(t *testing.T) {
	// GIVEN: a store that returns every purchase of the seat unfiltered
	// WHEN: the aggregator fetches qualifying purchases
	// THEN: cash, zero and negative rows are dropped

	store := newFakeStore()
	store.loose = true
	store.add("S1", 1, model.PaymentTypeCredit, 30, playStart)
	store.add("S1", 1, model.PaymentTypeCash, 500, playStart)
	store.add("S1", 1, model.PaymentTypeCredit, 0, playStart)
	store.add("S1", 1, model.PaymentTypeCredit, -10, playStart)

	got, err := newCreditService().CreditPurchases(context.Background(), store, "S1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(30), got[0].Amount)
}

// =============================================================================
// SETTLEMENT ENGINE
// =============================================================================

func TestCloseCredit_FIFOPartial(t *testing.T) {
	// GIVEN: credit purchases 30, 50, 20 in that chronological order
	// WHEN: 60 is settled
	// THEN: 30 is deleted, 50 is reduced to 20, the last 20 is untouched

	store := newFakeStore()
	third := store.add("S1", 1, model.PaymentTypeCredit, 20, playStart.Add(2*time.Minute))
	first := store.add("S1", 1, model.PaymentTypeCredit, 30, playStart)
	second := store.add("S1", 1, model.PaymentTypeCredit, 50, playStart.Add(time.Minute))
	session, seat := newSessionAndSeat("Ivan", 1)

	adj, err := newCreditService().CloseCredit(context.Background(), store, session, seat, 60, 7)
	require.NoError(t, err)

	assert.NotContains(t, store.purchases, first)
	assert.Equal(t, int64(20), store.purchases[second].Amount)
	assert.Equal(t, int64(20), store.purchases[third].Amount)
	assert.Equal(t, int64(40), store.outstanding("S1", 1))

	require.Len(t, store.adjustments, 1)
	assert.Equal(t, int64(60), adj.Amount)
	assert.Equal(t, int64(7), adj.CreatedByUserID)
	assert.NotEmpty(t, adj.AdjustmentNo)
}

func TestCloseCredit_AdjustmentWrittenBeforePurchaseMutation(t *testing.T) {
	store := newFakeStore()
	a := store.add("S1", 1, model.PaymentTypeCredit, 30, playStart)
	b := store.add("S1", 1, model.PaymentTypeCredit, 50, playStart.Add(time.Minute))
	session, seat := newSessionAndSeat("", 1)

	_, err := newCreditService().CloseCredit(context.Background(), store, session, seat, 60, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"adjust:60",
		fmt.Sprintf("delete:%d", a),
		fmt.Sprintf("update:%d=20", b),
	}, store.calls)
}

func TestCloseCredit_ExactMatch(t *testing.T) {
	store := newFakeStore()
	store.add("S1", 1, model.PaymentTypeCredit, 40, playStart)
	store.add("S1", 1, model.PaymentTypeCredit, 60, playStart.Add(time.Minute))
	session, seat := newSessionAndSeat("Ivan", 1)

	_, err := newCreditService().CloseCredit(context.Background(), store, session, seat, 100, 1)
	require.NoError(t, err)

	assert.Empty(t, store.purchases)
	for _, c := range store.calls {
		assert.NotContains(t, c, "update", "no purchase may be left with a reduced amount")
	}
}

func TestCloseCredit_Conservation(t *testing.T) {
	// For every 0 < k <= S the seat is left with exactly S - k.
	amounts := []int64{30, 50, 20, 5, 95}
	var sum int64
	for _, a := range amounts {
		sum += a
	}

	for k := int64(1); k <= sum; k++ {
		store := newFakeStore()
		for i, a := range amounts {
			store.add("S1", 1, model.PaymentTypeCredit, a, playStart.Add(time.Duration(i)*time.Minute))
		}
		store.add("S1", 1, model.PaymentTypeCash, 1000, playStart)
		store.add("S1", 2, model.PaymentTypeCredit, 77, playStart)
		session, seat := newSessionAndSeat("", 1)

		_, err := newCreditService().CloseCredit(context.Background(), store, session, seat, k, 1)
		require.NoError(t, err, "k=%d", k)
		require.Equal(t, sum-k, store.outstanding("S1", 1), "k=%d", k)
		require.Equal(t, int64(77), store.outstanding("S1", 2), "other seats untouched, k=%d", k)
		require.Len(t, store.adjustments, 1)
		require.Equal(t, k, store.adjustments[0].Amount)
	}
}

func TestCloseCredit_SameTimestampOrderedByID(t *testing.T) {
	store := newFakeStore()
	a := store.add("S1", 1, model.PaymentTypeCredit, 10, playStart)
	b := store.add("S1", 1, model.PaymentTypeCredit, 10, playStart)
	session, seat := newSessionAndSeat("", 1)

	_, err := newCreditService().CloseCredit(context.Background(), store, session, seat, 15, 1)
	require.NoError(t, err)

	assert.NotContains(t, store.purchases, a)
	assert.Equal(t, int64(5), store.purchases[b].Amount)
}

func TestCloseCredit_RejectsNonPositiveAmount(t *testing.T) {
	store := newFakeStore()
	store.add("S1", 1, model.PaymentTypeCredit, 40, playStart)
	session, seat := newSessionAndSeat("", 1)

	for _, amount := range []int64{0, -5} {
		_, err := newCreditService().CloseCredit(context.Background(), store, session, seat, amount, 1)
		assert.ErrorIs(t, err, service.ErrInvalidAmount)
	}
	assert.Empty(t, store.calls)
}

func TestCloseCredit_RejectsOverSettlement(t *testing.T) {
	store := newFakeStore()
	store.add("S1", 1, model.PaymentTypeCredit, 40, playStart)
	store.add("S1", 1, model.PaymentTypeCredit, 60, playStart.Add(time.Minute))
	session, seat := newSessionAndSeat("", 1)

	_, err := newCreditService().CloseCredit(context.Background(), store, session, seat, 101, 1)
	assert.ErrorIs(t, err, service.ErrAmountExceedsCredit)
	assert.Empty(t, store.calls, "nothing may be written")
	assert.Equal(t, int64(100), store.outstanding("S1", 1))
}

func TestCloseCredit_LenientUnderSettlement(t *testing.T) {
	// With the guard disabled the whole debt is removed and the adjustment
	// still carries the requested amount.
	store := newFakeStore()
	store.add("S1", 1, model.PaymentTypeCredit, 40, playStart)
	store.add("S1", 1, model.PaymentTypeCredit, 60, playStart.Add(time.Minute))
	session, seat := newSessionAndSeat("", 1)

	adj, err := lenientCreditService().CloseCredit(context.Background(), store, session, seat, 150, 1)
	require.NoError(t, err)

	assert.Empty(t, store.purchases)
	assert.Equal(t, int64(150), adj.Amount)
}

func TestCloseCredit_StorageFailurePropagates(t *testing.T) {
	boom := errors.New("disk full")

	cases := []struct {
		name  string
		setup func(*fakeStore)
	}{
		{"create adjustment", func(f *fakeStore) { f.failCreate = boom }},
		{"delete purchase", func(f *fakeStore) { f.failDelete = boom }},
		{"update purchase", func(f *fakeStore) { f.failUpdate = boom }},
		{"table lookup", func(f *fakeStore) { f.failTable = boom }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			store.add("S1", 1, model.PaymentTypeCredit, 30, playStart)
			store.add("S1", 1, model.PaymentTypeCredit, 50, playStart.Add(time.Minute))
			tc.setup(store)
			session, seat := newSessionAndSeat("", 1)

			_, err := newCreditService().CloseCredit(context.Background(), store, session, seat, 60, 1)
			assert.ErrorIs(t, err, boom)
		})
	}
}

// =============================================================================
// COMMENT
// =============================================================================

func TestDebtComment(t *testing.T) {
	svc := newCreditService()
	d := sessionDay
	table := &model.Table{ID: 1, Name: "VIP-1"}

	cases := []struct {
		name    string
		session *model.Session
		seat    *model.Seat
		table   *model.Table
		want    string
	}{
		{"full", &model.Session{Date: &d}, &model.Seat{SeatNo: 3, PlayerName: "Ivan"}, table, "Долг (Ivan) - VIP-1 - 05.03.2024"},
		{"no player", &model.Session{Date: &d}, &model.Seat{SeatNo: 7}, table, "Долг (Seat 7) - VIP-1 - 05.03.2024"},
		{"no table", &model.Session{Date: &d}, &model.Seat{SeatNo: 3, PlayerName: "Ivan"}, nil, "Долг (Ivan) - Unknown - 05.03.2024"},
		{"no date", &model.Session{}, &model.Seat{SeatNo: 3, PlayerName: "Ivan"}, table, "Долг (Ivan) - VIP-1 -"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svc.DebtComment(tc.session, tc.seat, tc.table))
		})
	}
}

func TestDebtComment_CustomTemplate(t *testing.T) {
	svc := service.NewCreditService(config.CreditConfig{
		CommentTemplate: "Debt {date}: {player} @ {table}",
		SeatFallback:    "Place #{seat}",
		UnknownTable:    "n/a",
		DateLayout:      "2006-01-02",
	})
	d := sessionDay

	got := svc.DebtComment(&model.Session{Date: &d}, &model.Seat{SeatNo: 4}, nil)
	assert.Equal(t, "Debt 2024-03-05: Place #4 @ n/a", got)
}

func TestDebtComment_SeatFallbackWithoutPlaceholder(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	cfg.SeatFallback = "Место"
	svc := service.NewCreditService(cfg)
	d := sessionDay

	got := svc.DebtComment(&model.Session{Date: &d}, &model.Seat{SeatNo: 7}, &model.Table{Name: "VIP-1"})
	assert.Equal(t, "Долг (Место) - VIP-1 - 05.03.2024", got)

	cfg.SeatFallback = "Место {seat} (%d)"
	got = service.NewCreditService(cfg).DebtComment(&model.Session{Date: &d}, &model.Seat{SeatNo: 7}, &model.Table{Name: "VIP-1"})
	assert.Equal(t, "Долг (Место 7 (%d)) - VIP-1 - 05.03.2024", got)
}

func TestCloseCredit_ZeroConfigUnderSettles(t *testing.T) {
	store := newFakeStore()
	store.add("S1", 1, model.PaymentTypeCredit, 40, playStart)
	session, seat := newSessionAndSeat("", 1)

	adj, err := service.NewCreditService(config.CreditConfig{}).CloseCredit(context.Background(), store, session, seat, 50, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), adj.Amount)
	assert.Equal(t, int64(0), store.outstanding("S1", 1))
}

func TestDebtComment_PlaceholderInPlayerNameNotExpanded(t *testing.T) {
	d := sessionDay
	got := newCreditService().DebtComment(&model.Session{Date: &d}, &model.Seat{PlayerName: "{table}"}, &model.Table{Name: "VIP-1"})
	assert.Equal(t, "Долг ({table}) - VIP-1 - 05.03.2024", got)
}

func TestCloseCredit_CommentUsesResolvedTable(t *testing.T) {
	store := newFakeStore()
	store.tables[1] = &model.Table{ID: 1, Name: "VIP-1"}
	store.add("S1", 7, model.PaymentTypeCredit, 30, playStart)
	session, seat := newSessionAndSeat("", 7)

	adj, err := newCreditService().CloseCredit(context.Background(), store, session, seat, 30, 1)
	require.NoError(t, err)
	assert.Equal(t, "Долг (Seat 7) - VIP-1 - 05.03.2024", adj.Comment)
}

// =============================================================================
// SESSION-CLOSE ORCHESTRATOR
// =============================================================================

func TestCloseCreditForSession_ZeroDebtIsNoop(t *testing.T) {
	store := newFakeStore()
	store.add("S1", 1, model.PaymentTypeCash, 200, playStart)
	session, seat := newSessionAndSeat("Ivan", 1)

	closed, err := newCreditService().CloseCreditForSession(context.Background(), store, session, seat, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(0), closed)
	assert.Empty(t, store.adjustments)
	assert.Empty(t, store.calls)
}

func TestCloseCreditForSession_ClosesEverything(t *testing.T) {
	store := newFakeStore()
	store.add("S1", 1, model.PaymentTypeCredit, 30, playStart)
	store.add("S1", 1, model.PaymentTypeCredit, 50, playStart.Add(time.Minute))
	store.add("S1", 1, model.PaymentTypeCash, 500, playStart)
	session, seat := newSessionAndSeat("Ivan", 1)

	closed, err := newCreditService().CloseCreditForSession(context.Background(), store, session, seat, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(80), closed)
	assert.Equal(t, int64(0), store.outstanding("S1", 1))
	require.Len(t, store.adjustments, 1)
	assert.Equal(t, int64(80), store.adjustments[0].Amount)
	assert.Len(t, store.purchases, 1, "cash purchase stays")
}

// =============================================================================
// AGAINST THE DATABASE
// =============================================================================

func TestCloseCredit_SQLite_FIFO(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.SeedSession(t, db, "VIP-1", sessionDay, 2)
	sid := fx.Session.ID

	p3 := testutil.AddPurchase(t, db, sid, 1, model.PaymentTypeCredit, 20, playStart.Add(2*time.Minute))
	p1 := testutil.AddPurchase(t, db, sid, 1, model.PaymentTypeCredit, 30, playStart)
	p2 := testutil.AddPurchase(t, db, sid, 1, model.PaymentTypeCredit, 50, playStart.Add(time.Minute))
	cash := testutil.AddPurchase(t, db, sid, 1, model.PaymentTypeCash, 100, playStart)

	svc := newCreditService()
	ctx := context.Background()
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.CloseCredit(ctx, repository.NewTxStore(tx), fx.Session, fx.Seats[0], 60, 9)
		return err
	})
	require.NoError(t, err)

	var left []model.ChipPurchase
	require.NoError(t, db.Order("id ASC").Find(&left).Error)
	byID := map[int64]int64{}
	for _, p := range left {
		byID[p.ID] = p.Amount
	}
	assert.NotContains(t, byID, p1.ID)
	assert.Equal(t, int64(20), byID[p2.ID])
	assert.Equal(t, int64(20), byID[p3.ID])
	assert.Equal(t, int64(100), byID[cash.ID])
	assert.Equal(t, int64(40), testutil.OutstandingCredit(t, db, sid, 1))

	var adj model.CasinoBalanceAdjustment
	require.NoError(t, db.First(&adj).Error)
	assert.Equal(t, int64(60), adj.Amount)
	assert.Equal(t, int64(9), adj.CreatedByUserID)
	assert.Equal(t, "Долг (Seat 1) - VIP-1 - 05.03.2024", adj.Comment)
}

type failingDeleteStore struct {
	*repository.TxStore
}

func (failingDeleteStore) DeletePurchase(context.Context, int64) error {
	return errors.New("connection reset")
}

func TestCloseCredit_SQLite_FailureRollsBackAdjustment(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.SeedSession(t, db, "VIP-1", sessionDay, 1)
	testutil.AddPurchase(t, db, fx.Session.ID, 1, model.PaymentTypeCredit, 30, playStart)
	testutil.AddPurchase(t, db, fx.Session.ID, 1, model.PaymentTypeCredit, 50, playStart.Add(time.Minute))

	svc := newCreditService()
	err := db.Transaction(func(tx *gorm.DB) error {
		store := failingDeleteStore{repository.NewTxStore(tx)}
		_, err := svc.CloseCredit(context.Background(), store, fx.Session, fx.Seats[0], 60, 1)
		return err
	})
	require.Error(t, err)

	assert.Equal(t, int64(0), testutil.CountAdjustments(t, db))
	assert.Equal(t, int64(80), testutil.OutstandingCredit(t, db, fx.Session.ID, 1))
}
