package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// mockStore is an in-memory Repository with copy-on-error rollback and
// conflict injection for retry tests.
type mockStore struct {
	mu       sync.Mutex
	products map[int64]*Product
	invoices map[int64]*Invoice
	counters map[string]int64
	nextID   int64

	conflictsLeft int // fail this many transactions with db.ErrConflict
	failWith      error
}

func newMockStore(products ...Product) *mockStore {
	s := &mockStore{
		products: make(map[int64]*Product),
		invoices: make(map[int64]*Invoice),
		counters: make(map[string]int64),
	}
	for i := range products {
		p := products[i]
		s.products[p.ID] = &p
	}
	return s
}

func (s *mockStore) snapshot() (map[int64]*Product, map[int64]*Invoice, map[string]int64, int64) {
	prods := make(map[int64]*Product, len(s.products))
	for id, p := range s.products {
		cp := *p
		prods[id] = &cp
	}
	invs := make(map[int64]*Invoice, len(s.invoices))
	for id, inv := range s.invoices {
		cp := *inv
		cp.Lines = append([]Line(nil), inv.Lines...)
		cp.Charges = append([]Charge(nil), inv.Charges...)
		invs[id] = &cp
	}
	counters := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}
	return prods, invs, counters, s.nextID
}

func (s *mockStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return fmt.Errorf("%w: injected", db.ErrConflict)
	}
	prods, invs, counters, nextID := s.snapshot()
	if err := fn(ctx, (*mockTx)(s)); err != nil {
		s.products, s.invoices, s.counters, s.nextID = prods, invs, counters, nextID
		return err
	}
	return nil
}

func (s *mockStore) GetInvoice(_ context.Context, businessID, invoiceID int64) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getInvoice(businessID, invoiceID), nil
}

func (s *mockStore) getInvoice(businessID, invoiceID int64) *Invoice {
	inv, ok := s.invoices[invoiceID]
	if !ok || inv.BusinessID != businessID {
		return nil
	}
	cp := *inv
	cp.Lines = append([]Line(nil), inv.Lines...)
	cp.Charges = append([]Charge(nil), inv.Charges...)
	return &cp
}

func (s *mockStore) ListInvoices(_ context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Invoice
	for _, inv := range s.invoices {
		if inv.BusinessID != req.BusinessID || inv.DeletedAt != nil {
			continue
		}
		if req.Kind != "" && inv.Kind != req.Kind {
			continue
		}
		if req.PaymentStatus != nil && inv.PaymentStatus != *req.PaymentStatus {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (s *mockStore) product(id int64) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.products[id]
}

// mockTx reuses the store's maps; WithTx holds the lock and restores a
// snapshot when fn fails.
type mockTx mockStore

func (t *mockTx) GetProductForUpdate(_ context.Context, businessID, productID int64) (Product, error) {
	p, ok := t.products[productID]
	if !ok || p.BusinessID != businessID {
		return Product{}, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	return *p, nil
}

func (t *mockTx) AdjustProductStock(_ context.Context, businessID, productID, delta int64) error {
	p, ok := t.products[productID]
	if !ok || p.BusinessID != businessID {
		return fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	p.QtyOnHand += delta
	return nil
}

func (t *mockTx) NextDocumentNumber(_ context.Context, businessID int64, kind DocumentKind) (int64, error) {
	key := fmt.Sprintf("%d/%s", businessID, kind)
	t.counters[key]++
	return t.counters[key], nil
}

func (t *mockTx) GetInvoice(_ context.Context, businessID, invoiceID int64) (*Invoice, error) {
	return (*mockStore)(t).getInvoice(businessID, invoiceID), nil
}

func (t *mockTx) GetInvoiceForUpdate(_ context.Context, businessID, invoiceID int64) (*Invoice, error) {
	return (*mockStore)(t).getInvoice(businessID, invoiceID), nil
}

func (t *mockTx) InsertInvoice(_ context.Context, inv *Invoice) error {
	t.nextID++
	inv.ID = t.nextID
	cp := *inv
	cp.Lines = append([]Line(nil), inv.Lines...)
	cp.Charges = append([]Charge(nil), inv.Charges...)
	t.invoices[inv.ID] = &cp
	return nil
}

func (t *mockTx) UpdateInvoice(_ context.Context, inv *Invoice) error {
	if _, ok := t.invoices[inv.ID]; !ok {
		return fmt.Errorf("%w: document %d", ErrNotFound, inv.ID)
	}
	cp := *inv
	cp.Lines = append([]Line(nil), inv.Lines...)
	cp.Charges = append([]Charge(nil), inv.Charges...)
	t.invoices[inv.ID] = &cp
	return nil
}

func (t *mockTx) SoftDeleteInvoice(_ context.Context, businessID, invoiceID int64, at time.Time) error {
	inv, ok := t.invoices[invoiceID]
	if !ok || inv.BusinessID != businessID || inv.DeletedAt != nil {
		return fmt.Errorf("%w: document %d", ErrNotFound, invoiceID)
	}
	inv.DeletedAt = &at
	return nil
}

type countingBumper struct {
	mu    sync.Mutex
	count int
}

func (c *countingBumper) Bump(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return nil
}

const (
	testBusiness = int64(1)
	testOwner    = int64(77)
	testViewer   = int64(88)
)

func testEngine(store *mockStore) (*Engine, *countingBumper) {
	auth := authz.NewStatic(
		authz.Grant{BusinessID: testBusiness, UserID: testOwner, Role: authz.RoleOwner},
		authz.Grant{BusinessID: testBusiness, UserID: testViewer, Role: authz.RoleViewer},
	)
	bumper := &countingBumper{}
	logger := slog.New(slog.NewTextHandler(testWriter{}, nil))
	return NewEngine(store, auth, bumper, logger), bumper
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func ownerCtx() context.Context {
	return authz.ContextWithCaller(context.Background(), testOwner)
}

func saleRequest(productID int64, qty int64) CreateInvoiceRequest {
	return CreateInvoiceRequest{
		BusinessID: testBusiness,
		Kind:       KindSale,
		Lines: []LineInput{{
			ProductID: &productID,
			Qty:       qty,
			UnitPrice: dec("100"),
		}},
	}
}

func stockedProduct(id int64, qty int64) Product {
	return Product{
		ID:         id,
		BusinessID: testBusiness,
		Name:       fmt.Sprintf("Widget %d", id),
		UnitPrice:  dec("100"),
		TaxPercent: dec("18"),
		QtyOnHand:  qty,
		IsActive:   true,
	}
}

func TestCreateSaleDecrementsStockAndNumbers(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, bumper := testEngine(store)

	inv, err := engine.Create(ownerCtx(), saleRequest(10, 4))
	require.NoError(t, err)

	assert.Equal(t, "INV-00001", inv.DocNumber)
	assert.Equal(t, int64(1), inv.DocSeq)
	assert.True(t, inv.TotalAmount.Equal(dec("472")), "total = %s", inv.TotalAmount)
	require.Len(t, inv.Lines, 1)
	assert.True(t, inv.Lines[0].NetTotal.Equal(dec("472")))
	assert.Equal(t, int64(6), store.product(10).QtyOnHand)
	assert.Equal(t, 1, bumper.count)

	// Product tax rate applies when the line does not override it.
	assert.True(t, inv.Lines[0].TaxPercent.Equal(dec("18")))

	second, err := engine.Create(ownerCtx(), saleRequest(10, 1))
	require.NoError(t, err)
	assert.Equal(t, "INV-00002", second.DocNumber)
}

func TestCreatePurchaseIncrementsStock(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	req := saleRequest(10, 5)
	req.Kind = KindPurchase
	inv, err := engine.Create(ownerCtx(), req)
	require.NoError(t, err)

	assert.Equal(t, "PUR-00001", inv.DocNumber)
	assert.Equal(t, int64(15), store.product(10).QtyOnHand)
}

func TestCreateInsufficientStock(t *testing.T) {
	store := newMockStore(stockedProduct(10, 3))
	engine, bumper := testEngine(store)

	_, err := engine.Create(ownerCtx(), saleRequest(10, 4))
	require.Error(t, err)

	ise, ok := AsInsufficientStock(err)
	require.True(t, ok, "want InsufficientStockError, got %v", err)
	assert.Equal(t, int64(10), ise.ProductID)
	assert.Equal(t, int64(3), ise.Available)
	assert.Equal(t, int64(4), ise.Requested)

	// Nothing moved, nothing invalidated.
	assert.Equal(t, int64(3), store.product(10).QtyOnHand)
	assert.Equal(t, 0, bumper.count)
}

func TestUpdateReversesAndReapplies(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	inv, err := engine.Create(ownerCtx(), saleRequest(10, 4))
	require.NoError(t, err)
	require.Equal(t, int64(6), store.product(10).QtyOnHand)

	pid := int64(10)
	updated, err := engine.Update(ownerCtx(), testBusiness, inv.ID, UpdateInvoiceRequest{
		Lines: []LineInput{{ProductID: &pid, Qty: 2, UnitPrice: dec("100")}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(8), store.product(10).QtyOnHand)
	assert.True(t, updated.TotalAmount.Equal(dec("236")), "total = %s", updated.TotalAmount)
	assert.Equal(t, inv.DocNumber, updated.DocNumber, "number is immutable")
	assert.Equal(t, inv.DocSeq, updated.DocSeq)
}

func TestUpdateChecksStockAgainstReversedBalance(t *testing.T) {
	// 10 on hand, 9 already sold on the document. Raising the line to
	// 10 must pass: the reversal frees the 9 first.
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	pid := int64(10)
	inv, err := engine.Create(ownerCtx(), saleRequest(10, 9))
	require.NoError(t, err)
	require.Equal(t, int64(1), store.product(10).QtyOnHand)

	_, err = engine.Update(ownerCtx(), testBusiness, inv.ID, UpdateInvoiceRequest{
		Lines: []LineInput{{ProductID: &pid, Qty: 10, UnitPrice: dec("100")}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), store.product(10).QtyOnHand)

	// But 11 exceeds even the reversed balance.
	_, err = engine.Update(ownerCtx(), testBusiness, inv.ID, UpdateInvoiceRequest{
		Lines: []LineInput{{ProductID: &pid, Qty: 11, UnitPrice: dec("100")}},
	})
	_, ok := AsInsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, int64(0), store.product(10).QtyOnHand, "failed update must not move stock")
}

func TestDeleteReversesStock(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	inv, err := engine.Create(ownerCtx(), saleRequest(10, 4))
	require.NoError(t, err)
	require.Equal(t, int64(6), store.product(10).QtyOnHand)

	require.NoError(t, engine.Delete(ownerCtx(), testBusiness, inv.ID))
	assert.Equal(t, int64(10), store.product(10).QtyOnHand)

	_, err = engine.Get(ownerCtx(), testBusiness, inv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice reports not found, stock stays put.
	err = engine.Delete(ownerCtx(), testBusiness, inv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(10), store.product(10).QtyOnHand)
}

func TestUpdateWithSameLinesLeavesStockUnchanged(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	inv, err := engine.Create(ownerCtx(), saleRequest(10, 4))
	require.NoError(t, err)
	require.Equal(t, int64(6), store.product(10).QtyOnHand)

	// Reversal and reapplication cancel out when the lines do not change.
	pid := int64(10)
	updated, err := engine.Update(ownerCtx(), testBusiness, inv.ID, UpdateInvoiceRequest{
		Lines: []LineInput{{ProductID: &pid, Qty: 4, UnitPrice: dec("100")}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(6), store.product(10).QtyOnHand)
	assert.True(t, updated.TotalAmount.Equal(inv.TotalAmount), "total = %s", updated.TotalAmount)
}

func TestNumberNotReusedAfterDelete(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	first, err := engine.Create(ownerCtx(), saleRequest(10, 1))
	require.NoError(t, err)
	require.Equal(t, "INV-00001", first.DocNumber)

	require.NoError(t, engine.Delete(ownerCtx(), testBusiness, first.ID))

	// The deleted document's number stays burned.
	next, err := engine.Create(ownerCtx(), saleRequest(10, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.DocSeq)
	assert.Equal(t, "INV-00002", next.DocNumber)
}

func TestStoredInputsReproduceTotals(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10), stockedProduct(11, 10))
	engine, _ := testEngine(store)

	p1, p2 := int64(10), int64(11)
	tax5 := dec("5")
	req := CreateInvoiceRequest{
		BusinessID: testBusiness,
		Kind:       KindSale,
		Lines: []LineInput{
			{ProductID: &p1, Qty: 3, UnitPrice: dec("33.33"),
				Discount: DiscountInput{Mode: DiscountModePercent, Percent: dec("7.5")}},
			{ProductID: &p2, Qty: 2, UnitPrice: dec("19.99"), TaxPercent: &tax5,
				Discount: DiscountInput{Mode: DiscountModeAmount, Amount: dec("3")}},
		},
		Charges: []ChargeInput{{Name: "Shipping", Amount: dec("25")}},
		Discount: GlobalDiscount{
			DiscountInput: DiscountInput{Mode: DiscountModePercent, Percent: dec("4")},
			Timing:        DiscountBeforeTax,
		},
		Rounding: RoundingSetting{Mode: RoundingAuto},
	}
	inv, err := engine.Create(ownerCtx(), req)
	require.NoError(t, err)

	// The stored raw inputs alone must reproduce every stored figure.
	stored, err := engine.Get(ownerCtx(), testBusiness, inv.ID)
	require.NoError(t, err)

	priced := make([]PricedLine, len(stored.Lines))
	for i, ln := range stored.Lines {
		priced[i] = PricedLine{
			Qty:        ln.Qty,
			UnitPrice:  ln.UnitPrice,
			TaxPercent: ln.TaxPercent,
			Discount:   ln.Discount,
		}
	}
	charges := make([]ChargeInput, len(stored.Charges))
	for i, ch := range stored.Charges {
		charges[i] = ChargeInput{Name: ch.Name, Amount: ch.Amount}
	}

	totals, err := ComputeTotals(priced, stored.Discount, charges, stored.Rounding)
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(stored.Subtotal), "subtotal = %s", totals.Subtotal)
	assert.True(t, totals.LineDiscountTotal.Equal(stored.LineDiscountTotal))
	assert.True(t, totals.GlobalDiscountAmt.Equal(stored.GlobalDiscountAmt))
	assert.True(t, totals.TaxTotal.Equal(stored.TaxTotal), "tax = %s", totals.TaxTotal)
	assert.True(t, totals.ChargeTotal.Equal(stored.ChargeTotal))
	assert.True(t, totals.RoundingAdjustment.Equal(stored.RoundingAdjustment))
	assert.True(t, totals.TotalAmount.Equal(stored.TotalAmount), "total = %s", totals.TotalAmount)
	for i := range totals.Lines {
		assert.True(t, totals.Lines[i].NetTotal.Equal(stored.Lines[i].NetTotal), "line %d net", i+1)
	}
}

func TestConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	store := newMockStore(stockedProduct(10, 1000))
	engine, _ := testEngine(store)

	const n = 10
	var mu sync.Mutex
	seen := make(map[int64]string, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			inv, err := engine.Create(ownerCtx(), saleRequest(10, 1))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if prev, dup := seen[inv.DocSeq]; dup {
				return fmt.Errorf("sequence %d issued twice (%s and %s)", inv.DocSeq, prev, inv.DocNumber)
			}
			seen[inv.DocSeq] = inv.DocNumber
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, seen, n)
	for seq := int64(1); seq <= n; seq++ {
		assert.Contains(t, seen, seq, "sequence must be gap-free")
	}
}

func TestGlobalDiscountBeforeTaxOnCreate(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	pid := int64(10)
	taxPct := dec("18")
	req := CreateInvoiceRequest{
		BusinessID: testBusiness,
		Kind:       KindSale,
		Lines: []LineInput{{
			ProductID:  &pid,
			Qty:        1,
			UnitPrice:  dec("1000"),
			TaxPercent: &taxPct,
		}},
		Discount: GlobalDiscount{
			DiscountInput: DiscountInput{Mode: DiscountModePercent, Percent: dec("10")},
			Timing:        DiscountBeforeTax,
		},
	}
	inv, err := engine.Create(ownerCtx(), req)
	require.NoError(t, err)

	assert.True(t, inv.GlobalDiscountAmt.Equal(dec("100")))
	assert.True(t, inv.TaxTotal.Equal(dec("162")), "tax = %s", inv.TaxTotal)
	assert.True(t, inv.TotalAmount.Equal(dec("1062")), "total = %s", inv.TotalAmount)
}

func TestSaleReturnRestocksAndRequiresOriginal(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	sale, err := engine.Create(ownerCtx(), saleRequest(10, 4))
	require.NoError(t, err)
	require.Equal(t, int64(6), store.product(10).QtyOnHand)

	pid := int64(10)
	ret := CreateInvoiceRequest{
		BusinessID:        testBusiness,
		Kind:              KindSaleReturn,
		OriginalInvoiceID: &sale.ID,
		Lines:             []LineInput{{ProductID: &pid, Qty: 2, UnitPrice: dec("100")}},
	}
	inv, err := engine.Create(ownerCtx(), ret)
	require.NoError(t, err)

	assert.Equal(t, "SRN-00001", inv.DocNumber)
	assert.Equal(t, int64(8), store.product(10).QtyOnHand)

	// Missing original.
	ret.OriginalInvoiceID = nil
	_, err = engine.Create(ownerCtx(), ret)
	assert.ErrorIs(t, err, ErrValidation)

	// A purchase return cannot reference a sale.
	bad := ret
	bad.Kind = KindPurchaseReturn
	bad.OriginalInvoiceID = &sale.ID
	_, err = engine.Create(ownerCtx(), bad)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPurchaseReturnDecrementsStock(t *testing.T) {
	store := newMockStore(stockedProduct(10, 0))
	engine, _ := testEngine(store)

	pid := int64(10)
	pur := CreateInvoiceRequest{
		BusinessID: testBusiness,
		Kind:       KindPurchase,
		Lines:      []LineInput{{ProductID: &pid, Qty: 5, UnitPrice: dec("60")}},
	}
	orig, err := engine.Create(ownerCtx(), pur)
	require.NoError(t, err)
	require.Equal(t, int64(5), store.product(10).QtyOnHand)

	ret := CreateInvoiceRequest{
		BusinessID:        testBusiness,
		Kind:              KindPurchaseReturn,
		OriginalInvoiceID: &orig.ID,
		Lines:             []LineInput{{ProductID: &pid, Qty: 2, UnitPrice: dec("60")}},
	}
	inv, err := engine.Create(ownerCtx(), ret)
	require.NoError(t, err)
	assert.Equal(t, "PRN-00001", inv.DocNumber)
	assert.Equal(t, int64(3), store.product(10).QtyOnHand)

	// Returning more than is on hand is refused: stock would go negative.
	ret.Lines[0].Qty = 4
	_, err = engine.Create(ownerCtx(), ret)
	_, ok := AsInsufficientStock(err)
	assert.True(t, ok, "got %v", err)
}

func TestAuthorization(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	viewerCtx := authz.ContextWithCaller(context.Background(), testViewer)
	strangerCtx := authz.ContextWithCaller(context.Background(), int64(999))

	_, err := engine.Create(viewerCtx, saleRequest(10, 1))
	assert.ErrorIs(t, err, ErrUnauthorized, "viewer cannot write")

	_, err = engine.Create(strangerCtx, saleRequest(10, 1))
	assert.ErrorIs(t, err, ErrUnauthorized)

	inv, err := engine.Create(ownerCtx(), saleRequest(10, 1))
	require.NoError(t, err)

	_, err = engine.Get(viewerCtx, testBusiness, inv.ID)
	assert.NoError(t, err, "viewer can read")

	_, err = engine.Get(strangerCtx, testBusiness, inv.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = engine.Delete(viewerCtx, testBusiness, inv.ID)
	assert.ErrorIs(t, err, ErrUnauthorized, "delete needs its own grant")
}

func TestDeleteNeedsExplicitGrantForEditors(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	editor := int64(55)
	auth := authz.NewStatic(
		authz.Grant{BusinessID: testBusiness, UserID: editor, Role: authz.RoleEditor},
	)
	logger := slog.New(slog.NewTextHandler(testWriter{}, nil))
	engine := NewEngine(store, auth, nil, logger)

	ctx := authz.ContextWithCaller(context.Background(), editor)
	inv, err := engine.Create(ctx, saleRequest(10, 1))
	require.NoError(t, err)

	err = engine.Delete(ctx, testBusiness, inv.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	withDelete := authz.NewStatic(
		authz.Grant{BusinessID: testBusiness, UserID: editor, Role: authz.RoleEditor, CanDelete: true},
	)
	engine = NewEngine(store, withDelete, nil, logger)
	assert.NoError(t, engine.Delete(ctx, testBusiness, inv.ID))
}

func TestConflictRetry(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	store.conflictsLeft = 2
	inv, err := engine.Create(ownerCtx(), saleRequest(10, 1))
	require.NoError(t, err, "two conflicts fit inside the retry budget")
	assert.Equal(t, int64(1), inv.DocSeq)

	store.conflictsLeft = 3
	_, err = engine.Create(ownerCtx(), saleRequest(10, 1))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateValidation(t *testing.T) {
	store := newMockStore(stockedProduct(10, 10))
	engine, _ := testEngine(store)

	cases := []struct {
		name   string
		mutate func(*CreateInvoiceRequest)
	}{
		{"unknown kind", func(r *CreateInvoiceRequest) { r.Kind = "quote" }},
		{"no lines", func(r *CreateInvoiceRequest) { r.Lines = nil }},
		{"negative qty", func(r *CreateInvoiceRequest) { r.Lines[0].Qty = -1 }},
		{"negative received", func(r *CreateInvoiceRequest) { r.AmountReceived = dec("-5") }},
		{"bad payment status", func(r *CreateInvoiceRequest) { r.PaymentStatus = "overdue" }},
		{"original on non-return", func(r *CreateInvoiceRequest) { id := int64(1); r.OriginalInvoiceID = &id }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := saleRequest(10, 1)
			tc.mutate(&req)
			_, err := engine.Create(ownerCtx(), req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	t.Run("unknown product", func(t *testing.T) {
		_, err := engine.Create(ownerCtx(), saleRequest(404, 1))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPaymentStatusDerivation(t *testing.T) {
	store := newMockStore(stockedProduct(10, 100))
	engine, _ := testEngine(store)

	req := saleRequest(10, 1) // total 118 with product tax
	inv, err := engine.Create(ownerCtx(), req)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusUnpaid, inv.PaymentStatus)

	req = saleRequest(10, 1)
	req.AmountReceived = dec("50")
	inv, err = engine.Create(ownerCtx(), req)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPartial, inv.PaymentStatus)
	assert.True(t, inv.Balance.Equal(dec("68")), "balance = %s", inv.Balance)

	req = saleRequest(10, 1)
	req.AmountReceived = dec("118")
	inv, err = engine.Create(ownerCtx(), req)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, inv.PaymentStatus)
}
