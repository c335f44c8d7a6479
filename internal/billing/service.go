package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// TxRepository is the slice of the store visible inside one engine
// transaction. Product rows handed out by GetProductForUpdate stay
// locked until the transaction ends.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, businessID, productID int64) (Product, error)
	AdjustProductStock(ctx context.Context, businessID, productID, delta int64) error
	NextDocumentNumber(ctx context.Context, businessID int64, kind DocumentKind) (int64, error)
	GetInvoice(ctx context.Context, businessID, invoiceID int64) (*Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, businessID, invoiceID int64) (*Invoice, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	SoftDeleteInvoice(ctx context.Context, businessID, invoiceID int64, at time.Time) error
}

// Repository is the engine's persistence port.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetInvoice(ctx context.Context, businessID, invoiceID int64) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
}

// CacheInvalidator is notified after any successful mutation so cached
// report aggregates are recomputed on next read.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

const defaultMaxAttempts = 3

// Engine creates, updates, and deletes commercial documents while
// keeping product stock consistent in the same transaction.
type Engine struct {
	repo        Repository
	auth        authz.Authorizer
	cache       CacheInvalidator
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
	maxAttempts int
}

// NewEngine wires the invoicing engine. cache may be nil when report
// caching is disabled.
func NewEngine(repo Repository, auth authz.Authorizer, cache CacheInvalidator, logger *slog.Logger) *Engine {
	return &Engine{
		repo:        repo,
		auth:        auth,
		cache:       cache,
		logger:      logger,
		validate:    validator.New(),
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
}

// Create finalizes a new document: it resolves product references,
// checks and applies stock deltas, assigns the next number for the
// (business, kind) counter, and persists everything atomically.
func (e *Engine) Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validateDocumentInput(req.Kind, req.OriginalInvoiceID, req.PaymentStatus, req.AmountReceived); err != nil {
		return nil, err
	}

	caller := authz.CallerFromContext(ctx)
	if err := e.requireWrite(ctx, caller, req.BusinessID); err != nil {
		return nil, err
	}

	var created *Invoice
	err := e.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := e.assemble(ctx, tx, req.BusinessID, assembleInput{
			Kind:              req.Kind,
			PartyID:           req.PartyID,
			OriginalInvoiceID: req.OriginalInvoiceID,
			IssueDate:         req.IssueDate,
			Lines:             req.Lines,
			Charges:           req.Charges,
			Discount:          req.Discount,
			Rounding:          req.Rounding,
			PaymentStatus:     req.PaymentStatus,
			AmountReceived:    req.AmountReceived,
		}, nil)
		if err != nil {
			return err
		}

		seq, err := tx.NextDocumentNumber(ctx, req.BusinessID, req.Kind)
		if err != nil {
			return err
		}
		inv.DocSeq = seq
		inv.DocNumber = fmt.Sprintf("%s-%05d", req.Kind.Prefix(), seq)
		inv.PublicID = uuid.NewString()
		inv.CreatedBy = caller
		inv.CreatedAt = e.now().UTC()
		inv.UpdatedAt = inv.CreatedAt

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bumpCache(ctx)
	e.logger.Info("document created",
		slog.Int64("business_id", created.BusinessID),
		slog.String("kind", string(created.Kind)),
		slog.String("doc_number", created.DocNumber),
	)
	return created, nil
}

// Update replaces the mutable content of a document. Old stock deltas
// are reversed and the new ones applied in the same transaction, so a
// failed update leaves both the document and stock untouched.
func (e *Engine) Update(ctx context.Context, businessID, invoiceID int64, req UpdateInvoiceRequest) (*Invoice, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.PaymentStatus != "" && !req.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, req.PaymentStatus)
	}
	if req.AmountReceived.IsNegative() {
		return nil, fmt.Errorf("%w: amount received must not be negative", ErrValidation)
	}

	caller := authz.CallerFromContext(ctx)
	if err := e.requireWrite(ctx, caller, businessID); err != nil {
		return nil, err
	}

	var updated *Invoice
	err := e.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		cur, err := tx.GetInvoiceForUpdate(ctx, businessID, invoiceID)
		if err != nil {
			return err
		}
		if cur == nil || cur.DeletedAt != nil {
			return fmt.Errorf("%w: document %d", ErrNotFound, invoiceID)
		}

		issueDate := cur.IssueDate
		if req.IssueDate != nil {
			issueDate = *req.IssueDate
		}
		inv, err := e.assemble(ctx, tx, businessID, assembleInput{
			Kind:              cur.Kind,
			PartyID:           req.PartyID,
			OriginalInvoiceID: cur.OriginalInvoiceID,
			IssueDate:         issueDate,
			Lines:             req.Lines,
			Charges:           req.Charges,
			Discount:          req.Discount,
			Rounding:          req.Rounding,
			PaymentStatus:     req.PaymentStatus,
			AmountReceived:    req.AmountReceived,
		}, cur.Lines)
		if err != nil {
			return err
		}

		inv.ID = cur.ID
		inv.PublicID = cur.PublicID
		inv.DocSeq = cur.DocSeq
		inv.DocNumber = cur.DocNumber
		inv.CreatedBy = cur.CreatedBy
		inv.CreatedAt = cur.CreatedAt
		inv.UpdatedAt = e.now().UTC()

		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bumpCache(ctx)
	e.logger.Info("document updated",
		slog.Int64("business_id", businessID),
		slog.String("doc_number", updated.DocNumber),
	)
	return updated, nil
}

// Delete reverses the document's stock deltas and soft-deletes the
// record. It requires the delete capability, which write access does
// not imply.
func (e *Engine) Delete(ctx context.Context, businessID, invoiceID int64) error {
	caller := authz.CallerFromContext(ctx)
	ok, err := e.auth.CanDelete(ctx, caller, businessID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: delete requires its own grant", ErrUnauthorized)
	}

	err = e.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		cur, err := tx.GetInvoiceForUpdate(ctx, businessID, invoiceID)
		if err != nil {
			return err
		}
		if cur == nil || cur.DeletedAt != nil {
			return fmt.Errorf("%w: document %d", ErrNotFound, invoiceID)
		}

		reversal := stockDeltas(cur.Kind, cur.Lines)
		for _, pid := range sortedProductIDs(reversal) {
			if _, err := tx.GetProductForUpdate(ctx, businessID, pid); err != nil {
				return err
			}
			if err := tx.AdjustProductStock(ctx, businessID, pid, -reversal[pid]); err != nil {
				return err
			}
		}
		return tx.SoftDeleteInvoice(ctx, businessID, invoiceID, e.now().UTC())
	})
	if err != nil {
		return err
	}

	e.bumpCache(ctx)
	e.logger.Info("document deleted",
		slog.Int64("business_id", businessID),
		slog.Int64("invoice_id", invoiceID),
	)
	return nil
}

// Get returns one live document of the caller's business.
func (e *Engine) Get(ctx context.Context, businessID, invoiceID int64) (*Invoice, error) {
	if err := e.requireView(ctx, businessID); err != nil {
		return nil, err
	}
	inv, err := e.repo.GetInvoice(ctx, businessID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.DeletedAt != nil {
		return nil, fmt.Errorf("%w: document %d", ErrNotFound, invoiceID)
	}
	return inv, nil
}

// List returns live documents matching the filter, newest first.
func (e *Engine) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Kind != "" && !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrValidation, req.Kind)
	}
	if err := e.requireView(ctx, req.BusinessID); err != nil {
		return nil, err
	}
	if req.Limit == 0 {
		req.Limit = 50
	}
	return e.repo.ListInvoices(ctx, req)
}

// assembleInput is the kind-agnostic payload shared by create and
// update once immutable fields have been pinned.
type assembleInput struct {
	Kind              DocumentKind
	PartyID           *int64
	OriginalInvoiceID *int64
	IssueDate         time.Time
	Lines             []LineInput
	Charges           []ChargeInput
	Discount          GlobalDiscount
	Rounding          RoundingSetting
	PaymentStatus     PaymentStatus
	AmountReceived    decimal.Decimal
}

// assemble resolves products, verifies the return linkage, computes
// totals, and applies stock deltas. prevLines, when non-nil, are the
// document's current lines whose deltas must be reversed first; the
// insufficient-stock check runs against the already-reversed balance.
func (e *Engine) assemble(ctx context.Context, tx TxRepository, businessID int64, in assembleInput, prevLines []Line) (*Invoice, error) {
	if in.Kind.IsReturn() {
		if in.OriginalInvoiceID == nil {
			return nil, fmt.Errorf("%w: %s requires original_invoice_id", ErrValidation, in.Kind)
		}
		orig, err := tx.GetInvoice(ctx, businessID, *in.OriginalInvoiceID)
		if err != nil {
			return nil, err
		}
		if orig == nil || orig.DeletedAt != nil {
			return nil, fmt.Errorf("%w: original document %d", ErrNotFound, *in.OriginalInvoiceID)
		}
		want := KindSale
		if in.Kind == KindPurchaseReturn {
			want = KindPurchase
		}
		if orig.Kind != want {
			return nil, fmt.Errorf("%w: %s must reference a %s document", ErrValidation, in.Kind, want)
		}
	}

	reversal := map[int64]int64{}
	if prevLines != nil {
		reversal = stockDeltas(in.Kind, prevLines)
	}
	deltas := map[int64]int64{}
	sign := in.Kind.StockSign()
	for i, ln := range in.Lines {
		if ln.ProductID == nil {
			continue
		}
		if ln.Qty < 0 {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidLineQuantity)
		}
		deltas[*ln.ProductID] += sign * ln.Qty
	}

	// Lock products in a deterministic order so concurrent documents
	// over the same SKUs cannot deadlock.
	touched := map[int64]struct{}{}
	for pid := range deltas {
		touched[pid] = struct{}{}
	}
	for pid := range reversal {
		touched[pid] = struct{}{}
	}
	pids := make([]int64, 0, len(touched))
	for pid := range touched {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	products := make(map[int64]Product, len(pids))
	for _, pid := range pids {
		p, err := tx.GetProductForUpdate(ctx, businessID, pid)
		if err != nil {
			return nil, err
		}
		products[pid] = p
	}
	for _, ln := range in.Lines {
		if ln.ProductID == nil {
			continue
		}
		if p := products[*ln.ProductID]; !p.IsActive {
			return nil, fmt.Errorf("%w: product %q is inactive", ErrValidation, p.Name)
		}
	}

	// Outbound documents must not drive stock below zero; balances that
	// are already negative from history only need to not get worse.
	for _, pid := range pids {
		p := products[pid]
		available := p.QtyOnHand - reversal[pid]
		if delta := deltas[pid]; delta < 0 && available+delta < 0 {
			return nil, &InsufficientStockError{
				ProductID:   pid,
				ProductName: p.Name,
				Available:   max(available, 0),
				Requested:   -delta,
			}
		}
	}
	for _, pid := range pids {
		if net := deltas[pid] - reversal[pid]; net != 0 {
			if err := tx.AdjustProductStock(ctx, businessID, pid, net); err != nil {
				return nil, err
			}
		}
	}

	priced := make([]PricedLine, len(in.Lines))
	for i, ln := range in.Lines {
		taxPct := decimal.Zero
		if ln.TaxPercent != nil {
			taxPct = *ln.TaxPercent
		} else if ln.ProductID != nil {
			taxPct = products[*ln.ProductID].TaxPercent
		}
		priced[i] = PricedLine{
			Qty:        ln.Qty,
			UnitPrice:  ln.UnitPrice,
			TaxPercent: taxPct,
			Discount:   ln.Discount,
		}
	}
	totals, err := ComputeTotals(priced, in.Discount, in.Charges, in.Rounding)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		BusinessID:         businessID,
		Kind:               in.Kind,
		PartyID:            in.PartyID,
		OriginalInvoiceID:  in.OriginalInvoiceID,
		IssueDate:          in.IssueDate,
		Charges:            make([]Charge, len(in.Charges)),
		Discount:           in.Discount,
		Rounding:           in.Rounding,
		Subtotal:           totals.Subtotal,
		LineDiscountTotal:  totals.LineDiscountTotal,
		GlobalDiscountAmt:  totals.GlobalDiscountAmt,
		TaxTotal:           totals.TaxTotal,
		ChargeTotal:        totals.ChargeTotal,
		RoundingAdjustment: totals.RoundingAdjustment,
		TotalAmount:        totals.TotalAmount,
		AmountReceived:     in.AmountReceived,
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = e.now().UTC()
	}
	inv.Lines = make([]Line, len(in.Lines))
	for i, ln := range in.Lines {
		la := totals.Lines[i]
		inv.Lines[i] = Line{
			LineNo:          i + 1,
			ProductID:       ln.ProductID,
			Description:     ln.Description,
			Qty:             ln.Qty,
			UnitPrice:       ln.UnitPrice,
			TaxPercent:      priced[i].TaxPercent,
			Discount:        ln.Discount,
			DiscountAmount:  la.DiscountAmount,
			DiscountPercent: la.DiscountPercent,
			TaxAmount:       la.TaxAmount,
			NetTotal:        la.NetTotal,
		}
	}
	for i, ch := range in.Charges {
		inv.Charges[i] = Charge{Name: ch.Name, Amount: ch.Amount}
	}
	inv.PaymentStatus = derivePaymentStatus(in.PaymentStatus, in.AmountReceived, totals.TotalAmount)
	inv.Balance = totals.TotalAmount.Sub(in.AmountReceived)
	return inv, nil
}

// withRetry runs fn in a transaction, retrying only serialization and
// counter conflicts. Any other failure surfaces on the first attempt.
func (e *Engine) withRetry(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = e.repo.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, db.ErrConflict) {
			return err
		}
		e.logger.Warn("transaction conflict, retrying", slog.Int("attempt", attempt))
	}
	return fmt.Errorf("%w: gave up after %d attempts: %v", ErrConflict, e.maxAttempts, err)
}

func (e *Engine) requireWrite(ctx context.Context, caller, businessID int64) error {
	ok, err := e.auth.CanWrite(ctx, caller, businessID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: write access required", ErrUnauthorized)
	}
	return nil
}

func (e *Engine) requireView(ctx context.Context, businessID int64) error {
	caller := authz.CallerFromContext(ctx)
	ok, err := e.auth.CanView(ctx, caller, businessID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: membership required", ErrUnauthorized)
	}
	return nil
}

func (e *Engine) bumpCache(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Bump(ctx); err != nil {
		e.logger.Warn("report cache bump failed", slog.String("error", err.Error()))
	}
}

func validateDocumentInput(kind DocumentKind, originalID *int64, status PaymentStatus, received decimal.Decimal) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown document kind %q", ErrValidation, kind)
	}
	if kind.IsReturn() && originalID == nil {
		return fmt.Errorf("%w: %s requires original_invoice_id", ErrValidation, kind)
	}
	if !kind.IsReturn() && originalID != nil {
		return fmt.Errorf("%w: original_invoice_id is only valid on returns", ErrValidation)
	}
	if status != "" && !status.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", ErrValidation, status)
	}
	if received.IsNegative() {
		return fmt.Errorf("%w: amount received must not be negative", ErrValidation)
	}
	return nil
}

// derivePaymentStatus trusts an explicit status and otherwise derives
// it from the received amount.
func derivePaymentStatus(status PaymentStatus, received, total decimal.Decimal) PaymentStatus {
	if status.Valid() {
		return status
	}
	switch {
	case received.LessThanOrEqual(decimal.Zero):
		return PaymentStatusUnpaid
	case received.GreaterThanOrEqual(total):
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}

// stockDeltas sums the signed stock effect of the lines per product.
func stockDeltas(kind DocumentKind, lines []Line) map[int64]int64 {
	sign := kind.StockSign()
	out := map[int64]int64{}
	for _, ln := range lines {
		if ln.ProductID != nil {
			out[*ln.ProductID] += sign * ln.Qty
		}
	}
	return out
}

func sortedProductIDs(m map[int64]int64) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
