package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx so read helpers
// can run inside and outside transactions.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRepository is the PostgreSQL implementation of the engine's
// persistence port.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PgRepository over the shared pool.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction. Serialization
// failures and unique violations come back as db.ErrConflict so the
// engine can retry them.
func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetInvoice loads one document with its lines and charges.
func (r *PgRepository) GetInvoice(ctx context.Context, businessID, invoiceID int64) (*Invoice, error) {
	return getInvoice(ctx, r.pool, businessID, invoiceID, false)
}

const invoiceColumns = `id, public_id, business_id, kind, doc_number, doc_seq, party_id, original_invoice_id,
	issue_date, discount_mode, discount_percent, discount_amount, discount_timing,
	rounding_mode, rounding_direction, rounding_magnitude,
	subtotal, line_discount_total, global_discount_amount, tax_total, charge_total,
	rounding_adjustment, total_amount, payment_status, amount_received, balance,
	created_by, created_at, updated_at, deleted_at`

// ListInvoices returns live documents matching the filter, newest
// first by sequence. Lines and charges are not hydrated for lists.
func (r *PgRepository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + invoiceColumns + ` FROM invoices WHERE business_id = $1 AND deleted_at IS NULL`)
	args := []any{req.BusinessID}

	if req.Kind != "" {
		args = append(args, req.Kind)
		fmt.Fprintf(&sb, " AND kind = $%d", len(args))
	}
	if req.PaymentStatus != nil {
		args = append(args, *req.PaymentStatus)
		fmt.Fprintf(&sb, " AND payment_status = $%d", len(args))
	}
	if req.DateFrom != nil {
		args = append(args, *req.DateFrom)
		fmt.Fprintf(&sb, " AND issue_date >= $%d", len(args))
	}
	if req.DateTo != nil {
		args = append(args, *req.DateTo)
		fmt.Fprintf(&sb, " AND issue_date < $%d", len(args))
	}
	sb.WriteString(" ORDER BY doc_seq DESC, id DESC")
	args = append(args, req.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, req.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// txRepo exposes the engine's store operations bound to one open
// transaction.
type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetProductForUpdate(ctx context.Context, businessID, productID int64) (Product, error) {
	var p Product
	err := t.tx.QueryRow(ctx,
		`SELECT id, business_id, name, unit_price, tax_percent, qty_on_hand, is_active
		 FROM products
		 WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL
		 FOR UPDATE`,
		businessID, productID,
	).Scan(&p.ID, &p.BusinessID, &p.Name, &p.UnitPrice, &p.TaxPercent, &p.QtyOnHand, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return Product{}, fmt.Errorf("lock product %d: %w", productID, err)
	}
	return p, nil
}

func (t *txRepo) AdjustProductStock(ctx context.Context, businessID, productID, delta int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products SET qty_on_hand = qty_on_hand + $3, updated_at = NOW()
		 WHERE business_id = $1 AND id = $2`,
		businessID, productID, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust stock for product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	return nil
}

// NextDocumentNumber increments the per-(business, kind) counter
// atomically. The first document of a kind seeds the counter row.
func (t *txRepo) NextDocumentNumber(ctx context.Context, businessID int64, kind DocumentKind) (int64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO document_counters (business_id, doc_kind, last_no)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (business_id, doc_kind)
		 DO UPDATE SET last_no = document_counters.last_no + 1
		 RETURNING last_no`,
		businessID, kind,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next document number: %w", err)
	}
	return seq, nil
}

func (t *txRepo) GetInvoice(ctx context.Context, businessID, invoiceID int64) (*Invoice, error) {
	return getInvoice(ctx, t.tx, businessID, invoiceID, false)
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, businessID, invoiceID int64) (*Invoice, error) {
	return getInvoice(ctx, t.tx, businessID, invoiceID, true)
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv *Invoice) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO invoices (
			public_id, business_id, kind, doc_number, doc_seq, party_id, original_invoice_id,
			issue_date, discount_mode, discount_percent, discount_amount, discount_timing,
			rounding_mode, rounding_direction, rounding_magnitude,
			subtotal, line_discount_total, global_discount_amount, tax_total, charge_total,
			rounding_adjustment, total_amount, payment_status, amount_received, balance,
			created_by, created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28
		) RETURNING id`,
		inv.PublicID, inv.BusinessID, inv.Kind, inv.DocNumber, inv.DocSeq, inv.PartyID, inv.OriginalInvoiceID,
		inv.IssueDate, inv.Discount.Mode, inv.Discount.Percent, inv.Discount.Amount, inv.Discount.Timing,
		inv.Rounding.Mode, inv.Rounding.Direction, inv.Rounding.Magnitude,
		inv.Subtotal, inv.LineDiscountTotal, inv.GlobalDiscountAmt, inv.TaxTotal, inv.ChargeTotal,
		inv.RoundingAdjustment, inv.TotalAmount, inv.PaymentStatus, inv.AmountReceived, inv.Balance,
		inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return t.insertDetails(ctx, inv)
}

func (t *txRepo) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE invoices SET
			party_id = $3, issue_date = $4,
			discount_mode = $5, discount_percent = $6, discount_amount = $7, discount_timing = $8,
			rounding_mode = $9, rounding_direction = $10, rounding_magnitude = $11,
			subtotal = $12, line_discount_total = $13, global_discount_amount = $14,
			tax_total = $15, charge_total = $16, rounding_adjustment = $17, total_amount = $18,
			payment_status = $19, amount_received = $20, balance = $21, updated_at = $22
		 WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL`,
		inv.BusinessID, inv.ID, inv.PartyID, inv.IssueDate,
		inv.Discount.Mode, inv.Discount.Percent, inv.Discount.Amount, inv.Discount.Timing,
		inv.Rounding.Mode, inv.Rounding.Direction, inv.Rounding.Magnitude,
		inv.Subtotal, inv.LineDiscountTotal, inv.GlobalDiscountAmt,
		inv.TaxTotal, inv.ChargeTotal, inv.RoundingAdjustment, inv.TotalAmount,
		inv.PaymentStatus, inv.AmountReceived, inv.Balance, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice %d: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d", ErrNotFound, inv.ID)
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("clear invoice lines: %w", err)
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_charges WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("clear invoice charges: %w", err)
	}
	return t.insertDetails(ctx, inv)
}

func (t *txRepo) insertDetails(ctx context.Context, inv *Invoice) error {
	for i := range inv.Lines {
		ln := &inv.Lines[i]
		ln.InvoiceID = inv.ID
		err := t.tx.QueryRow(ctx,
			`INSERT INTO invoice_lines (
				invoice_id, line_no, product_id, description, qty, unit_price, tax_percent,
				discount_mode, discount_percent_input, discount_amount_input,
				discount_amount, discount_percent, tax_amount, net_total
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			RETURNING id`,
			inv.ID, ln.LineNo, ln.ProductID, ln.Description, ln.Qty, ln.UnitPrice, ln.TaxPercent,
			ln.Discount.Mode, ln.Discount.Percent, ln.Discount.Amount,
			ln.DiscountAmount, ln.DiscountPercent, ln.TaxAmount, ln.NetTotal,
		).Scan(&ln.ID)
		if err != nil {
			return fmt.Errorf("insert invoice line %d: %w", ln.LineNo, err)
		}
	}
	for i := range inv.Charges {
		ch := &inv.Charges[i]
		ch.InvoiceID = inv.ID
		err := t.tx.QueryRow(ctx,
			`INSERT INTO invoice_charges (invoice_id, name, amount) VALUES ($1,$2,$3) RETURNING id`,
			inv.ID, ch.Name, ch.Amount,
		).Scan(&ch.ID)
		if err != nil {
			return fmt.Errorf("insert invoice charge %q: %w", ch.Name, err)
		}
	}
	return nil
}

func (t *txRepo) SoftDeleteInvoice(ctx context.Context, businessID, invoiceID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE invoices SET deleted_at = $3, updated_at = $3
		 WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL`,
		businessID, invoiceID, at,
	)
	if err != nil {
		return fmt.Errorf("delete invoice %d: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d", ErrNotFound, invoiceID)
	}
	return nil
}

func getInvoice(ctx context.Context, q queryer, businessID, invoiceID int64, forUpdate bool) (*Invoice, error) {
	sql := `SELECT ` + invoiceColumns + ` FROM invoices WHERE business_id = $1 AND id = $2`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	inv, err := scanInvoice(q.QueryRow(ctx, sql, businessID, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT id, invoice_id, line_no, product_id, description, qty, unit_price, tax_percent,
			discount_mode, discount_percent_input, discount_amount_input,
			discount_amount, discount_percent, tax_amount, net_total
		 FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_no`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("load invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ln Line
		if err := rows.Scan(
			&ln.ID, &ln.InvoiceID, &ln.LineNo, &ln.ProductID, &ln.Description, &ln.Qty,
			&ln.UnitPrice, &ln.TaxPercent,
			&ln.Discount.Mode, &ln.Discount.Percent, &ln.Discount.Amount,
			&ln.DiscountAmount, &ln.DiscountPercent, &ln.TaxAmount, &ln.NetTotal,
		); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		inv.Lines = append(inv.Lines, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chRows, err := q.Query(ctx,
		`SELECT id, invoice_id, name, amount FROM invoice_charges WHERE invoice_id = $1 ORDER BY id`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("load invoice charges: %w", err)
	}
	defer chRows.Close()
	for chRows.Next() {
		var ch Charge
		if err := chRows.Scan(&ch.ID, &ch.InvoiceID, &ch.Name, &ch.Amount); err != nil {
			return nil, fmt.Errorf("scan invoice charge: %w", err)
		}
		inv.Charges = append(inv.Charges, ch)
	}
	if err := chRows.Err(); err != nil {
		return nil, err
	}
	return inv, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.PublicID, &inv.BusinessID, &inv.Kind, &inv.DocNumber, &inv.DocSeq,
		&inv.PartyID, &inv.OriginalInvoiceID, &inv.IssueDate,
		&inv.Discount.Mode, &inv.Discount.Percent, &inv.Discount.Amount, &inv.Discount.Timing,
		&inv.Rounding.Mode, &inv.Rounding.Direction, &inv.Rounding.Magnitude,
		&inv.Subtotal, &inv.LineDiscountTotal, &inv.GlobalDiscountAmt, &inv.TaxTotal,
		&inv.ChargeTotal, &inv.RoundingAdjustment, &inv.TotalAmount,
		&inv.PaymentStatus, &inv.AmountReceived, &inv.Balance,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
