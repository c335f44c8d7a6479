package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/billing"
)

// Repository is the read-side persistence port for reports.
type Repository interface {
	Summarize(ctx context.Context, q Query, start, end time.Time) (*Summary, error)
	BusinessIDs(ctx context.Context) ([]int64, error)
}

// PgRepository aggregates documents straight from PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Summarize aggregates live documents in [start, end).
func (r *PgRepository) Summarize(ctx context.Context, q Query, start, end time.Time) (*Summary, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, doc_number, kind, party_id, issue_date, payment_status, total_amount, tax_total, balance
		FROM invoices
		WHERE business_id = $1 AND deleted_at IS NULL AND issue_date >= $2 AND issue_date < $3`)
	args := []any{q.BusinessID, start, end}

	if q.Kind != "" {
		args = append(args, q.Kind)
		fmt.Fprintf(&sb, " AND kind = $%d", len(args))
	}
	if q.PaymentStatus != nil {
		args = append(args, *q.PaymentStatus)
		fmt.Fprintf(&sb, " AND payment_status = $%d", len(args))
	}
	sb.WriteString(" ORDER BY issue_date, doc_seq")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("summarize documents: %w", err)
	}
	defer rows.Close()

	sum := &Summary{
		BusinessID:  q.BusinessID,
		Kind:        q.Kind,
		RangeStart:  start,
		RangeEnd:    end,
		TotalAmount: decimal.Zero,
		TaxTotal:    decimal.Zero,
		Outstanding: decimal.Zero,
	}
	for rows.Next() {
		var d DocumentSummary
		var tax, balance decimal.Decimal
		if err := rows.Scan(&d.ID, &d.DocNumber, &d.Kind, &d.PartyID, &d.IssueDate,
			&d.PaymentStatus, &d.TotalAmount, &tax, &balance); err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		sum.Documents = append(sum.Documents, d)
		sum.Count++
		sum.TotalAmount = sum.TotalAmount.Add(d.TotalAmount)
		sum.TaxTotal = sum.TaxTotal.Add(tax)
		if d.PaymentStatus != billing.PaymentStatusPaid {
			sum.Outstanding = sum.Outstanding.Add(balance)
		}
	}
	return sum, rows.Err()
}

// BusinessIDs lists businesses with at least one member, for warmup.
func (r *PgRepository) BusinessIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT business_id FROM business_members ORDER BY business_id`)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
