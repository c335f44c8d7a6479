// Package reports aggregates finalized documents into period summaries
// for dashboards. Results are cached in Redis and recomputed lazily
// after any document mutation bumps the cache version.
package reports

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/billing"
)

var (
	// ErrValidation marks malformed report queries.
	ErrValidation = errors.New("reports: invalid query")
	// ErrUnauthorized is returned when the caller lacks membership.
	ErrUnauthorized = errors.New("reports: operation not permitted")
)

// RangeName is a server-resolved reporting period.
type RangeName string

const (
	RangeToday RangeName = "today"
	RangeWeek  RangeName = "week"
	RangeMonth RangeName = "month"
)

// NamedRanges lists the ranges the warmup job precomputes.
var NamedRanges = []RangeName{RangeToday, RangeWeek, RangeMonth}

// ResolveRange turns a named range into a half-open [start, end)
// interval in now's location. Weeks start on Monday.
func ResolveRange(name RangeName, now time.Time) (time.Time, time.Time, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch name {
	case RangeToday:
		return midnight, midnight.AddDate(0, 0, 1), nil
	case RangeWeek:
		offset := (int(midnight.Weekday()) + 6) % 7 // Monday = 0
		start := midnight.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case RangeMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown range %q", ErrValidation, name)
}

// Query selects the documents to aggregate. Either Range or both From
// and To must be set.
type Query struct {
	BusinessID    int64
	Kind          billing.DocumentKind
	Range         RangeName
	From          *time.Time
	To            *time.Time
	PaymentStatus *billing.PaymentStatus
}

// DocumentSummary is one document row inside a report.
type DocumentSummary struct {
	ID            int64                 `json:"id"`
	DocNumber     string                `json:"doc_number"`
	Kind          billing.DocumentKind  `json:"kind"`
	PartyID       *int64                `json:"party_id,omitempty"`
	IssueDate     time.Time             `json:"issue_date"`
	PaymentStatus billing.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
}

// Summary is the aggregate over one period.
type Summary struct {
	BusinessID  int64                `json:"business_id"`
	Kind        billing.DocumentKind `json:"kind,omitempty"`
	RangeStart  time.Time            `json:"range_start"`
	RangeEnd    time.Time            `json:"range_end"`
	Count       int                  `json:"count"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	TaxTotal    decimal.Decimal      `json:"tax_total"`
	Outstanding decimal.Decimal      `json:"outstanding"`
	Documents   []DocumentSummary    `json:"documents"`
}
