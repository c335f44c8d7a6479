package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence port for the catalog.
type Repository interface {
	Insert(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Get(ctx context.Context, businessID, productID int64) (*Product, error)
	List(ctx context.Context, req ListProductsRequest) ([]Product, error)
	SoftDelete(ctx context.Context, businessID, productID int64, at time.Time) error
	HasLiveDocumentLines(ctx context.Context, productID int64) (bool, error)
}

// PgRepository is the PostgreSQL-backed catalog store.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const productColumns = `id, business_id, code, name, description, unit_price, tax_percent,
	qty_on_hand, is_active, created_at, updated_at, deleted_at`

func (r *PgRepository) Insert(ctx context.Context, p *Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (business_id, code, name, description, unit_price, tax_percent,
			qty_on_hand, is_active, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		 RETURNING id`,
		p.BusinessID, p.Code, p.Name, p.Description, p.UnitPrice, p.TaxPercent,
		p.QtyOnHand, p.IsActive, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, p.Code)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, p *Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET code = $3, name = $4, description = $5, unit_price = $6,
			tax_percent = $7, is_active = $8, updated_at = $9
		 WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL`,
		p.BusinessID, p.ID, p.Code, p.Name, p.Description, p.UnitPrice,
		p.TaxPercent, p.IsActive, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, p.Code)
		}
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", ErrNotFound, p.ID)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, businessID, productID int64) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL`,
		businessID, productID,
	).Scan(&p.ID, &p.BusinessID, &p.Code, &p.Name, &p.Description, &p.UnitPrice,
		&p.TaxPercent, &p.QtyOnHand, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	return &p, nil
}

func (r *PgRepository) List(ctx context.Context, req ListProductsRequest) ([]Product, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + productColumns + ` FROM products WHERE business_id = $1 AND deleted_at IS NULL`)
	args := []any{req.BusinessID}

	if req.ActiveOnly {
		sb.WriteString(" AND is_active")
	}
	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		fmt.Fprintf(&sb, " AND (name ILIKE $%d OR code ILIKE $%d)", len(args), len(args))
	}
	sb.WriteString(" ORDER BY name")
	args = append(args, req.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, req.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.Code, &p.Name, &p.Description,
			&p.UnitPrice, &p.TaxPercent, &p.QtyOnHand, &p.IsActive,
			&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgRepository) SoftDelete(ctx context.Context, businessID, productID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET deleted_at = $3, updated_at = $3
		 WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL`,
		businessID, productID, at,
	)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	return nil
}

// HasLiveDocumentLines reports whether any non-deleted invoice still
// references the product.
func (r *PgRepository) HasLiveDocumentLines(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM invoice_lines l
			JOIN invoices i ON i.id = l.invoice_id
			WHERE l.product_id = $1 AND i.deleted_at IS NULL
		)`,
		productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product references: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
