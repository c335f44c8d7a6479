package parties

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence port for the directory.
type Repository interface {
	Insert(ctx context.Context, p *Party) error
	Update(ctx context.Context, p *Party) error
	Get(ctx context.Context, businessID, partyID int64) (*Party, error)
	List(ctx context.Context, businessID int64, kind Kind) ([]Party, error)
	SoftDelete(ctx context.Context, businessID, partyID int64, at time.Time) error
}

// PgRepository is the PostgreSQL-backed directory store.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, p *Party) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO parties (business_id, kind, name, email, phone, address, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
		 RETURNING id`,
		p.BusinessID, p.Kind, p.Name, p.Email, p.Phone, p.Address, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, p *Party) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE parties SET name = $3, email = $4, phone = $5, address = $6, updated_at = $7
		 WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL`,
		p.BusinessID, p.ID, p.Name, p.Email, p.Phone, p.Address, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update party %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: party %d", ErrNotFound, p.ID)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, businessID, partyID int64) (*Party, error) {
	var p Party
	err := r.pool.QueryRow(ctx,
		`SELECT id, business_id, kind, name, email, phone, address, created_at, updated_at, deleted_at
		 FROM parties WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL`,
		businessID, partyID,
	).Scan(&p.ID, &p.BusinessID, &p.Kind, &p.Name, &p.Email, &p.Phone, &p.Address,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get party %d: %w", partyID, err)
	}
	return &p, nil
}

func (r *PgRepository) List(ctx context.Context, businessID int64, kind Kind) ([]Party, error) {
	sql := `SELECT id, business_id, kind, name, email, phone, address, created_at, updated_at, deleted_at
		FROM parties WHERE business_id = $1 AND deleted_at IS NULL`
	args := []any{businessID}
	if kind != "" {
		sql += ` AND kind = $2`
		args = append(args, kind)
	}
	sql += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var out []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.Kind, &p.Name, &p.Email, &p.Phone,
			&p.Address, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgRepository) SoftDelete(ctx context.Context, businessID, partyID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE parties SET deleted_at = $3, updated_at = $3
		 WHERE business_id = $1 AND id = $2 AND deleted_at IS NULL`,
		businessID, partyID, at,
	)
	if err != nil {
		return fmt.Errorf("delete party %d: %w", partyID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: party %d", ErrNotFound, partyID)
	}
	return nil
}
