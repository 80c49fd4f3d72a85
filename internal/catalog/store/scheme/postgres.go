package scheme

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"suvidha/internal/catalog/models"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
)

// Postgres implements ports.SchemeStore on PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, scheme *models.Scheme) error {
	query := `
		INSERT INTO schemes (id, name, description, benefit_type, benefit_amt, benefit_max, deadline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(scheme.ID),
		scheme.Name,
		scheme.Description,
		scheme.Benefit.Type,
		scheme.Benefit.Amount,
		scheme.Benefit.MaxAmount,
		scheme.Deadline,
		scheme.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert scheme: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, schemeID domain.SchemeID) (*models.Scheme, error) {
	query := `
		SELECT id, name, description, benefit_type, benefit_amt, benefit_max, deadline, created_at
		FROM schemes
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, string(schemeID))
	scheme, err := scanScheme(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query scheme: %w", err)
	}
	return scheme, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Scheme, error) {
	query := `
		SELECT id, name, description, benefit_type, benefit_amt, benefit_max, deadline, created_at
		FROM schemes
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query schemes: %w", err)
	}
	defer rows.Close()

	var out []*models.Scheme
	for rows.Next() {
		scheme, err := scanScheme(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan scheme: %w", err)
		}
		out = append(out, scheme)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemes: %w", err)
	}
	return out, nil
}

func scanScheme(scan func(...any) error) (*models.Scheme, error) {
	var (
		scheme   models.Scheme
		id       string
		deadline sql.NullTime
	)
	err := scan(
		&id,
		&scheme.Name,
		&scheme.Description,
		&scheme.Benefit.Type,
		&scheme.Benefit.Amount,
		&scheme.Benefit.MaxAmount,
		&deadline,
		&scheme.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	scheme.ID = domain.SchemeID(id)
	if deadline.Valid {
		t := deadline.Time
		scheme.Deadline = &t
	}
	return &scheme, nil
}
