package ruleset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"suvidha/internal/catalog/models"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
)

// Postgres implements ports.RuleSetStore on PostgreSQL. Publish serialization
// per scheme comes from a FOR UPDATE row lock on the current version;
// readers run outside the transaction and see either the old or the new
// state because the close-and-insert commits atomically.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Publish(ctx context.Context, schemeID domain.SchemeID, criteria []rules.Criterion, effectiveFrom time.Time) (*models.RuleSet, error) {
	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("marshal criteria: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publish tx: %w", err)
	}
	defer tx.Rollback()

	// Lock the current version row; concurrent publishes for the same scheme
	// queue here.
	var (
		currentVersion domain.RuleVersion
		currentFrom    time.Time
		haveCurrent    = true
	)
	err = tx.QueryRowContext(ctx, `
		SELECT version, effective_from
		FROM rule_sets
		WHERE scheme_id = $1 AND effective_until IS NULL
		FOR UPDATE
	`, string(schemeID)).Scan(&currentVersion, &currentFrom)
	if errors.Is(err, sql.ErrNoRows) {
		haveCurrent = false
	} else if err != nil {
		return nil, fmt.Errorf("lock current rule set: %w", err)
	}

	next := &models.RuleSet{
		SchemeID:      schemeID,
		Version:       1,
		EffectiveFrom: effectiveFrom,
		Criteria:      criteria,
	}

	if haveCurrent {
		if !effectiveFrom.After(currentFrom) {
			return nil, sentinel.ErrConflict
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE rule_sets
			SET effective_until = $3
			WHERE scheme_id = $1 AND version = $2
		`, string(schemeID), int64(currentVersion), effectiveFrom); err != nil {
			return nil, fmt.Errorf("close current rule set: %w", err)
		}
		next.Version = currentVersion + 1
		next.Supersedes = currentVersion
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rule_sets (scheme_id, version, effective_from, effective_until, supersedes, criteria)
		VALUES ($1, $2, $3, NULL, $4, $5)
	`, string(schemeID), int64(next.Version), effectiveFrom, int64(next.Supersedes), criteriaJSON); err != nil {
		return nil, fmt.Errorf("insert rule set: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit publish: %w", err)
	}
	return next, nil
}

func (s *Postgres) Resolve(ctx context.Context, schemeID domain.SchemeID, at time.Time) (*models.RuleSet, error) {
	query := `
		SELECT scheme_id, version, effective_from, effective_until, supersedes, criteria
		FROM rule_sets
		WHERE scheme_id = $1
		  AND effective_from <= $2
		  AND (effective_until IS NULL OR effective_until > $2)
		ORDER BY effective_from DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, string(schemeID), at)
	rs, err := scanRuleSet(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve rule set: %w", err)
	}
	return rs, nil
}

func (s *Postgres) Current(ctx context.Context, schemeID domain.SchemeID) (*models.RuleSet, error) {
	return s.Resolve(ctx, schemeID, time.Now())
}

func (s *Postgres) History(ctx context.Context, schemeID domain.SchemeID) ([]*models.RuleSet, error) {
	query := `
		SELECT scheme_id, version, effective_from, effective_until, supersedes, criteria
		FROM rule_sets
		WHERE scheme_id = $1
		ORDER BY version
	`
	rows, err := s.db.QueryContext(ctx, query, string(schemeID))
	if err != nil {
		return nil, fmt.Errorf("query rule set history: %w", err)
	}
	defer rows.Close()

	var out []*models.RuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan rule set: %w", err)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule sets: %w", err)
	}
	return out, nil
}

func scanRuleSet(scan func(...any) error) (*models.RuleSet, error) {
	var (
		rs           models.RuleSet
		schemeID     string
		version      int64
		until        sql.NullTime
		supersedes   int64
		criteriaJSON []byte
	)
	if err := scan(&schemeID, &version, &rs.EffectiveFrom, &until, &supersedes, &criteriaJSON); err != nil {
		return nil, err
	}
	rs.SchemeID = domain.SchemeID(schemeID)
	rs.Version = domain.RuleVersion(version)
	rs.Supersedes = domain.RuleVersion(supersedes)
	if until.Valid {
		t := until.Time
		rs.EffectiveUntil = &t
	}
	if err := json.Unmarshal(criteriaJSON, &rs.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	if rs.Criteria == nil {
		rs.Criteria = []rules.Criterion{}
	}
	return &rs, nil
}
