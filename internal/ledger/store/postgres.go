package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	assessmodels "suvidha/internal/assess/models"
	"suvidha/internal/ledger"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
)

// Postgres implements ledger.Store on PostgreSQL. The monotonic guard runs
// inside a transaction that locks the pair's newest entry, so concurrent
// reassessments for one pair serialize and never commit out of order.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, entry ledger.Entry) error {
	missingJSON, err := json.Marshal(entry.Outcome.MissingRequirements)
	if err != nil {
		return fmt.Errorf("marshal missing requirements: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback()

	var (
		lastProfile int64
		lastRule    int64
		lastAt      time.Time
		havePrior   = true
	)
	err = tx.QueryRowContext(ctx, `
		SELECT profile_version, rule_set_version, produced_at
		FROM ledger_entries
		WHERE user_id = $1 AND scheme_id = $2
		ORDER BY produced_at DESC
		LIMIT 1
		FOR UPDATE
	`, uuid.UUID(entry.UserID), string(entry.SchemeID)).Scan(&lastProfile, &lastRule, &lastAt)
	if errors.Is(err, sql.ErrNoRows) {
		havePrior = false
	} else if err != nil {
		return fmt.Errorf("lock latest ledger entry: %w", err)
	}

	if entry.ProducedAt.IsZero() {
		entry.ProducedAt = time.Now().UTC()
	}
	if havePrior {
		if int64(entry.ProfileVersion) < lastProfile || int64(entry.RuleSetVersion) < lastRule {
			return sentinel.ErrStale
		}
		if !entry.ProducedAt.After(lastAt) {
			entry.ProducedAt = lastAt.Add(time.Microsecond)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			user_id, scheme_id, profile_version, rule_set_version,
			status, confidence, missing, benefit, deadline, produced_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(entry.UserID),
		string(entry.SchemeID),
		int64(entry.ProfileVersion),
		int64(entry.RuleSetVersion),
		string(entry.Outcome.Status),
		entry.Outcome.Confidence,
		missingJSON,
		entry.Outcome.EstimatedBenefit,
		entry.Outcome.Deadline,
		entry.ProducedAt,
	); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outcome_counters (status, total)
		VALUES ($1, 1)
		ON CONFLICT (status) DO UPDATE SET total = outcome_counters.total + 1
	`, string(entry.Outcome.Status)); err != nil {
		return fmt.Errorf("bump outcome counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger append: %w", err)
	}
	return nil
}

func (s *Postgres) History(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, scheme_id, profile_version, rule_set_version,
		       status, confidence, missing, benefit, deadline, produced_at
		FROM ledger_entries
		WHERE user_id = $1 AND scheme_id = $2
		ORDER BY produced_at
	`, uuid.UUID(userID), string(schemeID))
	if err != nil {
		return nil, fmt.Errorf("query ledger history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Postgres) Current(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) (*ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, scheme_id, profile_version, rule_set_version,
		       status, confidence, missing, benefit, deadline, produced_at
		FROM ledger_entries
		WHERE user_id = $1 AND scheme_id = $2
		ORDER BY produced_at DESC
		LIMIT 1
	`, uuid.UUID(userID), string(schemeID))
	if err != nil {
		return nil, fmt.Errorf("query current ledger entry: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &entries[0], nil
}

func (s *Postgres) UsersAssessedFor(ctx context.Context, schemeID domain.SchemeID) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM ledger_entries WHERE scheme_id = $1
	`, string(schemeID))
	if err != nil {
		return nil, fmt.Errorf("query assessed users: %w", err)
	}
	defer rows.Close()

	var out []domain.UserID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, domain.UserID(id))
	}
	return out, rows.Err()
}

func (s *Postgres) SchemesAssessed(ctx context.Context, userID domain.UserID) ([]domain.SchemeID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT scheme_id FROM ledger_entries WHERE user_id = $1
	`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query assessed schemes: %w", err)
	}
	defer rows.Close()

	var out []domain.SchemeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scheme id: %w", err)
		}
		out = append(out, domain.SchemeID(id))
	}
	return out, rows.Err()
}

func (s *Postgres) Erase(ctx context.Context, userID domain.UserID) error {
	// Counters are deliberately untouched: erasure removes the user's rows
	// while the anonymized aggregates keep their magnitudes.
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM ledger_entries WHERE user_id = $1
	`, uuid.UUID(userID)); err != nil {
		return fmt.Errorf("erase ledger entries: %w", err)
	}
	return nil
}

func (s *Postgres) AggregateTotals(ctx context.Context) (ledger.Totals, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, total FROM outcome_counters`)
	if err != nil {
		return ledger.Totals{}, fmt.Errorf("query outcome counters: %w", err)
	}
	defer rows.Close()

	var totals ledger.Totals
	for rows.Next() {
		var (
			status string
			total  int64
		)
		if err := rows.Scan(&status, &total); err != nil {
			return ledger.Totals{}, fmt.Errorf("scan outcome counter: %w", err)
		}
		switch assessmodels.Status(status) {
		case assessmodels.StatusEligible:
			totals.Eligible = total
		case assessmodels.StatusPartial:
			totals.Partial = total
		case assessmodels.StatusIneligible:
			totals.Ineligible = total
		}
	}
	return totals, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for rows.Next() {
		var (
			entry       ledger.Entry
			userID      uuid.UUID
			schemeID    string
			profileVer  int64
			ruleVer     int64
			status      string
			missingJSON []byte
			deadline    sql.NullTime
		)
		if err := rows.Scan(
			&userID,
			&schemeID,
			&profileVer,
			&ruleVer,
			&status,
			&entry.Outcome.Confidence,
			&missingJSON,
			&entry.Outcome.EstimatedBenefit,
			&deadline,
			&entry.ProducedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.UserID = domain.UserID(userID)
		entry.SchemeID = domain.SchemeID(schemeID)
		entry.ProfileVersion = domain.ProfileVersion(profileVer)
		entry.RuleSetVersion = domain.RuleVersion(ruleVer)
		entry.Outcome.SchemeID = entry.SchemeID
		entry.Outcome.RuleSetVersion = entry.RuleSetVersion
		entry.Outcome.Status = assessmodels.Status(status)
		if err := json.Unmarshal(missingJSON, &entry.Outcome.MissingRequirements); err != nil {
			return nil, fmt.Errorf("unmarshal missing requirements: %w", err)
		}
		if entry.Outcome.MissingRequirements == nil {
			entry.Outcome.MissingRequirements = []string{}
		}
		if deadline.Valid {
			t := deadline.Time
			entry.Outcome.Deadline = &t
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}
