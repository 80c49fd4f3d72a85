package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"suvidha/internal/profile/models"
	"suvidha/pkg/domain"
	"suvidha/pkg/platform/sentinel"
)

// Postgres implements the profile store on PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Put(ctx context.Context, userID domain.UserID, fields domain.Fields, now time.Time) (*models.Profile, error) {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal profile fields: %w", err)
	}

	// Version is derived inside the insert; a concurrent writer for the same
	// user trips the primary key, and we recompute. Two retries cover any
	// realistic contention on a single citizen's profile.
	for attempt := 0; ; attempt++ {
		var version int64
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO profiles (user_id, version, fields, created_at)
			SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3
			FROM profiles WHERE user_id = $1
			RETURNING version
		`, uuid.UUID(userID), fieldsJSON, now).Scan(&version)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && attempt < 2 {
				continue
			}
			return nil, fmt.Errorf("insert profile version: %w", err)
		}
		return &models.Profile{
			UserID:    userID,
			Version:   domain.ProfileVersion(version),
			Fields:    fields.Clone(),
			CreatedAt: now,
		}, nil
	}
}

func (s *Postgres) Get(ctx context.Context, userID domain.UserID, version domain.ProfileVersion) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, version, fields, created_at
		FROM profiles
		WHERE user_id = $1 AND version = $2
	`, uuid.UUID(userID), int64(version))
	return scanProfile(row.Scan)
}

func (s *Postgres) Latest(ctx context.Context, userID domain.UserID) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, version, fields, created_at
		FROM profiles
		WHERE user_id = $1
		ORDER BY version DESC
		LIMIT 1
	`, uuid.UUID(userID))
	return scanProfile(row.Scan)
}

func (s *Postgres) Erase(ctx context.Context, userID domain.UserID) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM profiles WHERE user_id = $1
	`, uuid.UUID(userID)); err != nil {
		return fmt.Errorf("erase profiles: %w", err)
	}
	return nil
}

func scanProfile(scan func(...any) error) (*models.Profile, error) {
	var (
		p          models.Profile
		userID     uuid.UUID
		version    int64
		fieldsJSON []byte
	)
	err := scan(&userID, &version, &fieldsJSON, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.UserID = domain.UserID(userID)
	p.Version = domain.ProfileVersion(version)
	if err := json.Unmarshal(fieldsJSON, &p.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal profile fields: %w", err)
	}
	return &p, nil
}
