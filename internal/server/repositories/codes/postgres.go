package codes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Replace(ctx context.Context, c *models.OneTimeCode) (*models.OneTimeCode, error) {
	query :=
		`INSERT INTO one_time_codes (id, email, purpose, code, state, attempts, expires_at, verified_at, staged)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, NULL, $7)
		 ON CONFLICT (email, purpose) DO UPDATE
		 SET id = EXCLUDED.id, code = EXCLUDED.code, state = EXCLUDED.state, attempts = 0,
		     expires_at = EXCLUDED.expires_at, verified_at = NULL, staged = EXCLUDED.staged,
		     created_at = now(), updated_at = now()
		 RETURNING created_at, updated_at`

	var staged any
	if c.Staged != nil {
		b, err := json.Marshal(c.Staged)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		staged = string(b)
	}

	c.ID = uuid.NewString()
	c.State = models.CodePending
	c.Attempts = 0
	c.VerifiedAt = nil

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.Email, string(c.Purpose), c.Code, string(c.State), c.ExpiresAt, staged,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Find(ctx context.Context, email string, purpose models.Purpose) (*models.OneTimeCode, error) {
	query :=
		`SELECT id, email, purpose, code, state, attempts, expires_at, verified_at, staged, created_at, updated_at
		 FROM one_time_codes WHERE email = $1 AND purpose = $2`

	var (
		c          models.OneTimeCode
		verifiedAt sql.NullTime
		staged     []byte
	)
	err := r.db.QueryRowContext(ctx, query, email, string(purpose)).Scan(
		&c.ID, &c.Email, &c.Purpose, &c.Code, &c.State, &c.Attempts, &c.ExpiresAt,
		&verifiedAt, &staged, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if verifiedAt.Valid {
		c.VerifiedAt = &verifiedAt.Time
	}
	if len(staged) > 0 {
		c.Staged = &models.StagedAccount{}
		if err := json.Unmarshal(staged, c.Staged); err != nil {
			return nil, fmt.Errorf("db error: bad staged column: %w", err)
		}
	}
	return &c, nil
}

func (r *PostgresRepository) RecordFailure(ctx context.Context, c *models.OneTimeCode, maxAttempts int) (int, error) {
	query :=
		`UPDATE one_time_codes SET attempts = attempts + 1, updated_at = now()
		 WHERE id = $1 AND state = $2 AND attempts < $3
		 RETURNING attempts`

	var attempts int
	err := r.db.QueryRowContext(ctx, query, c.ID, string(c.State), maxAttempts).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrVersionConflict
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}

func (r *PostgresRepository) Transition(ctx context.Context, c *models.OneTimeCode, to models.CodeState, at time.Time, maxAttempts int) error {
	query :=
		`UPDATE one_time_codes SET state = $3, verified_at = COALESCE($4, verified_at), updated_at = now()
		 WHERE id = $1 AND state = $2 AND attempts < $5
		   AND (state <> 'pending' OR expires_at > $6)`

	var verifiedAt any
	if to == models.CodeVerified {
		verifiedAt = at
	}

	res, err := r.db.ExecContext(ctx, query, c.ID, string(c.State), string(to), verifiedAt, maxAttempts, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.RequireAffected(res); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrVersionConflict
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, email string, purpose models.Purpose) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM one_time_codes WHERE email = $1 AND purpose = $2`, email, string(purpose)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE email = $1`, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
