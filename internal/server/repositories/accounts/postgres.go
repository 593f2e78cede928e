package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const selectColumns = `id, email, first_name, last_name, login_hash, master_hash,
	email_verified, two_factor_enabled, master_failed_attempts, last_master_attempt,
	last_login, email_notifications, security_alerts, auto_logout_minutes,
	created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (id, email, first_name, last_name, login_hash, master_hash,
			email_verified, email_notifications, security_alerts, auto_logout_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`

	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Email, a.FirstName, a.LastName, a.LoginHash, a.MasterHash,
		a.EmailVerified, a.Settings.EmailNotifications, a.Settings.SecurityAlerts, a.Settings.AutoLogoutMinutes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	var (
		a                         models.Account
		lastMasterAttempt, logged sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.LoginHash, &a.MasterHash,
		&a.EmailVerified, &a.TwoFactorEnabled, &a.MasterFailedAttempts, &lastMasterAttempt,
		&logged, &a.Settings.EmailNotifications, &a.Settings.SecurityAlerts, &a.Settings.AutoLogoutMinutes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lastMasterAttempt.Valid {
		a.LastMasterAttempt = &lastMasterAttempt.Time
	}
	if logged.Valid {
		a.LastLogin = &logged.Time
	}
	return &a, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.RequireAffected(res)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, firstName, lastName string) error {
	return r.exec(ctx,
		`UPDATE accounts SET first_name = $2, last_name = $3, updated_at = now() WHERE id = $1`,
		id, firstName, lastName)
}

func (r *PostgresRepository) UpdateLoginHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx,
		`UPDATE accounts SET login_hash = $2, updated_at = now() WHERE id = $1`,
		id, hash)
}

func (r *PostgresRepository) UpdateMasterHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx,
		`UPDATE accounts SET master_hash = $2, master_failed_attempts = 0, updated_at = now() WHERE id = $1`,
		id, hash)
}

func (r *PostgresRepository) SetTwoFactor(ctx context.Context, id string, enabled bool) error {
	return r.exec(ctx,
		`UPDATE accounts SET two_factor_enabled = $2, updated_at = now() WHERE id = $1`,
		id, enabled)
}

func (r *PostgresRepository) UpdateSettings(ctx context.Context, id string, s models.AccountSettings) error {
	return r.exec(ctx,
		`UPDATE accounts SET email_notifications = $2, security_alerts = $3, auto_logout_minutes = $4, updated_at = now()
		 WHERE id = $1`,
		id, s.EmailNotifications, s.SecurityAlerts, s.AutoLogoutMinutes)
}

func (r *PostgresRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE accounts SET last_login = $2, master_failed_attempts = 0 WHERE id = $1`,
		id, at)
}

func (r *PostgresRepository) RecordMasterFailure(ctx context.Context, id string, at time.Time) (int, error) {
	query :=
		`UPDATE accounts SET master_failed_attempts = master_failed_attempts + 1, last_master_attempt = $2
		 WHERE id = $1
		 RETURNING master_failed_attempts`

	var n int
	if err := r.db.QueryRowContext(ctx, query, id, at).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ResetMasterFailures(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE accounts SET master_failed_attempts = 0 WHERE id = $1`, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}
