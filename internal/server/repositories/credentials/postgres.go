package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
)

const selectColumns = `id, account_id, title, website, username, email, notes, category, tags,
	is_favorite, ciphertext, iv, last_accessed, created_at, updated_at`

var sortColumns = map[string]string{
	models.SortTitle:        "title",
	models.SortWebsite:      "website",
	models.SortCategory:     "category",
	models.SortCreatedAt:    "created_at",
	models.SortUpdatedAt:    "updated_at",
	models.SortLastAccessed: "last_accessed",
}

// idsFromJSON expands a JSON array parameter into a uuid set, keeping
// arguments scalar so they pass through any database/sql driver.
const idsFromJSON = `(SELECT (jsonb_array_elements_text(%s::jsonb))::uuid)`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var (
		c            models.Credential
		tags         []byte
		lastAccessed sql.NullTime
	)
	if err := row.Scan(
		&c.ID, &c.AccountID, &c.Title, &c.Website, &c.Username, &c.Email, &c.Notes, &c.Category, &tags,
		&c.IsFavorite, &c.Ciphertext, &c.IV, &lastAccessed, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tags, &c.Tags); err != nil {
		return nil, fmt.Errorf("db error: bad tags column: %w", err)
	}
	if lastAccessed.Valid {
		c.LastAccessed = &lastAccessed.Time
	}
	return &c, nil
}

func jsonList(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Credential, error) {
	c, err := scanCredential(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.Credential, 0)
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	query :=
		`INSERT INTO credentials (id, account_id, title, website, username, email, notes, category, tags,
			is_favorite, ciphertext, iv)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`

	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.AccountID, c.Title, c.Website, c.Username, c.Email, c.Notes, string(c.Category), jsonList(c.Tags),
		c.IsFavorite, c.Ciphertext, c.IV,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Credential, error) {
	return r.queryOne(ctx,
		`SELECT `+selectColumns+` FROM credentials WHERE id = $1 AND account_id = $2`,
		id, ownerID)
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	query :=
		`UPDATE credentials
		 SET title = $3, website = $4, username = $5, email = $6, notes = $7, category = $8, tags = $9,
		     is_favorite = $10, ciphertext = $11, iv = $12, updated_at = now()
		 WHERE id = $1 AND account_id = $2
		 RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.AccountID, c.Title, c.Website, c.Username, c.Email, c.Notes, string(c.Category), jsonList(c.Tags),
		c.IsFavorite, c.Ciphertext, c.IV,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1 AND account_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.RequireAffected(res)
}

func (r *PostgresRepository) DeleteByOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE account_id = $1`, ownerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func buildWhere(ownerID string, f models.CredentialFilter) (string, []any) {
	where := []string{"account_id = $1"}
	args := []any{ownerID}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		p := next("%" + escapeLike(s) + "%")
		where = append(where, fmt.Sprintf(
			`(title ILIKE %[1]s OR website ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s OR notes ILIKE %[1]s
			  OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS t WHERE t ILIKE %[1]s))`, p))
	}
	if f.Category != "" {
		where = append(where, "category = "+next(string(f.Category)))
	}
	if f.Favorite != nil {
		where = append(where, "is_favorite = "+next(*f.Favorite))
	}
	if len(f.Tags) > 0 {
		where = append(where, fmt.Sprintf("tags ?| ARRAY(SELECT jsonb_array_elements_text(%s::jsonb))", next(jsonList(f.Tags))))
	}

	return strings.Join(where, " AND "), args
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, f models.CredentialFilter) ([]models.Credential, int, error) {
	where, args := buildWhere(ownerID, f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM credentials WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "updated_at"
	}

	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE %s ORDER BY %s %s NULLS LAST, id LIMIT $%d OFFSET $%d`,
		selectColumns, where, column, dir, len(args)+1, len(args)+2)
	items, err := r.queryMany(ctx, query, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context, ownerID string) ([]models.Credential, error) {
	return r.queryMany(ctx,
		`SELECT `+selectColumns+` FROM credentials WHERE account_id = $1 ORDER BY title ASC, id`,
		ownerID)
}

func (r *PostgresRepository) FindByTitleWebsite(ctx context.Context, ownerID, title, website string) (*models.Credential, error) {
	return r.queryOne(ctx,
		`SELECT `+selectColumns+` FROM credentials
		 WHERE account_id = $1 AND title = $2 AND website = $3
		 ORDER BY created_at LIMIT 1`,
		ownerID, title, website)
}

func (r *PostgresRepository) ToggleFavorite(ctx context.Context, ownerID, id string) (*models.Credential, error) {
	return r.queryOne(ctx,
		`UPDATE credentials SET is_favorite = NOT is_favorite, updated_at = now()
		 WHERE id = $1 AND account_id = $2
		 RETURNING `+selectColumns,
		id, ownerID)
}

func (r *PostgresRepository) TouchAccessed(ctx context.Context, ownerID, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET last_accessed = $3 WHERE id = $1 AND account_id = $2`,
		id, ownerID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.RequireAffected(res)
}

func (r *PostgresRepository) Stats(ctx context.Context, ownerID string) (*models.CredentialStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, count(*), count(*) FILTER (WHERE is_favorite)
		 FROM credentials WHERE account_id = $1
		 GROUP BY category`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	stats := &models.CredentialStats{Categories: make(map[models.Category]int)}
	for rows.Next() {
		var (
			category         models.Category
			count, favorites int
		)
		if err := rows.Scan(&category, &count, &favorites); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		stats.Categories[category] = count
		stats.Total += count
		stats.Favorites += favorites
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stats, nil
}

func (r *PostgresRepository) Tags(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT t FROM credentials, jsonb_array_elements_text(tags) AS t
		 WHERE account_id = $1 AND t <> ''
		 ORDER BY t`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tags, nil
}

func (r *PostgresRepository) BulkUpdate(ctx context.Context, ownerID string, ids []string, p models.BulkPatch) (int, error) {
	var category, tags, favorite any
	if p.Category != nil {
		category = string(*p.Category)
	}
	if p.Tags != nil {
		tags = jsonList(*p.Tags)
	}
	if p.IsFavorite != nil {
		favorite = *p.IsFavorite
	}

	query := `UPDATE credentials
		 SET category = COALESCE($3, category), tags = COALESCE($4::jsonb, tags),
		     is_favorite = COALESCE($5, is_favorite), updated_at = now()
		 WHERE account_id = $1 AND id IN ` + fmt.Sprintf(idsFromJSON, "$2")

	res, err := r.db.ExecContext(ctx, query, ownerID, jsonList(ids), category, tags, favorite)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) BulkDelete(ctx context.Context, ownerID string, ids []string) (int, error) {
	query := `DELETE FROM credentials WHERE account_id = $1 AND id IN ` + fmt.Sprintf(idsFromJSON, "$2")

	res, err := r.db.ExecContext(ctx, query, ownerID, jsonList(ids))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(n), nil
}
