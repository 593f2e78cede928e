package codes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultRetention is how long a record outlives its expiry in Redis, so a
// verified reset code stays redeemable for the reset window and late
// guesses still see "expired" instead of "not found".
const DefaultRetention = time.Hour

const casRetries = 5

// RetentionFor returns a retention that keeps a record at least resetWindow
// past its expiry. A code is verified before it expires, so the key then
// outlives the window in which the verified code can be redeemed.
func RetentionFor(resetWindow time.Duration) time.Duration {
	return max(DefaultRetention, resetWindow)
}

var allPurposes = []models.Purpose{
	models.PurposeRegistration, models.PurposePasswordReset, models.PurposeTwoFactor,
}

// RedisRepository keeps each record as a JSON value under
// otp:{purpose}:{email}. Conditional updates use WATCH/MULTI.
type RedisRepository struct {
	client    redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

func NewRedisRepository(client redis.UniversalClient, retention time.Duration) *RedisRepository {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisRepository{client: client, retention: retention, now: time.Now}
}

func codeKey(purpose models.Purpose, email string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, email)
}

func (r *RedisRepository) Replace(ctx context.Context, c *models.OneTimeCode) (*models.OneTimeCode, error) {
	now := r.now()
	c.ID = uuid.NewString()
	c.State = models.CodePending
	c.Attempts = 0
	c.VerifiedAt = nil
	c.CreatedAt, c.UpdatedAt = now, now

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	ttl := c.ExpiresAt.Sub(now) + r.retention
	if err := r.client.Set(ctx, codeKey(c.Purpose, c.Email), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return c, nil
}

func decode(val string) (*models.OneTimeCode, error) {
	var c models.OneTimeCode
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		return nil, fmt.Errorf("redis error: bad record: %w", err)
	}
	return &c, nil
}

func (r *RedisRepository) Find(ctx context.Context, email string, purpose models.Purpose) (*models.OneTimeCode, error) {
	val, err := r.client.Get(ctx, codeKey(purpose, email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decode(val)
}

// update applies fn to the stored record if it still matches c, retrying
// when the key changes between WATCH and EXEC.
func (r *RedisRepository) update(ctx context.Context, c *models.OneTimeCode, maxAttempts int, fn func(cur *models.OneTimeCode) error) (*models.OneTimeCode, error) {
	k := codeKey(c.Purpose, c.Email)
	var out *models.OneTimeCode

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, k).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return common.ErrVersionConflict
			}
			return err
		}
		cur, err := decode(val)
		if err != nil {
			return err
		}
		if cur.ID != c.ID || cur.State != c.State || cur.Attempts >= maxAttempts {
			return common.ErrVersionConflict
		}
		if err := fn(cur); err != nil {
			return err
		}
		cur.UpdatedAt = r.now()

		data, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, redis.KeepTTL)
			return nil
		})
		if err == nil {
			out = cur
		}
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := r.client.Watch(ctx, txf, k)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, common.ErrVersionConflict):
			return nil, err
		default:
			return nil, fmt.Errorf("redis error: %w", err)
		}
	}
	return nil, common.ErrVersionConflict
}

func (r *RedisRepository) RecordFailure(ctx context.Context, c *models.OneTimeCode, maxAttempts int) (int, error) {
	cur, err := r.update(ctx, c, maxAttempts, func(cur *models.OneTimeCode) error {
		cur.Attempts++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cur.Attempts, nil
}

func (r *RedisRepository) Transition(ctx context.Context, c *models.OneTimeCode, to models.CodeState, at time.Time, maxAttempts int) error {
	_, err := r.update(ctx, c, maxAttempts, func(cur *models.OneTimeCode) error {
		if cur.State == models.CodePending && !at.Before(cur.ExpiresAt) {
			return common.ErrVersionConflict
		}
		cur.State = to
		if to == models.CodeVerified {
			cur.VerifiedAt = &at
		}
		return nil
	})
	return err
}

func (r *RedisRepository) Delete(ctx context.Context, email string, purpose models.Purpose) error {
	if err := r.client.Del(ctx, codeKey(purpose, email)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteByEmail(ctx context.Context, email string) error {
	keys := make([]string, 0, len(allPurposes))
	for _, p := range allPurposes {
		keys = append(keys, codeKey(p, email))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
