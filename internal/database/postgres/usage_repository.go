package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shortify/shortify/internal/database"
	"github.com/shortify/shortify/internal/models"
)

type usageRecord struct {
	ID                   int64     `db:"id"`
	UserID               string    `db:"user_id"`
	LinksUsed            int64     `db:"links_used"`
	QRCodesUsed          int64     `db:"qr_codes_used"`
	CustomBackhalvesUsed int64     `db:"custom_backhalves_used"`
	LastReset            time.Time `db:"last_reset"`
}

func (r *usageRecord) toUsageCounters() *models.UsageCounters {
	return &models.UsageCounters{
		ID:                   r.ID,
		UserID:               r.UserID,
		LinksUsed:            r.LinksUsed,
		QRCodesUsed:          r.QRCodesUsed,
		CustomBackhalvesUsed: r.CustomBackhalvesUsed,
		LastReset:            r.LastReset,
	}
}

var counterColumns = map[models.CounterKind]string{
	models.CounterLinks:            "links_used",
	models.CounterQRCodes:          "qr_codes_used",
	models.CounterCustomBackhalves: "custom_backhalves_used",
}

// UsageRepository tracks per-user quota counters. All increments are
// conditional single statements so two concurrent requests for the last
// unit of headroom can't both succeed.
type UsageRepository struct {
	db *sqlx.DB
}

func NewUsageRepository(db *sqlx.DB) *UsageRepository {
	return &UsageRepository{
		db: db,
	}
}

// Get returns the user's counters, lazily creating a zeroed row on first
// contact. The upsert is a no-op when the row already exists.
func (r *UsageRepository) Get(ctx context.Context, userID string) (*models.UsageCounters, error) {
	const op = "database.postgres.UsageRepository.Get"

	insertQuery := `INSERT INTO usage(user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, insertQuery, userID); err != nil {
		return nil, fmt.Errorf("%s: failed to ensure usage record: %w", op, err)
	}

	rec := new(usageRecord)
	query := `SELECT * FROM usage WHERE user_id = $1`

	if err := r.db.GetContext(ctx, rec, query, userID); err != nil {
		return nil, fmt.Errorf("%s: failed to get usage record: %w", op, err)
	}

	return rec.toUsageCounters(), nil
}

// CheckAndIncrement bumps one counter only if the post-increment value
// stays within limit. The bound check and the increment are one statement,
// so the row lock serializes racing increments and the counter can never
// be observed above the limit. A limit of zero or below means unlimited.
func (r *UsageRepository) CheckAndIncrement(ctx context.Context, userID string, kind models.CounterKind, limit int64) (*models.UsageCounters, error) {
	const op = "database.postgres.UsageRepository.CheckAndIncrement"

	column, ok := counterColumns[kind]
	if !ok {
		return nil, fmt.Errorf("%s: unknown counter kind: %q", op, kind)
	}

	if _, err := r.Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec := new(usageRecord)
	var err error

	if limit <= 0 {
		query := fmt.Sprintf(`UPDATE usage
			SET %[1]s = %[1]s + 1
			WHERE user_id = $1
			RETURNING *`, column)
		err = r.db.GetContext(ctx, rec, query, userID)
	} else {
		query := fmt.Sprintf(`UPDATE usage
			SET %[1]s = %[1]s + 1
			WHERE user_id = $1 AND %[1]s < $2
			RETURNING *`, column)
		err = r.db.GetContext(ctx, rec, query, userID, limit)
	}

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, &database.LimitExceededError{Kind: kind})
		}

		return nil, fmt.Errorf("%s: failed to increment usage counter: %w", op, err)
	}

	return rec.toUsageCounters(), nil
}

// Decrement undoes one increment, used to compensate a charge whose
// creation failed downstream. Floored at zero.
func (r *UsageRepository) Decrement(ctx context.Context, userID string, kind models.CounterKind) (*models.UsageCounters, error) {
	const op = "database.postgres.UsageRepository.Decrement"

	column, ok := counterColumns[kind]
	if !ok {
		return nil, fmt.Errorf("%s: unknown counter kind: %q", op, kind)
	}

	rec := new(usageRecord)
	query := fmt.Sprintf(`UPDATE usage
		SET %[1]s = %[1]s - 1
		WHERE user_id = $1 AND %[1]s > 0
		RETURNING *`, column)

	err := r.db.GetContext(ctx, rec, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Already at zero or never charged; report the current state.
			return r.Get(ctx, userID)
		}

		return nil, fmt.Errorf("%s: failed to decrement usage counter: %w", op, err)
	}

	return rec.toUsageCounters(), nil
}

// Reset zeroes all three counters and stamps last_reset, starting a new
// usage period.
func (r *UsageRepository) Reset(ctx context.Context, userID string) (*models.UsageCounters, error) {
	const op = "database.postgres.UsageRepository.Reset"

	if _, err := r.Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec := new(usageRecord)
	query := `UPDATE usage
		SET links_used = 0, qr_codes_used = 0, custom_backhalves_used = 0, last_reset = now()
		WHERE user_id = $1
		RETURNING *`

	if err := r.db.GetContext(ctx, rec, query, userID); err != nil {
		return nil, fmt.Errorf("%s: failed to reset usage record: %w", op, err)
	}

	return rec.toUsageCounters(), nil
}
