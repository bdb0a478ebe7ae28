package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shortify/shortify/internal/models"
)

type clickEventRecord struct {
	ID         int64          `db:"id"`
	LinkID     int64          `db:"link_id"`
	OwnerID    string         `db:"owner_id"`
	DeviceType sql.NullString `db:"device_type"`
	Referrer   sql.NullString `db:"referrer"`
	Country    sql.NullString `db:"location_country"`
	City       sql.NullString `db:"location_city"`
	IsQRScan   bool           `db:"is_qr_scan"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r *clickEventRecord) toClickEvent() models.ClickEvent {
	return models.ClickEvent{
		ID:         r.ID,
		LinkID:     r.LinkID,
		OwnerID:    r.OwnerID,
		DeviceType: r.DeviceType.String,
		Referrer:   r.Referrer.String,
		Country:    r.Country.String,
		City:       r.City.String,
		IsQRScan:   r.IsQRScan,
		CreatedAt:  r.CreatedAt,
	}
}

// ClickEventRepository persists the append-only click event rows consumed
// by the analytics aggregator.
type ClickEventRepository struct {
	db *sqlx.DB
}

func NewClickEventRepository(db *sqlx.DB) *ClickEventRepository {
	return &ClickEventRepository{
		db: db,
	}
}

func (r *ClickEventRepository) Insert(ctx context.Context, ev models.ClickEvent) error {
	const op = "database.postgres.ClickEventRepository.Insert"

	query := `INSERT INTO click_events(link_id, owner_id, device_type, referrer, location_country, location_city, is_qr_scan)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)`

	_, err := r.db.ExecContext(ctx, query,
		ev.LinkID, ev.OwnerID, ev.DeviceType, ev.Referrer, ev.Country, ev.City, ev.IsQRScan)
	if err != nil {
		return fmt.Errorf("%s: failed to insert click event record: %w", op, err)
	}

	return nil
}

func (r *ClickEventRepository) ListByLink(ctx context.Context, linkID int64, ownerID string) ([]models.ClickEvent, error) {
	const op = "database.postgres.ClickEventRepository.ListByLink"

	query := `SELECT * FROM click_events
		WHERE link_id = $1 AND owner_id = $2
		ORDER BY created_at`

	var recs []clickEventRecord
	if err := r.db.SelectContext(ctx, &recs, query, linkID, ownerID); err != nil {
		return nil, fmt.Errorf("%s: failed to list click event records: %w", op, err)
	}

	events := make([]models.ClickEvent, 0, len(recs))
	for i := range recs {
		events = append(events, recs[i].toClickEvent())
	}

	return events, nil
}
