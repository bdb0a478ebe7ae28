package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shortify/shortify/internal/database"
	"github.com/shortify/shortify/internal/models"
)

type linkRecord struct {
	ID          int64          `db:"id"`
	OwnerID     string         `db:"owner_id"`
	OriginalURL string         `db:"original_url"`
	ShortCode   string         `db:"short_code"`
	CustomCode  bool           `db:"custom_code"`
	Clicks      int64          `db:"clicks"`
	CampaignID  sql.NullInt64  `db:"campaign_id"`
	QRDesignID  sql.NullInt64  `db:"qr_design_id"`
	UTMSource   sql.NullString `db:"utm_source"`
	UTMMedium   sql.NullString `db:"utm_medium"`
	UTMCampaign sql.NullString `db:"utm_campaign"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *linkRecord) toLink() *models.Link {
	link := &models.Link{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		OriginalURL: r.OriginalURL,
		ShortCode:   r.ShortCode,
		CustomCode:  r.CustomCode,
		Clicks:      r.Clicks,
		UTM: models.UTM{
			Source:   r.UTMSource.String,
			Medium:   r.UTMMedium.String,
			Campaign: r.UTMCampaign.String,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if r.CampaignID.Valid {
		link.CampaignID = &r.CampaignID.Int64
	}
	if r.QRDesignID.Valid {
		link.QRDesignID = &r.QRDesignID.Int64
	}

	return link
}

var sortColumns = map[string]string{
	"created_at": "created_at",
	"clicks":     "clicks",
}

// LinkRepository persists link rows. Short code uniqueness is enforced by
// a database constraint, so concurrent creators racing on one code are
// serialized by the storage layer rather than an application check.
type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

func (r *LinkRepository) Create(ctx context.Context, p database.CreateLinkParams) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Create"

	rec := new(linkRecord)
	query := `INSERT INTO links(owner_id, original_url, short_code, custom_code, campaign_id, utm_source, utm_medium, utm_campaign)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		p.OwnerID, p.OriginalURL, p.ShortCode, p.CustomCode, p.CampaignID,
		p.UTM.Source, p.UTM.Medium, p.UTM.Campaign)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.toLink(), nil
}

func (r *LinkRepository) GetByCode(ctx context.Context, shortCode string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetByCode"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.toLink(), nil
}

// ResolveAndCountClick looks up a link by short code and bumps its click
// counter in a single statement, so the counter increment is atomic with
// the lookup and concurrent resolutions can't lose updates.
func (r *LinkRepository) ResolveAndCountClick(ctx context.Context, shortCode string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.ResolveAndCountClick"

	rec := new(linkRecord)
	query := `UPDATE links
		SET clicks = clicks + 1, updated_at = now()
		WHERE short_code = $1
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to resolve link record: %w", op, err)
	}

	return rec.toLink(), nil
}

func (r *LinkRepository) IncrementClicks(ctx context.Context, linkID int64) error {
	const op = "database.postgres.LinkRepository.IncrementClicks"

	query := `UPDATE links
		SET clicks = clicks + 1, updated_at = now()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, linkID)
	if err != nil {
		return fmt.Errorf("%s: failed to increment clicks: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

// Delete removes a link owned by ownerID. A missing row and an ownership
// mismatch are indistinguishable from the caller's side. Click event rows
// cascade via the foreign key.
func (r *LinkRepository) Delete(ctx context.Context, linkID int64, ownerID string) error {
	const op = "database.postgres.LinkRepository.Delete"

	query := `DELETE FROM links WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query, linkID, ownerID)
	if err != nil {
		return fmt.Errorf("%s: failed to delete link record: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID string, opts database.ListOptions) ([]models.Link, error) {
	const op = "database.postgres.LinkRepository.ListByOwner"

	column, ok := sortColumns[opts.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if opts.Desc {
		direction = "DESC"
	}

	var sb strings.Builder
	sb.WriteString(`SELECT * FROM links WHERE owner_id = $1`)

	args := []any{ownerID}
	if opts.Filter != "" {
		sb.WriteString(` AND (original_url ILIKE $2 OR short_code ILIKE $2)`)
		args = append(args, "%"+opts.Filter+"%")
	}
	fmt.Fprintf(&sb, ` ORDER BY %s %s`, column, direction)

	var recs []linkRecord
	if err := r.db.SelectContext(ctx, &recs, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("%s: failed to list link records: %w", op, err)
	}

	links := make([]models.Link, 0, len(recs))
	for i := range recs {
		links = append(links, *recs[i].toLink())
	}

	return links, nil
}

// ListByCampaign returns the owner's links attached to a campaign, the
// rows a campaign sender needs to build messages.
func (r *LinkRepository) ListByCampaign(ctx context.Context, ownerID string, campaignID int64) ([]models.Link, error) {
	const op = "database.postgres.LinkRepository.ListByCampaign"

	query := `SELECT * FROM links
		WHERE owner_id = $1 AND campaign_id = $2
		ORDER BY created_at`

	var recs []linkRecord
	if err := r.db.SelectContext(ctx, &recs, query, ownerID, campaignID); err != nil {
		return nil, fmt.Errorf("%s: failed to list campaign link records: %w", op, err)
	}

	links := make([]models.Link, 0, len(recs))
	for i := range recs {
		links = append(links, *recs[i].toLink())
	}

	return links, nil
}

func (r *LinkRepository) SetQRDesign(ctx context.Context, linkID int64, ownerID string, designID int64) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.SetQRDesign"

	rec := new(linkRecord)
	query := `UPDATE links
		SET qr_design_id = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, linkID, ownerID, designID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to set qr design: %w", op, err)
	}

	return rec.toLink(), nil
}

func (r *LinkRepository) SetUTM(ctx context.Context, linkID int64, ownerID string, utm models.UTM) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.SetUTM"

	rec := new(linkRecord)
	query := `UPDATE links
		SET utm_source = NULLIF($3, ''), utm_medium = NULLIF($4, ''), utm_campaign = NULLIF($5, ''), updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, linkID, ownerID, utm.Source, utm.Medium, utm.Campaign)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to set utm parameters: %w", op, err)
	}

	return rec.toLink(), nil
}
