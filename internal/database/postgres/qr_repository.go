package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shortify/shortify/internal/models"
)

type qrDesignRecord struct {
	ID        int64     `db:"id"`
	LinkID    int64     `db:"link_id"`
	OwnerID   string    `db:"owner_id"`
	ImageURL  string    `db:"image_url"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *qrDesignRecord) toQRDesign() *models.QRDesign {
	return &models.QRDesign{
		ID:        r.ID,
		LinkID:    r.LinkID,
		OwnerID:   r.OwnerID,
		ImageURL:  r.ImageURL,
		CreatedAt: r.CreatedAt,
	}
}

// QRDesignRepository stores references to externally rendered QR images.
type QRDesignRepository struct {
	db *sqlx.DB
}

func NewQRDesignRepository(db *sqlx.DB) *QRDesignRepository {
	return &QRDesignRepository{
		db: db,
	}
}

func (r *QRDesignRepository) Create(ctx context.Context, linkID int64, ownerID, imageURL string) (*models.QRDesign, error) {
	const op = "database.postgres.QRDesignRepository.Create"

	rec := new(qrDesignRecord)
	query := `INSERT INTO qr_designs(link_id, owner_id, image_url)
		VALUES ($1, $2, $3)
		RETURNING *`

	if err := r.db.GetContext(ctx, rec, query, linkID, ownerID, imageURL); err != nil {
		return nil, fmt.Errorf("%s: failed to create qr design record: %w", op, err)
	}

	return rec.toQRDesign(), nil
}
