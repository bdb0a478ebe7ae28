package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shortify/shortify/internal/analytics"
	"github.com/shortify/shortify/internal/config"
	"github.com/shortify/shortify/internal/database"
	"github.com/shortify/shortify/internal/models"
	"github.com/shortify/shortify/internal/shortcode"
)

var (
	// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a short code is exceeded.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
	// ErrInvalidURL is returned when the destination is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid destination url")
	// ErrInvalidCustomCode is returned when a user-chosen back-half fails validation.
	ErrInvalidCustomCode = errors.New("invalid custom back-half")
)

// LinkRepository defines the link storage operations used by the business logic layer.
type LinkRepository interface {
	Create(ctx context.Context, p database.CreateLinkParams) (*models.Link, error)
	GetByCode(ctx context.Context, shortCode string) (*models.Link, error)
	ResolveAndCountClick(ctx context.Context, shortCode string) (*models.Link, error)
	Delete(ctx context.Context, linkID int64, ownerID string) error
	ListByOwner(ctx context.Context, ownerID string, opts database.ListOptions) ([]models.Link, error)
	ListByCampaign(ctx context.Context, ownerID string, campaignID int64) ([]models.Link, error)
	SetQRDesign(ctx context.Context, linkID int64, ownerID string, designID int64) (*models.Link, error)
	SetUTM(ctx context.Context, linkID int64, ownerID string, utm models.UTM) (*models.Link, error)
}

// ClickEventRepository appends and reads the raw click event rows.
type ClickEventRepository interface {
	Insert(ctx context.Context, ev models.ClickEvent) error
	ListByLink(ctx context.Context, linkID int64, ownerID string) ([]models.ClickEvent, error)
}

// UsageRepository is the quota ledger storage.
type UsageRepository interface {
	Get(ctx context.Context, userID string) (*models.UsageCounters, error)
	CheckAndIncrement(ctx context.Context, userID string, kind models.CounterKind, limit int64) (*models.UsageCounters, error)
	Decrement(ctx context.Context, userID string, kind models.CounterKind) (*models.UsageCounters, error)
	Reset(ctx context.Context, userID string) (*models.UsageCounters, error)
}

// QRDesignRepository stores rendered QR image references.
type QRDesignRepository interface {
	Create(ctx context.Context, linkID int64, ownerID, imageURL string) (*models.QRDesign, error)
}

// QRRenderer maps a payload URL to a renderable image reference.
type QRRenderer interface {
	ImageReference(data string) string
}

// ShortenParams is a request to create a link. An empty CustomCode means
// the alias is generated.
type ShortenParams struct {
	OwnerID     string
	OriginalURL string
	CustomCode  string
	CampaignID  *int64
	UTM         models.UTM
}

// ClickMeta is the best-effort metadata captured from a redirect request.
type ClickMeta struct {
	UserAgent string
	Referrer  string
	Country   string
	City      string
	IsQRScan  bool
}

// LinkService owns the creation, resolution and analytics of short links.
type LinkService struct {
	links     LinkRepository
	clicks    ClickEventRepository
	usage     UsageRepository
	qrDesigns QRDesignRepository
	qr        QRRenderer

	limits     config.PlanLimits
	codeLength int
	baseURL    string
	logger     *slog.Logger

	recording sync.WaitGroup
}

type LinkServiceParams struct {
	Links     LinkRepository
	Clicks    ClickEventRepository
	Usage     UsageRepository
	QRDesigns QRDesignRepository
	QR        QRRenderer

	Limits     config.PlanLimits
	CodeLength int
	BaseURL    string
	Logger     *slog.Logger
}

func NewLinkService(p LinkServiceParams) *LinkService {
	if p.CodeLength <= 0 {
		p.CodeLength = shortcode.DefaultLength
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}

	return &LinkService{
		links:      p.Links,
		clicks:     p.Clicks,
		usage:      p.Usage,
		qrDesigns:  p.QRDesigns,
		qr:         p.QR,
		limits:     p.Limits,
		codeLength: p.CodeLength,
		baseURL:    strings.TrimRight(p.BaseURL, "/"),
		logger:     p.Logger,
	}
}

// ShortURL returns the public short URL for a code.
func (s *LinkService) ShortURL(shortCode string) string {
	return fmt.Sprintf("%s/r/%s", s.baseURL, shortCode)
}

// Shorten creates a link for the owner, generating an alias unless a
// custom back-half is requested. Quota is charged only after the insert
// succeeds; a charge lost to a concurrent racer compensates by removing
// the just-inserted link, so failed creations never consume quota and
// counters never exceed their limits.
func (s *LinkService) Shorten(ctx context.Context, p ShortenParams) (*models.Link, error) {
	const op = "service.LinkService.Shorten"

	if !validDestination(p.OriginalURL) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
	}
	if p.CustomCode != "" && !shortcode.Valid(p.CustomCode) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCustomCode)
	}

	// Cheap fail-fast on the common over-quota case. The authoritative
	// check is the conditional increment after the insert.
	ledger, err := s.usage.Get(ctx, p.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get usage: %w", op, err)
	}
	if err := headroom(ledger, models.CounterLinks, s.limits.Links); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p.CustomCode != "" {
		if err := headroom(ledger, models.CounterCustomBackhalves, s.limits.CustomBackhalves); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	link, err := s.insertLink(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.usage.CheckAndIncrement(ctx, p.OwnerID, models.CounterLinks, s.limits.Links); err != nil {
		s.compensateLink(ctx, link)
		return nil, fmt.Errorf("%s: failed to charge quota: %w", op, err)
	}

	if p.CustomCode != "" {
		if _, err := s.usage.CheckAndIncrement(ctx, p.OwnerID, models.CounterCustomBackhalves, s.limits.CustomBackhalves); err != nil {
			if _, derr := s.usage.Decrement(ctx, p.OwnerID, models.CounterLinks); derr != nil {
				s.logger.Warn("failed to roll back links counter",
					slog.String("owner_id", p.OwnerID), slog.Any("err", derr))
			}
			s.compensateLink(ctx, link)
			return nil, fmt.Errorf("%s: failed to charge quota: %w", op, err)
		}
	}

	return link, nil
}

// insertLink performs the uniqueness-checked insert. A user-chosen code is
// attempted exactly once and its duplicate error surfaced untouched; a
// generated alias is retried with a fresh code up to maxRetries times.
func (s *LinkService) insertLink(ctx context.Context, p ShortenParams) (*models.Link, error) {
	const maxRetries = 5

	if p.CustomCode != "" {
		link, err := s.links.Create(ctx, database.CreateLinkParams{
			OwnerID:     p.OwnerID,
			OriginalURL: p.OriginalURL,
			ShortCode:   p.CustomCode,
			CustomCode:  true,
			CampaignID:  p.CampaignID,
			UTM:         p.UTM,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create link: %w", err)
		}

		return link, nil
	}

	for i := 0; i < maxRetries; i++ {
		code, err := shortcode.Generate(s.codeLength)
		if err != nil {
			return nil, err
		}

		link, err := s.links.Create(ctx, database.CreateLinkParams{
			OwnerID:     p.OwnerID,
			OriginalURL: p.OriginalURL,
			ShortCode:   code,
			CampaignID:  p.CampaignID,
			UTM:         p.UTM,
		})
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("failed to create link: %w", err)
		}

		return link, nil
	}

	return nil, ErrMaxRetriesExceeded
}

func (s *LinkService) compensateLink(ctx context.Context, link *models.Link) {
	if err := s.links.Delete(ctx, link.ID, link.OwnerID); err != nil {
		s.logger.Warn("failed to remove link after quota charge failure",
			slog.Int64("link_id", link.ID), slog.Any("err", err))
	}
}

// Resolve maps a short code to its link, counting the click atomically
// with the lookup. The click event row is appended asynchronously; its
// failure is logged and never affects the resolution result.
func (s *LinkService) Resolve(ctx context.Context, shortCode string, meta ClickMeta) (*models.Link, error) {
	const op = "service.LinkService.Resolve"

	link, err := s.links.ResolveAndCountClick(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	s.recordClick(ctx, link, meta)

	return link, nil
}

func (s *LinkService) recordClick(ctx context.Context, link *models.Link, meta ClickMeta) {
	ev := models.ClickEvent{
		LinkID:     link.ID,
		OwnerID:    link.OwnerID,
		DeviceType: ClassifyDevice(meta.UserAgent),
		Referrer:   meta.Referrer,
		Country:    meta.Country,
		City:       meta.City,
		IsQRScan:   meta.IsQRScan,
	}

	// The redirect response must not wait on analytics, and the caller
	// disconnecting must not cancel the append.
	detached := context.WithoutCancel(ctx)

	s.recording.Add(1)
	go func() {
		defer s.recording.Done()

		ctx, cancel := context.WithTimeout(detached, 5*time.Second)
		defer cancel()

		if err := s.clicks.Insert(ctx, ev); err != nil {
			s.logger.Warn("failed to record click event",
				slog.Int64("link_id", ev.LinkID), slog.Any("err", err))
		}
	}()
}

// Wait blocks until all in-flight click event appends have finished.
// Called on shutdown.
func (s *LinkService) Wait() {
	s.recording.Wait()
}

// Delete removes the owner's link and, via storage cascade, its click
// events. A link owned by someone else is reported as not found.
func (s *LinkService) Delete(ctx context.Context, ownerID, shortCode string) error {
	const op = "service.LinkService.Delete"

	link, err := s.ownedLink(ctx, ownerID, shortCode)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.links.Delete(ctx, link.ID, ownerID); err != nil {
		return fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	return nil
}

// List returns the owner's links, optionally filtered and sorted.
func (s *LinkService) List(ctx context.Context, ownerID string, opts database.ListOptions) ([]models.Link, error) {
	const op = "service.LinkService.List"

	links, err := s.links.ListByOwner(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, nil
}

// CampaignLinks returns the owner's links attached to a campaign, for the
// campaign sender to build messages from.
func (s *LinkService) CampaignLinks(ctx context.Context, ownerID string, campaignID int64) ([]models.Link, error) {
	const op = "service.LinkService.CampaignLinks"

	links, err := s.links.ListByCampaign(ctx, ownerID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list campaign links: %w", op, err)
	}

	return links, nil
}

// UpdateUTM replaces the utm tagging parameters of the owner's link.
// Empty fields clear the corresponding parameter.
func (s *LinkService) UpdateUTM(ctx context.Context, ownerID, shortCode string, utm models.UTM) (*models.Link, error) {
	const op = "service.LinkService.UpdateUTM"

	link, err := s.ownedLink(ctx, ownerID, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.links.SetUTM(ctx, link.ID, ownerID, utm)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to set utm parameters: %w", op, err)
	}

	return updated, nil
}

// Stats aggregates the click events of the owner's link.
func (s *LinkService) Stats(ctx context.Context, ownerID, shortCode string) (*models.Link, models.LinkStats, error) {
	const op = "service.LinkService.Stats"

	link, err := s.ownedLink(ctx, ownerID, shortCode)
	if err != nil {
		return nil, models.LinkStats{}, fmt.Errorf("%s: %w", op, err)
	}

	events, err := s.clicks.ListByLink(ctx, link.ID, ownerID)
	if err != nil {
		return nil, models.LinkStats{}, fmt.Errorf("%s: failed to list click events: %w", op, err)
	}

	return link, analytics.Aggregate(events), nil
}

// AttachQRCode renders a QR image reference for the link's short URL and
// associates it with the link. Charged against the qrCodes quota; the
// charge is rolled back if the design can't be stored.
func (s *LinkService) AttachQRCode(ctx context.Context, ownerID, shortCode string) (*models.QRDesign, error) {
	const op = "service.LinkService.AttachQRCode"

	link, err := s.ownedLink(ctx, ownerID, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.usage.CheckAndIncrement(ctx, ownerID, models.CounterQRCodes, s.limits.QRCodes); err != nil {
		return nil, fmt.Errorf("%s: failed to charge quota: %w", op, err)
	}

	// Scans land back on the resolver with the qr marker so they're
	// distinguishable from plain clicks.
	imageURL := s.qr.ImageReference(s.ShortURL(link.ShortCode) + "?qr=1")

	design, err := s.qrDesigns.Create(ctx, link.ID, ownerID, imageURL)
	if err != nil {
		s.refundQRCharge(ctx, ownerID)
		return nil, fmt.Errorf("%s: failed to store qr design: %w", op, err)
	}

	if _, err := s.links.SetQRDesign(ctx, link.ID, ownerID, design.ID); err != nil {
		s.refundQRCharge(ctx, ownerID)
		return nil, fmt.Errorf("%s: failed to attach qr design: %w", op, err)
	}

	return design, nil
}

func (s *LinkService) refundQRCharge(ctx context.Context, ownerID string) {
	if _, err := s.usage.Decrement(ctx, ownerID, models.CounterQRCodes); err != nil {
		s.logger.Warn("failed to roll back qr codes counter",
			slog.String("owner_id", ownerID), slog.Any("err", err))
	}
}

func (s *LinkService) ownedLink(ctx context.Context, ownerID, shortCode string) (*models.Link, error) {
	link, err := s.links.GetByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, database.ErrLinkNotFound
	}

	return link, nil
}

func headroom(ledger *models.UsageCounters, kind models.CounterKind, limit int64) error {
	if limit > 0 && ledger.Used(kind) >= limit {
		return &database.LimitExceededError{Kind: kind}
	}

	return nil
}

func validDestination(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
