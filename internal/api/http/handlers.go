package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/shortify/shortify/internal/database"
	"github.com/shortify/shortify/internal/models"
	"github.com/shortify/shortify/internal/service"
	"github.com/shortify/shortify/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

type utmPayload struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

type createLinkRequest struct {
	URL        string     `json:"url" validate:"required,url"`
	CustomCode string     `json:"custom_code" validate:"omitempty,min=3,max=30"`
	CampaignID *int64     `json:"campaign_id"`
	UTM        utmPayload `json:"utm"`
}

type linkResponse struct {
	ID         int64       `json:"id"`
	ShortCode  string      `json:"short_code"`
	ShortURL   string      `json:"short_url"`
	URL        string      `json:"url"`
	CustomCode bool        `json:"custom_code"`
	Clicks     int64       `json:"clicks,omitempty"`
	CampaignID *int64      `json:"campaign_id,omitempty"`
	QRDesignID *int64      `json:"qr_design_id,omitempty"`
	UTM        *utmPayload `json:"utm,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func toLinkResponse(svc LinkService, link *models.Link) linkResponse {
	resp := linkResponse{
		ID:         link.ID,
		ShortCode:  link.ShortCode,
		ShortURL:   svc.ShortURL(link.ShortCode),
		URL:        link.OriginalURL,
		CustomCode: link.CustomCode,
		Clicks:     link.Clicks,
		CampaignID: link.CampaignID,
		QRDesignID: link.QRDesignID,
		CreatedAt:  link.CreatedAt,
		UpdatedAt:  link.UpdatedAt,
	}

	if link.UTM != (models.UTM{}) {
		resp.UTM = &utmPayload{
			Source:   link.UTM.Source,
			Medium:   link.UTM.Medium,
			Campaign: link.UTM.Campaign,
		}
	}

	return resp
}

// renderServiceError maps the errors shared by most handlers. Handlers deal
// with their operation-specific errors before falling through to it.
func renderServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var limitErr *database.LimitExceededError

	switch {
	case errors.As(err, &limitErr):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.LimitExceededResponse(string(limitErr.Kind)))
	case errors.Is(err, database.ErrLinkNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.LinkNotFoundResponse)
	default:
		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.ServerErrorResponse)
	}
}

func handleCreateLink(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateLink"
	const successMsg = "The link has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createLinkRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		link, err := svc.Shorten(r.Context(), service.ShortenParams{
			OwnerID:     userID(r.Context()),
			OriginalURL: req.URL,
			CustomCode:  req.CustomCode,
			CampaignID:  req.CampaignID,
			UTM: models.UTM{
				Source:   req.UTM.Source,
				Medium:   req.UTM.Medium,
				Campaign: req.UTM.Campaign,
			},
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Destination must be an absolute http or https URL."))
			case errors.Is(err, service.ErrInvalidCustomCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Custom back-half must be 3-30 letters, digits, hyphens or underscores."))
			case errors.Is(err, database.ErrShortCodeExists):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ShortCodeExistsResponse)
			default:
				renderServiceError(w, r, op, err)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(svc, link)))
	}
}

func handleListLinks(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleListLinks"
	const successMsg = "The links were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := userID(r.Context())
		query := r.URL.Query()

		var links []models.Link
		var err error

		if rawID := query.Get("campaign_id"); rawID != "" {
			campaignID, parseErr := strconv.ParseInt(rawID, 10, 64)
			if parseErr != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Invalid campaign_id."))
				return
			}

			links, err = svc.CampaignLinks(r.Context(), ownerID, campaignID)
		} else {
			links, err = svc.List(r.Context(), ownerID, database.ListOptions{
				SortBy: query.Get("sort"),
				Desc:   query.Get("order") == "desc",
				Filter: query.Get("q"),
			})
		}
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		data := make([]any, 0, len(links))
		for i := range links {
			data = append(data, toLinkResponse(svc, &links[i]))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data...))
	}
}

type linkStatsResponse struct {
	Link  linkResponse     `json:"link"`
	Stats models.LinkStats `json:"stats"`
}

func handleLinkStats(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleLinkStats"
	const successMsg = "The link statistics were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		link, stats, err := svc.Stats(r.Context(), userID(r.Context()), shortCode)
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, linkStatsResponse{
			Link:  toLinkResponse(svc, link),
			Stats: stats,
		}))
	}
}

func handleDeleteLink(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleDeleteLink"
	const successMsg = "The link was successfully deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		if err := svc.Delete(r.Context(), userID(r.Context()), shortCode); err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

type qrDesignResponse struct {
	ID        int64     `json:"id"`
	LinkID    int64     `json:"link_id"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

func handleCreateQR(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleCreateQR"
	const successMsg = "The QR code has been created successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		design, err := svc.AttachQRCode(r.Context(), userID(r.Context()), shortCode)
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, qrDesignResponse{
			ID:        design.ID,
			LinkID:    design.LinkID,
			ImageURL:  design.ImageURL,
			CreatedAt: design.CreatedAt,
		}))
	}
}

func handleSetUTM(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleSetUTM"
	const successMsg = "The UTM parameters were updated successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req utmPayload

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		shortCode := chi.URLParam(r, "shortCode")

		link, err := svc.UpdateUTM(r.Context(), userID(r.Context()), shortCode, models.UTM{
			Source:   req.Source,
			Medium:   req.Medium,
			Campaign: req.Campaign,
		})
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(svc, link)))
	}
}

type counterUsage struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

type usageResponse struct {
	Links            counterUsage `json:"links"`
	QRCodes          counterUsage `json:"qr_codes"`
	CustomBackhalves counterUsage `json:"custom_backhalves"`
	LastReset        time.Time    `json:"last_reset"`
}

func toUsageResponse(svc UsageService, counters *models.UsageCounters) usageResponse {
	limits := svc.Limits()

	return usageResponse{
		Links:            counterUsage{Used: counters.LinksUsed, Limit: limits.Links},
		QRCodes:          counterUsage{Used: counters.QRCodesUsed, Limit: limits.QRCodes},
		CustomBackhalves: counterUsage{Used: counters.CustomBackhalvesUsed, Limit: limits.CustomBackhalves},
		LastReset:        counters.LastReset,
	}
}

func handleGetUsage(svc UsageService) http.HandlerFunc {
	const op = "api.http.handleGetUsage"
	const successMsg = "The usage counters were retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := svc.Get(r.Context(), userID(r.Context()))
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toUsageResponse(svc, counters)))
	}
}

func handleResetUsage(svc UsageService) http.HandlerFunc {
	const op = "api.http.handleResetUsage"
	const successMsg = "The usage counters were reset successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := svc.Reset(r.Context(), userID(r.Context()))
		if err != nil {
			renderServiceError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toUsageResponse(svc, counters)))
	}
}

func clickMetaFromRequest(r *http.Request) service.ClickMeta {
	country := r.Header.Get("CF-IPCountry")
	if country == "" {
		country = r.Header.Get("CloudFront-Viewer-Country")
	}

	city := r.Header.Get("CF-IPCity")
	if city == "" {
		city = r.Header.Get("CloudFront-Viewer-City")
	}

	return service.ClickMeta{
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		Country:   country,
		City:      city,
		IsQRScan:  r.URL.Query().Get("qr") == "1",
	}
}

func handleRedirect(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		link, err := svc.Resolve(r.Context(), shortCode, clickMetaFromRequest(r))
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				http.NotFound(w, r)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, link.OriginalURL, http.StatusFound)
	}
}
