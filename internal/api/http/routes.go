// Package http exposes the REST API and the public redirect endpoint.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/shortify/shortify/internal/config"
	"github.com/shortify/shortify/internal/database"
	"github.com/shortify/shortify/internal/models"
	"github.com/shortify/shortify/internal/service"
	"github.com/shortify/shortify/pkg/response"
)

type LinkService interface {
	Shorten(ctx context.Context, p service.ShortenParams) (*models.Link, error)
	Resolve(ctx context.Context, shortCode string, meta service.ClickMeta) (*models.Link, error)
	Delete(ctx context.Context, ownerID, shortCode string) error
	List(ctx context.Context, ownerID string, opts database.ListOptions) ([]models.Link, error)
	CampaignLinks(ctx context.Context, ownerID string, campaignID int64) ([]models.Link, error)
	Stats(ctx context.Context, ownerID, shortCode string) (*models.Link, models.LinkStats, error)
	UpdateUTM(ctx context.Context, ownerID, shortCode string, utm models.UTM) (*models.Link, error)
	AttachQRCode(ctx context.Context, ownerID, shortCode string) (*models.QRDesign, error)
	ShortURL(shortCode string) string
}

type UsageService interface {
	Get(ctx context.Context, userID string) (*models.UsageCounters, error)
	Reset(ctx context.Context, userID string) (*models.UsageCounters, error)
	Limits() config.PlanLimits
}

// userIDHeader carries the opaque user identity resolved by the edge proxy.
const userIDHeader = "X-User-ID"

type ctxKey int

const userIDKey ctxKey = iota

func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// requireUser rejects requests that arrive without an identity header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(userIDHeader))
		if id == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.UnauthorizedResponse)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(logger *httplog.Logger, linkSvc LinkService, usageSvc UsageService) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", userIDHeader},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Get("/r/{shortCode}", handleRedirect(linkSvc))

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/ping", handlePing)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Route("/links", func(r chi.Router) {
				r.Post("/", handleCreateLink(linkSvc, validate))
				r.Get("/", handleListLinks(linkSvc))

				r.Route("/{shortCode}", func(r chi.Router) {
					r.Delete("/", handleDeleteLink(linkSvc))
					r.Get("/stats", handleLinkStats(linkSvc))
					r.Post("/qr", handleCreateQR(linkSvc))
					r.Post("/utm", handleSetUTM(linkSvc))
				})
			})

			r.Route("/usage", func(r chi.Router) {
				r.Get("/", handleGetUsage(usageSvc))
				r.Post("/reset", handleResetUsage(usageSvc))
			})
		})
	})

	return r
}
