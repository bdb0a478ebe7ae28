package service

import (
	"context"

	"github.com/shortify/shortify/internal/database"
	"github.com/shortify/shortify/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockLinkRepository struct {
	mock.Mock
}

func (r *MockLinkRepository) Create(ctx context.Context, p database.CreateLinkParams) (*models.Link, error) {
	args := r.Called(ctx, p)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) GetByCode(ctx context.Context, shortCode string) (*models.Link, error) {
	args := r.Called(ctx, shortCode)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) ResolveAndCountClick(ctx context.Context, shortCode string) (*models.Link, error) {
	args := r.Called(ctx, shortCode)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) Delete(ctx context.Context, linkID int64, ownerID string) error {
	args := r.Called(ctx, linkID, ownerID)
	return args.Error(0)
}

func (r *MockLinkRepository) ListByOwner(ctx context.Context, ownerID string, opts database.ListOptions) ([]models.Link, error) {
	args := r.Called(ctx, ownerID, opts)
	links, _ := args.Get(0).([]models.Link)
	return links, args.Error(1)
}

func (r *MockLinkRepository) ListByCampaign(ctx context.Context, ownerID string, campaignID int64) ([]models.Link, error) {
	args := r.Called(ctx, ownerID, campaignID)
	links, _ := args.Get(0).([]models.Link)
	return links, args.Error(1)
}

func (r *MockLinkRepository) SetUTM(ctx context.Context, linkID int64, ownerID string, utm models.UTM) (*models.Link, error) {
	args := r.Called(ctx, linkID, ownerID, utm)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) SetQRDesign(ctx context.Context, linkID int64, ownerID string, designID int64) (*models.Link, error) {
	args := r.Called(ctx, linkID, ownerID, designID)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

type MockClickEventRepository struct {
	mock.Mock
}

func (r *MockClickEventRepository) Insert(ctx context.Context, ev models.ClickEvent) error {
	args := r.Called(ctx, ev)
	return args.Error(0)
}

func (r *MockClickEventRepository) ListByLink(ctx context.Context, linkID int64, ownerID string) ([]models.ClickEvent, error) {
	args := r.Called(ctx, linkID, ownerID)
	events, _ := args.Get(0).([]models.ClickEvent)
	return events, args.Error(1)
}

type MockUsageRepository struct {
	mock.Mock
}

func (r *MockUsageRepository) Get(ctx context.Context, userID string) (*models.UsageCounters, error) {
	args := r.Called(ctx, userID)
	usage, _ := args.Get(0).(*models.UsageCounters)
	return usage, args.Error(1)
}

func (r *MockUsageRepository) CheckAndIncrement(ctx context.Context, userID string, kind models.CounterKind, limit int64) (*models.UsageCounters, error) {
	args := r.Called(ctx, userID, kind, limit)
	usage, _ := args.Get(0).(*models.UsageCounters)
	return usage, args.Error(1)
}

func (r *MockUsageRepository) Decrement(ctx context.Context, userID string, kind models.CounterKind) (*models.UsageCounters, error) {
	args := r.Called(ctx, userID, kind)
	usage, _ := args.Get(0).(*models.UsageCounters)
	return usage, args.Error(1)
}

func (r *MockUsageRepository) Reset(ctx context.Context, userID string) (*models.UsageCounters, error) {
	args := r.Called(ctx, userID)
	usage, _ := args.Get(0).(*models.UsageCounters)
	return usage, args.Error(1)
}

type MockQRDesignRepository struct {
	mock.Mock
}

func (r *MockQRDesignRepository) Create(ctx context.Context, linkID int64, ownerID, imageURL string) (*models.QRDesign, error) {
	args := r.Called(ctx, linkID, ownerID, imageURL)
	design, _ := args.Get(0).(*models.QRDesign)
	return design, args.Error(1)
}

type MockQRRenderer struct {
	mock.Mock
}

func (r *MockQRRenderer) ImageReference(data string) string {
	args := r.Called(data)
	return args.String(0)
}
