package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shortify/shortify/internal/config"
	"github.com/shortify/shortify/internal/database"
	"github.com/shortify/shortify/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var freeTierLimits = config.PlanLimits{
	Links:            7,
	QRCodes:          5,
	CustomBackhalves: 5,
}

type LinkServiceTestSuite struct {
	suite.Suite
	errUnknown error

	linkRepoMock  *MockLinkRepository
	clickRepoMock *MockClickEventRepository
	usageRepoMock *MockUsageRepository
	qrRepoMock    *MockQRDesignRepository
	qrMock        *MockQRRenderer
	svc           *LinkService
}

func (suite *LinkServiceTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
}

func (suite *LinkServiceTestSuite) SetupSubTest() {
	suite.linkRepoMock = new(MockLinkRepository)
	suite.clickRepoMock = new(MockClickEventRepository)
	suite.usageRepoMock = new(MockUsageRepository)
	suite.qrRepoMock = new(MockQRDesignRepository)
	suite.qrMock = new(MockQRRenderer)

	suite.svc = NewLinkService(LinkServiceParams{
		Links:      suite.linkRepoMock,
		Clicks:     suite.clickRepoMock,
		Usage:      suite.usageRepoMock,
		QRDesigns:  suite.qrRepoMock,
		QR:         suite.qrMock,
		Limits:     freeTierLimits,
		CodeLength: 7,
		BaseURL:    "https://shortify.io",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func (suite *LinkServiceTestSuite) TearDownSubTest() {
	suite.linkRepoMock.AssertExpectations(suite.T())
	suite.clickRepoMock.AssertExpectations(suite.T())
	suite.usageRepoMock.AssertExpectations(suite.T())
	suite.qrRepoMock.AssertExpectations(suite.T())
	suite.qrMock.AssertExpectations(suite.T())
}

func (suite *LinkServiceTestSuite) emptyLedger() *models.UsageCounters {
	return &models.UsageCounters{UserID: "user-1"}
}

func (suite *LinkServiceTestSuite) TestShorten() {
	params := ShortenParams{
		OwnerID:     "user-1",
		OriginalURL: "https://example.com/page",
	}

	suite.Run("invalid destination url", func() {
		for _, rawURL := range []string{"", "not a url", "ftp://example.com", "/relative/path", "https://"} {
			link, err := suite.svc.Shorten(context.Background(), ShortenParams{
				OwnerID:     "user-1",
				OriginalURL: rawURL,
			})

			suite.Error(err)
			suite.ErrorIs(err, ErrInvalidURL)
			suite.Nil(link)
		}
	})

	suite.Run("invalid custom back-half", func() {
		link, err := suite.svc.Shorten(context.Background(), ShortenParams{
			OwnerID:     "user-1",
			OriginalURL: "https://example.com/page",
			CustomCode:  "aب",
		})

		suite.Error(err)
		suite.ErrorIs(err, ErrInvalidCustomCode)
		suite.Nil(link)
	})

	suite.Run("links quota already exhausted", func() {
		suite.usageRepoMock.
			On("Get", mock.Anything, "user-1").
			Once().
			Return(&models.UsageCounters{UserID: "user-1", LinksUsed: 7}, nil)

		link, err := suite.svc.Shorten(context.Background(), params)

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLimitExceeded)
		suite.Nil(link)
	})

	suite.Run("custom back-half quota exhausted", func() {
		suite.usageRepoMock.
			On("Get", mock.Anything, "user-1").
			Once().
			Return(&models.UsageCounters{UserID: "user-1", CustomBackhalvesUsed: 5}, nil)

		link, err := suite.svc.Shorten(context.Background(), ShortenParams{
			OwnerID:     "user-1",
			OriginalURL: "https://example.com/page",
			CustomCode:  "launch",
		})

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLimitExceeded)

		var limitErr *database.LimitExceededError
		if suite.ErrorAs(err, &limitErr) {
			suite.Equal(models.CounterCustomBackhalves, limitErr.Kind)
		}
		suite.Nil(link)
	})

	suite.Run("generated alias retries on collision", func() {
		suite.usageRepoMock.
			On("Get", mock.Anything, "user-1").
			Once().
			Return(suite.emptyLedger(), nil)
		suite.linkRepoMock.
			On("Create", mock.Anything, mock.Anything).
			Twice().
			Return(nil, database.ErrShortCodeExists)
		suite.linkRepoMock.
			On("Create", mock.Anything, mock.Anything).
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234"}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterLinks, int64(7)).
			Once().
			Return(&models.UsageCounters{UserID: "user-1", LinksUsed: 1}, nil)

		link, err := suite.svc.Shorten(context.Background(), params)

		suite.NoError(err)
		suite.NotNil(link)
		suite.Equal("abc1234", link.ShortCode)
	})

	suite.Run("generated alias gives up after bounded retries", func() {
		suite.usageRepoMock.
			On("Get", mock.Anything, "user-1").
			Once().
			Return(suite.emptyLedger(), nil)
		suite.linkRepoMock.
			On("Create", mock.Anything, mock.Anything).
			Times(5).
			Return(nil, database.ErrShortCodeExists)

		link, err := suite.svc.Shorten(context.Background(), params)

		suite.Error(err)
		suite.ErrorIs(err, ErrMaxRetriesExceeded)
		suite.Nil(link)
	})

	suite.Run("custom back-half duplicate is never retried", func() {
		suite.usageRepoMock.
			On("Get", mock.Anything, "user-1").
			Once().
			Return(suite.emptyLedger(), nil)
		suite.linkRepoMock.
			On("Create", mock.Anything, mock.MatchedBy(func(p database.CreateLinkParams) bool {
				return p.ShortCode == "launch" && p.CustomCode
			})).
			Once().
			Return(nil, database.ErrShortCodeExists)

		link, err := suite.svc.Shorten(context.Background(), ShortenParams{
			OwnerID:     "user-1",
			OriginalURL: "https://example.com/page",
			CustomCode:  "launch",
		})

		suite.Error(err)
		suite.ErrorIs(err, database.ErrShortCodeExists)
		suite.Nil(link)
	})

	suite.Run("lost quota race compensates the insert", func() {
		suite.usageRepoMock.
			On("Get", mock.Anything, "user-1").
			Once().
			Return(&models.UsageCounters{UserID: "user-1", LinksUsed: 6}, nil)
		suite.linkRepoMock.
			On("Create", mock.Anything, mock.Anything).
			Once().
			Return(&models.Link{ID: 42, OwnerID: "user-1", ShortCode: "abc1234"}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterLinks, int64(7)).
			Once().
			Return(nil, &database.LimitExceededError{Kind: models.CounterLinks})
		suite.linkRepoMock.
			On("Delete", mock.Anything, int64(42), "user-1").
			Once().
			Return(nil)

		link, err := suite.svc.Shorten(context.Background(), params)

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLimitExceeded)
		suite.Nil(link)
	})

	suite.Run("custom charge failure rolls back links charge and insert", func() {
		suite.usageRepoMock.
			On("Get", mock.Anything, "user-1").
			Once().
			Return(suite.emptyLedger(), nil)
		suite.linkRepoMock.
			On("Create", mock.Anything, mock.Anything).
			Once().
			Return(&models.Link{ID: 42, OwnerID: "user-1", ShortCode: "launch"}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterLinks, int64(7)).
			Once().
			Return(&models.UsageCounters{UserID: "user-1", LinksUsed: 1}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterCustomBackhalves, int64(5)).
			Once().
			Return(nil, &database.LimitExceededError{Kind: models.CounterCustomBackhalves})
		suite.usageRepoMock.
			On("Decrement", mock.Anything, "user-1", models.CounterLinks).
			Once().
			Return(suite.emptyLedger(), nil)
		suite.linkRepoMock.
			On("Delete", mock.Anything, int64(42), "user-1").
			Once().
			Return(nil)

		link, err := suite.svc.Shorten(context.Background(), ShortenParams{
			OwnerID:     "user-1",
			OriginalURL: "https://example.com/page",
			CustomCode:  "launch",
		})

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLimitExceeded)
		suite.Nil(link)
	})

	suite.Run("success with custom back-half charges both counters", func() {
		suite.usageRepoMock.
			On("Get", mock.Anything, "user-1").
			Once().
			Return(suite.emptyLedger(), nil)
		suite.linkRepoMock.
			On("Create", mock.Anything, mock.Anything).
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "launch", CustomCode: true}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterLinks, int64(7)).
			Once().
			Return(&models.UsageCounters{UserID: "user-1", LinksUsed: 1}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterCustomBackhalves, int64(5)).
			Once().
			Return(&models.UsageCounters{UserID: "user-1", LinksUsed: 1, CustomBackhalvesUsed: 1}, nil)

		link, err := suite.svc.Shorten(context.Background(), ShortenParams{
			OwnerID:     "user-1",
			OriginalURL: "https://example.com/page",
			CustomCode:  "launch",
		})

		suite.NoError(err)
		suite.NotNil(link)
		suite.Equal("launch", link.ShortCode)
		suite.True(link.CustomCode)
	})
}

func (suite *LinkServiceTestSuite) TestResolve() {
	suite.Run("not found records nothing", func() {
		suite.linkRepoMock.
			On("ResolveAndCountClick", mock.Anything, "missing").
			Once().
			Return(nil, database.ErrLinkNotFound)

		link, err := suite.svc.Resolve(context.Background(), "missing", ClickMeta{})

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(link)

		suite.svc.Wait()
		suite.clickRepoMock.AssertNotCalled(suite.T(), "Insert", mock.Anything, mock.Anything)
	})

	suite.Run("success appends click event asynchronously", func() {
		resolved := &models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234", OriginalURL: "https://example.com/page", Clicks: 1}

		suite.linkRepoMock.
			On("ResolveAndCountClick", mock.Anything, "abc1234").
			Once().
			Return(resolved, nil)
		suite.clickRepoMock.
			On("Insert", mock.Anything, mock.MatchedBy(func(ev models.ClickEvent) bool {
				return ev.LinkID == 1 &&
					ev.OwnerID == "user-1" &&
					ev.DeviceType == models.DeviceMobile &&
					ev.Referrer == "https://t.co" &&
					ev.Country == "DE" &&
					ev.IsQRScan
			})).
			Once().
			Return(nil)

		link, err := suite.svc.Resolve(context.Background(), "abc1234", ClickMeta{
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
			Referrer:  "https://t.co",
			Country:   "DE",
			IsQRScan:  true,
		})

		suite.NoError(err)
		suite.NotNil(link)
		suite.Equal("https://example.com/page", link.OriginalURL)
		suite.Equal(int64(1), link.Clicks)

		suite.svc.Wait()
	})

	suite.Run("click event failure does not fail the resolution", func() {
		resolved := &models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234", OriginalURL: "https://example.com/page"}

		suite.linkRepoMock.
			On("ResolveAndCountClick", mock.Anything, "abc1234").
			Once().
			Return(resolved, nil)
		suite.clickRepoMock.
			On("Insert", mock.Anything, mock.Anything).
			Once().
			Return(suite.errUnknown)

		link, err := suite.svc.Resolve(context.Background(), "abc1234", ClickMeta{})

		suite.NoError(err)
		suite.NotNil(link)

		suite.svc.Wait()
	})
}

func (suite *LinkServiceTestSuite) TestDelete() {
	suite.Run("ownership mismatch looks like not found", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "someone-else", ShortCode: "abc1234"}, nil)

		err := suite.svc.Delete(context.Background(), "user-1", "abc1234")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLinkNotFound)
	})

	suite.Run("success", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234"}, nil)
		suite.linkRepoMock.
			On("Delete", mock.Anything, int64(1), "user-1").
			Once().
			Return(nil)

		err := suite.svc.Delete(context.Background(), "user-1", "abc1234")

		suite.NoError(err)
	})
}

func (suite *LinkServiceTestSuite) TestUpdateUTM() {
	utm := models.UTM{Source: "newsletter", Medium: "email", Campaign: "summer"}

	suite.Run("ownership mismatch looks like not found", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "someone-else", ShortCode: "abc1234"}, nil)

		link, err := suite.svc.UpdateUTM(context.Background(), "user-1", "abc1234", utm)

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234"}, nil)
		suite.linkRepoMock.
			On("SetUTM", mock.Anything, int64(1), "user-1", utm).
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234", UTM: utm}, nil)

		link, err := suite.svc.UpdateUTM(context.Background(), "user-1", "abc1234", utm)

		suite.NoError(err)
		suite.Equal("newsletter", link.UTM.Source)
	})
}

func (suite *LinkServiceTestSuite) TestStats() {
	suite.Run("ownership mismatch looks like not found", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "someone-else"}, nil)

		link, _, err := suite.svc.Stats(context.Background(), "user-1", "abc1234")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("aggregates events", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234", Clicks: 2}, nil)
		suite.clickRepoMock.
			On("ListByLink", mock.Anything, int64(1), "user-1").
			Once().
			Return([]models.ClickEvent{
				{LinkID: 1, DeviceType: models.DeviceMobile},
				{LinkID: 1, DeviceType: models.DeviceMobile, IsQRScan: true},
			}, nil)

		link, stats, err := suite.svc.Stats(context.Background(), "user-1", "abc1234")

		suite.NoError(err)
		suite.NotNil(link)
		suite.Equal(int64(1), stats.TotalClicks)
		suite.Equal(int64(1), stats.TotalScans)
		suite.Len(stats.ByDevice, 1)
	})
}

func (suite *LinkServiceTestSuite) TestAttachQRCode() {
	suite.Run("quota exhausted", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234"}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterQRCodes, int64(5)).
			Once().
			Return(nil, &database.LimitExceededError{Kind: models.CounterQRCodes})

		design, err := suite.svc.AttachQRCode(context.Background(), "user-1", "abc1234")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLimitExceeded)
		suite.Nil(design)
	})

	suite.Run("design store failure refunds the charge", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234"}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterQRCodes, int64(5)).
			Once().
			Return(&models.UsageCounters{UserID: "user-1", QRCodesUsed: 1}, nil)
		suite.qrMock.
			On("ImageReference", "https://shortify.io/r/abc1234?qr=1").
			Once().
			Return("https://api.qrserver.com/v1/create-qr-code/?data=x")
		suite.qrRepoMock.
			On("Create", mock.Anything, int64(1), "user-1", mock.Anything).
			Once().
			Return(nil, suite.errUnknown)
		suite.usageRepoMock.
			On("Decrement", mock.Anything, "user-1", models.CounterQRCodes).
			Once().
			Return(suite.emptyLedger(), nil)

		design, err := suite.svc.AttachQRCode(context.Background(), "user-1", "abc1234")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(design)
	})

	suite.Run("success", func() {
		suite.linkRepoMock.
			On("GetByCode", mock.Anything, "abc1234").
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234"}, nil)
		suite.usageRepoMock.
			On("CheckAndIncrement", mock.Anything, "user-1", models.CounterQRCodes, int64(5)).
			Once().
			Return(&models.UsageCounters{UserID: "user-1", QRCodesUsed: 1}, nil)
		suite.qrMock.
			On("ImageReference", "https://shortify.io/r/abc1234?qr=1").
			Once().
			Return("https://api.qrserver.com/v1/create-qr-code/?data=x")
		suite.qrRepoMock.
			On("Create", mock.Anything, int64(1), "user-1", "https://api.qrserver.com/v1/create-qr-code/?data=x").
			Once().
			Return(&models.QRDesign{ID: 7, LinkID: 1, OwnerID: "user-1", ImageURL: "https://api.qrserver.com/v1/create-qr-code/?data=x"}, nil)
		suite.linkRepoMock.
			On("SetQRDesign", mock.Anything, int64(1), "user-1", int64(7)).
			Once().
			Return(&models.Link{ID: 1, OwnerID: "user-1", ShortCode: "abc1234"}, nil)

		design, err := suite.svc.AttachQRCode(context.Background(), "user-1", "abc1234")

		suite.NoError(err)
		suite.NotNil(design)
		suite.Equal(int64(7), design.ID)
	})
}

func (suite *LinkServiceTestSuite) TestShortURL() {
	suite.Run("joins base url and code", func() {
		suite.Equal("https://shortify.io/r/abc1234", suite.svc.ShortURL("abc1234"))
	})
}

func TestLinkService(t *testing.T) {
	suite.Run(t, new(LinkServiceTestSuite))
}
