// Package qr is a thin client for the external QR image rendering
// service. The core never encodes QR codes itself; it only derives an
// image reference for a short URL and can fetch the rendered bytes.
package qr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shortify/shortify/internal/config"
)

type Client struct {
	baseURL    string
	size       string
	httpClient *http.Client
}

func NewClient(cfg config.QR) *Client {
	return &Client{
		baseURL: cfg.APIBaseURL,
		size:    cfg.Size,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ImageReference builds the renderable image URL for data without making
// a network call.
func (c *Client) ImageReference(data string) string {
	q := url.Values{}
	q.Set("size", c.size)
	q.Set("data", data)

	return fmt.Sprintf("%s/create-qr-code/?%s", c.baseURL, q.Encode())
}

// Fetch downloads the rendered image bytes for data.
func (c *Client) Fetch(ctx context.Context, data string) ([]byte, error) {
	const op = "qr.Client.Fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ImageReference(data), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to fetch qr image: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status from qr service: %s", op, resp.Status)
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read qr image: %w", op, err)
	}

	return img, nil
}
