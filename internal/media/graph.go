package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
)

// maxDownloadBytes caps a single attachment download.
const maxDownloadBytes = 100 << 20 // 100 MiB

// MediaObject is the Graph API media metadata response.
type MediaObject struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// GraphClient fetches media objects from the Cloud API.
type GraphClient struct {
	baseURL string
	client  *http.Client
}

// NewGraphClient creates a Graph API client with the given base URL and
// per-request timeout.
func NewGraphClient(baseURL string, timeout time.Duration) *GraphClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GraphClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchMetadata resolves a media id to its short-lived download URL.
func (c *GraphClient) FetchMetadata(ctx context.Context, accessToken, mediaID string) (*MediaObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.baseURL, mediaID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: media metadata request failed: %w", apperrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: media metadata returned %d: %s", apperrors.ErrUpstream, resp.StatusCode, string(body))
	}

	var obj MediaObject
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: failed to decode media metadata: %w", apperrors.ErrUpstream, err)
	}
	if obj.URL == "" {
		return nil, fmt.Errorf("%w: media metadata has no download url", apperrors.ErrUpstream)
	}
	return &obj, nil
}

// Download fetches the media binary from the URL returned by FetchMetadata.
// The URL only honors requests carrying the same access token.
func (c *GraphClient) Download(ctx context.Context, accessToken, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: media download failed: %w", apperrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: media download returned %d", apperrors.ErrUpstream, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read media body: %w", apperrors.ErrUpstream, err)
	}
	if int64(len(data)) > maxDownloadBytes {
		return nil, fmt.Errorf("%w: media exceeds %d bytes", apperrors.ErrUpstream, int64(maxDownloadBytes))
	}
	return data, nil
}
