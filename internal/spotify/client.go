// Package spotify is the HTTP client for the external music provider. It
// owns the client-credentials token: the token is cached in the shared
// key-value store with a safety margin before the real expiry, and is
// invalidated whenever the provider rejects it, so every replica re-acquires
// through the same record.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/config"
	"github.com/ristijajohannesefestival/pela/internal/metrics"
	"github.com/ristijajohannesefestival/pela/internal/model"
	"github.com/ristijajohannesefestival/pela/internal/store"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Client talks to the Spotify accounts and Web API endpoints.
type Client struct {
	httpClient   *http.Client
	accountsURL  string
	apiURL       string
	clientID     string
	clientSecret string
	searchLimit  int
	expiryMargin time.Duration
	store        store.Store
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewClient constructs a provider client. httpClient may be nil, in which
// case http.DefaultClient is used. m may be nil to disable provider metrics.
func NewClient(cfg config.SpotifyConfig, st store.Store, httpClient *http.Client, m *metrics.Metrics, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:   httpClient,
		accountsURL:  cfg.AccountsURL,
		apiURL:       cfg.APIURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		searchLimit:  cfg.SearchLimit,
		expiryMargin: cfg.ExpiryMargin,
		store:        st,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// AccessToken returns a provider access token, serving the cached one while
// it is still inside its validity margin and requesting a fresh
// client-credentials grant otherwise.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	var cached model.ProviderToken
	err := c.store.Get(ctx, model.ProviderTokenKey, &cached)
	if err == nil && cached.Token != "" && cached.ExpiresAt > c.now().UnixMilli() {
		return cached.Token, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("failed to read cached token: %w", err)
	}

	if c.clientID == "" || c.clientSecret == "" {
		c.logger.Error("spotify credentials not configured")
		return "", apperrors.ErrProviderUnavailable
	}

	conf := &clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     c.accountsURL + "/api/token",
	}

	tok, err := conf.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		c.recordRequest("token", 0)
		return "", &apperrors.UpstreamError{Op: "token", Err: err}
	}
	c.recordRequest("token", http.StatusOK)

	// Refresh 5 minutes before the provider-reported expiry so a token never
	// goes stale mid-request.
	entry := model.ProviderToken{
		Token:     tok.AccessToken,
		ExpiresAt: tok.Expiry.Add(-c.expiryMargin).UnixMilli(),
	}
	if err := c.store.Set(ctx, model.ProviderTokenKey, entry); err != nil {
		return "", fmt.Errorf("failed to cache token: %w", err)
	}

	c.logger.Info("acquired spotify access token",
		zap.Time("expires_at", time.UnixMilli(entry.ExpiresAt)))
	return tok.AccessToken, nil
}

// InvalidateToken drops the cached token so the next call re-acquires.
func (c *Client) InvalidateToken(ctx context.Context) error {
	return c.store.Delete(ctx, model.ProviderTokenKey)
}

// Search queries the provider track catalog and maps the results to the
// service's song shape.
func (c *Client) Search(ctx context.Context, query string) ([]model.Song, error) {
	endpoint := fmt.Sprintf("%s/v1/search?q=%s&type=track&limit=%d",
		c.apiURL, url.QueryEscape(query), c.searchLimit)

	var body searchResponse
	if err := c.doAPIRequest(ctx, "search", http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, err
	}

	results := make([]model.Song, 0, len(body.Tracks.Items))
	for _, t := range body.Tracks.Items {
		results = append(results, mapTrack(t))
	}
	return results, nil
}

// ResolveTrackURI finds a playable track URI for a title/artist pair. Queue
// entries carry locally generated IDs, so playback has to resolve the
// provider's own ID at play time.
func (c *Client) ResolveTrackURI(ctx context.Context, title, artist string) (string, error) {
	query := fmt.Sprintf("track:%s artist:%s", title, artist)
	endpoint := fmt.Sprintf("%s/v1/search?q=%s&type=track&limit=1",
		c.apiURL, url.QueryEscape(query))

	var body searchResponse
	if err := c.doAPIRequest(ctx, "resolve", http.MethodGet, endpoint, nil, &body); err != nil {
		return "", err
	}

	if len(body.Tracks.Items) == 0 {
		return "", apperrors.ErrSongNotFound
	}

	track := body.Tracks.Items[0]
	if track.URI != "" {
		return track.URI, nil
	}
	return "spotify:track:" + track.ID, nil
}

// Devices lists the playback devices visible to the provider account.
func (c *Client) Devices(ctx context.Context) ([]model.Device, error) {
	endpoint := c.apiURL + "/v1/me/player/devices"

	var body devicesResponse
	if err := c.doAPIRequest(ctx, "devices", http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, err
	}

	devices := make([]model.Device, 0, len(body.Devices))
	for _, d := range body.Devices {
		devices = append(devices, mapDevice(d))
	}
	return devices, nil
}

// Play starts playback of trackURI on the given device.
func (c *Client) Play(ctx context.Context, deviceID, trackURI string) error {
	endpoint := fmt.Sprintf("%s/v1/me/player/play?device_id=%s",
		c.apiURL, url.QueryEscape(deviceID))

	return c.doAPIRequest(ctx, "play", http.MethodPut, endpoint, playRequest{URIs: []string{trackURI}}, nil)
}

// doAPIRequest performs an authenticated request against the Web API. A 401
// invalidates the cached token before surfacing, so the caller's retry
// re-acquires.
func (c *Client) doAPIRequest(ctx context.Context, op, method, endpoint string, body interface{}, result interface{}) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordRequest(op, 0)
		return &apperrors.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.recordRequest(op, resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("provider rejected cached token, invalidating", zap.String("op", op))
		if err := c.InvalidateToken(ctx); err != nil {
			c.logger.Error("failed to invalidate token", zap.Error(err))
		}
		return apperrors.ErrAuthExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apperrors.UpstreamError{Op: op, Status: resp.StatusCode}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) recordRequest(op string, statusCode int) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordProviderRequest(op, statusCode)
}
