package spotify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/config"
	"github.com/ristijajohannesefestival/pela/internal/model"
	"github.com/ristijajohannesefestival/pela/internal/spotify"
	"github.com/ristijajohannesefestival/pela/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider stands in for the Spotify accounts and Web API hosts. The
// handler func serves Web API paths; the token endpoint is built in.
type fakeProvider struct {
	server     *httptest.Server
	tokenCalls atomic.Int64
	apiHandler http.HandlerFunc
}

func newFakeProvider(t *testing.T, apiHandler http.HandlerFunc) *fakeProvider {
	t.Helper()
	f := &fakeProvider{apiHandler: apiHandler}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			f.tokenCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, f.tokenCalls.Load())
			return
		}
		if f.apiHandler != nil {
			f.apiHandler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestClient(t *testing.T, f *fakeProvider, st store.Store) *spotify.Client {
	t.Helper()
	cfg := config.SpotifyConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		AccountsURL:  f.server.URL,
		APIURL:       f.server.URL,
		SearchLimit:  10,
		ExpiryMargin: 5 * time.Minute,
	}
	return spotify.NewClient(cfg, st, f.server.Client(), nil, zap.NewNop())
}

func TestClient_AccessToken(t *testing.T) {
	f := newFakeProvider(t, nil)
	st := store.NewMemoryStore()
	client := newTestClient(t, f, st)
	ctx := context.Background()

	before := time.Now()
	token, err := client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.EqualValues(t, 1, f.tokenCalls.Load())

	// The token is cached in the store with the expiry margin applied
	var cached model.ProviderToken
	require.NoError(t, st.Get(ctx, model.ProviderTokenKey, &cached))
	assert.Equal(t, "token-1", cached.Token)
	lowBound := before.Add(3600*time.Second - 5*time.Minute - time.Minute).UnixMilli()
	highBound := time.Now().Add(3600*time.Second - 5*time.Minute + time.Minute).UnixMilli()
	assert.GreaterOrEqual(t, cached.ExpiresAt, lowBound)
	assert.LessOrEqual(t, cached.ExpiresAt, highBound)

	// A second call serves the cached token without hitting the provider
	token, err = client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.EqualValues(t, 1, f.tokenCalls.Load())
}

func TestClient_AccessToken_ExpiredCacheRefreshes(t *testing.T) {
	f := newFakeProvider(t, nil)
	st := store.NewMemoryStore()
	client := newTestClient(t, f, st)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, model.ProviderTokenKey, model.ProviderToken{
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Second).UnixMilli(),
	}))

	token, err := client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.EqualValues(t, 1, f.tokenCalls.Load())
}

func TestClient_AccessToken_MissingCredentials(t *testing.T) {
	f := newFakeProvider(t, nil)
	cfg := config.SpotifyConfig{
		AccountsURL:  f.server.URL,
		APIURL:       f.server.URL,
		SearchLimit:  10,
		ExpiryMargin: 5 * time.Minute,
	}
	client := spotify.NewClient(cfg, store.NewMemoryStore(), f.server.Client(), nil, zap.NewNop())

	_, err := client.AccessToken(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.EqualValues(t, 0, f.tokenCalls.Load())
}

func TestClient_Search(t *testing.T) {
	var gotAuth, gotQuery string
	f := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/search", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tracks": map[string]interface{}{
				"items": []map[string]interface{}{
					{
						"id":      "t1",
						"name":    "Heat Waves",
						"uri":     "spotify:track:t1",
						"artists": []map[string]string{{"name": "Glass Animals"}},
						"album": map[string]interface{}{
							"name":   "Dreamland",
							"images": []map[string]string{{"url": "https://img/large.jpg"}, {"url": "https://img/small.jpg"}},
						},
					},
					{
						"id":      "t2",
						"name":    "Collab",
						"artists": []map[string]string{{"name": "A"}, {"name": "B"}},
						"album":   map[string]interface{}{"name": "x", "images": []map[string]string{}},
					},
				},
			},
		})
	})
	client := newTestClient(t, f, store.NewMemoryStore())

	songs, err := client.Search(context.Background(), "heat waves")
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "heat waves", gotQuery)

	require.Len(t, songs, 2)
	assert.Equal(t, model.Song{
		ID:       "t1",
		Title:    "Heat Waves",
		Artist:   "Glass Animals",
		AlbumArt: "https://img/large.jpg",
	}, songs[0])
	// Multiple artists collapse to one display string, no album art falls
	// back to empty
	assert.Equal(t, "A, B", songs[1].Artist)
	assert.Equal(t, "", songs[1].AlbumArt)
}

func TestClient_Search_UnauthorizedInvalidatesToken(t *testing.T) {
	f := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	st := store.NewMemoryStore()
	client := newTestClient(t, f, st)
	ctx := context.Background()

	_, err := client.Search(ctx, "q")
	assert.ErrorIs(t, err, apperrors.ErrAuthExpired)

	// The cached token is gone, so the next acquisition goes back to the
	// accounts endpoint
	var cached model.ProviderToken
	assert.ErrorIs(t, st.Get(ctx, model.ProviderTokenKey, &cached), store.ErrNotFound)

	token, err := client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestClient_Search_UpstreamFailure(t *testing.T) {
	f := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client := newTestClient(t, f, store.NewMemoryStore())

	_, err := client.Search(context.Background(), "q")
	var uerr *apperrors.UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusBadGateway, uerr.Status)
	assert.Equal(t, "search", uerr.Op)
}

func TestClient_ResolveTrackURI(t *testing.T) {
	var gotQuery string
	items := []map[string]interface{}{}
	f := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tracks": map[string]interface{}{"items": items},
		})
	})
	client := newTestClient(t, f, store.NewMemoryStore())
	ctx := context.Background()

	// No match
	_, err := client.ResolveTrackURI(ctx, "Unknown", "Nobody")
	assert.ErrorIs(t, err, apperrors.ErrSongNotFound)
	assert.Equal(t, "track:Unknown artist:Nobody", gotQuery)

	// Match with a URI
	items = []map[string]interface{}{{"id": "t1", "name": "x", "uri": "spotify:track:t1"}}
	uri, err := client.ResolveTrackURI(ctx, "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "spotify:track:t1", uri)

	// Match without a URI falls back to the track ID
	items = []map[string]interface{}{{"id": "t2", "name": "x"}}
	uri, err = client.ResolveTrackURI(ctx, "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "spotify:track:t2", uri)
}

func TestClient_Devices(t *testing.T) {
	f := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/me/player/devices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"devices":[{"id":"d1","name":"Stage","type":"Speaker","is_active":true}]}`)
	})
	client := newTestClient(t, f, store.NewMemoryStore())

	devices, err := client.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, model.Device{ID: "d1", Name: "Stage", Type: "Speaker", IsActive: true}, devices[0])
}

func TestClient_Play(t *testing.T) {
	var gotMethod, gotDevice string
	var gotBody []byte
	f := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/me/player/play", r.URL.Path)
		gotMethod = r.Method
		gotDevice = r.URL.Query().Get("device_id")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, f, store.NewMemoryStore())

	err := client.Play(context.Background(), "d1", "spotify:track:t1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "d1", gotDevice)
	assert.JSONEq(t, `{"uris":["spotify:track:t1"]}`, string(gotBody))
}
