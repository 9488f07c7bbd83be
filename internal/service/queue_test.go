package service

import (
	"context"
	"testing"
	"time"

	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/model"
	"github.com/ristijajohannesefestival/pela/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupQueueService creates a queue service on a fresh in-memory store with a
// controllable clock.
func setupQueueService(t *testing.T) (*QueueService, *store.MemoryStore, *time.Time) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := NewQueueService(st, 30*time.Minute, zap.NewNop())

	clock := time.Date(2026, 7, 4, 21, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, st, &clock
}

func TestQueueService_AddSong(t *testing.T) {
	svc, st, _ := setupQueueService(t)
	ctx := context.Background()

	entry, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{
		Title:    "Heat Waves",
		Artist:   "Glass Animals",
		AlbumArt: "https://example.com/art.jpg",
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Heat Waves", entry.Title)
	assert.Equal(t, "Glass Animals", entry.Artist)
	assert.Equal(t, 0, entry.Hype)
	assert.Equal(t, svc.now().UnixMilli(), entry.AddedAt)

	var stored model.QueueEntry
	require.NoError(t, st.Get(ctx, model.QueueKey("venue-1", entry.ID), &stored))
	assert.Equal(t, *entry, stored)

	var cooldown model.SessionCooldown
	require.NoError(t, st.Get(ctx, model.SessionKey("venue-1", "sess-1"), &cooldown))
	assert.Equal(t, svc.now().UnixMilli(), cooldown.LastAddedAt)
}

func TestQueueService_AddSong_Validation(t *testing.T) {
	svc, _, _ := setupQueueService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		venueID   string
		sessionID string
		song      SongSubmission
	}{
		{"missing venue", "", "sess-1", SongSubmission{Title: "a", Artist: "b"}},
		{"missing session", "venue-1", "", SongSubmission{Title: "a", Artist: "b"}},
		{"missing title", "venue-1", "sess-1", SongSubmission{Artist: "b"}},
		{"missing artist", "venue-1", "sess-1", SongSubmission{Title: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddSong(ctx, tt.venueID, tt.sessionID, tt.song)
			var verr *apperrors.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestQueueService_AddSong_CooldownBlocks(t *testing.T) {
	svc, _, clock := setupQueueService(t)
	ctx := context.Background()

	_, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "a", Artist: "b"})
	require.NoError(t, err)

	// An immediate second add reports the full window remaining
	_, err = svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "c", Artist: "d"})
	var cerr *apperrors.CooldownActiveError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 30, cerr.Minutes)

	// Partway through the window the remaining minutes round up
	*clock = clock.Add(12*time.Minute + 30*time.Second)
	_, err = svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "c", Artist: "d"})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 18, cerr.Minutes)
}

func TestQueueService_AddSong_CooldownExpires(t *testing.T) {
	svc, _, clock := setupQueueService(t)
	ctx := context.Background()

	_, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "a", Artist: "b"})
	require.NoError(t, err)

	*clock = clock.Add(30 * time.Minute)
	entry, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "c", Artist: "d"})
	require.NoError(t, err)
	assert.Equal(t, "c", entry.Title)
}

func TestQueueService_AddSong_CooldownIsPerSession(t *testing.T) {
	svc, _, _ := setupQueueService(t)
	ctx := context.Background()

	_, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "a", Artist: "b"})
	require.NoError(t, err)

	// A different session at the same venue is not throttled
	_, err = svc.AddSong(ctx, "venue-1", "sess-2", SongSubmission{Title: "c", Artist: "d"})
	assert.NoError(t, err)

	// The same session at a different venue is not throttled either
	_, err = svc.AddSong(ctx, "venue-2", "sess-1", SongSubmission{Title: "e", Artist: "f"})
	assert.NoError(t, err)
}

func TestQueueService_GetQueue_SortedByHype(t *testing.T) {
	svc, _, clock := setupQueueService(t)
	ctx := context.Background()

	add := func(session, title string) *model.QueueEntry {
		entry, err := svc.AddSong(ctx, "venue-1", session, SongSubmission{Title: title, Artist: "x"})
		require.NoError(t, err)
		*clock = clock.Add(time.Millisecond)
		return entry
	}

	low := add("sess-1", "low")
	high := add("sess-2", "high")
	mid := add("sess-3", "mid")

	for _, session := range []string{"v1", "v2", "v3"} {
		_, err := svc.Vote(ctx, "venue-1", high.ID, session)
		require.NoError(t, err)
	}
	_, err := svc.Vote(ctx, "venue-1", mid.ID, "v1")
	require.NoError(t, err)

	queue, err := svc.GetQueue(ctx, "venue-1")
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, high.ID, queue[0].ID)
	assert.Equal(t, mid.ID, queue[1].ID)
	assert.Equal(t, low.ID, queue[2].ID)
}

func TestQueueService_GetQueue_TiesKeepInsertionOrder(t *testing.T) {
	svc, _, clock := setupQueueService(t)
	ctx := context.Background()

	first, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "first", Artist: "x"})
	require.NoError(t, err)
	*clock = clock.Add(time.Millisecond)
	second, err := svc.AddSong(ctx, "venue-1", "sess-2", SongSubmission{Title: "second", Artist: "x"})
	require.NoError(t, err)

	queue, err := svc.GetQueue(ctx, "venue-1")
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, second.ID, queue[1].ID)
}

func TestQueueService_GetQueue_EmptyVenue(t *testing.T) {
	svc, _, _ := setupQueueService(t)

	queue, err := svc.GetQueue(context.Background(), "venue-none")
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestQueueService_Vote(t *testing.T) {
	svc, st, _ := setupQueueService(t)
	ctx := context.Background()

	entry, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "a", Artist: "b"})
	require.NoError(t, err)

	hype, err := svc.Vote(ctx, "venue-1", entry.ID, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, 1, hype)

	hype, err = svc.Vote(ctx, "venue-1", entry.ID, "sess-3")
	require.NoError(t, err)
	assert.Equal(t, 2, hype)

	var stored model.QueueEntry
	require.NoError(t, st.Get(ctx, model.QueueKey("venue-1", entry.ID), &stored))
	assert.Equal(t, 2, stored.Hype)
}

func TestQueueService_Vote_OncePerSession(t *testing.T) {
	svc, _, _ := setupQueueService(t)
	ctx := context.Background()

	entry, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "a", Artist: "b"})
	require.NoError(t, err)

	_, err = svc.Vote(ctx, "venue-1", entry.ID, "sess-2")
	require.NoError(t, err)

	_, err = svc.Vote(ctx, "venue-1", entry.ID, "sess-2")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyVoted)

	// The failed vote must not have bumped hype
	queue, err := svc.GetQueue(ctx, "venue-1")
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 1, queue[0].Hype)
}

func TestQueueService_Vote_SongNotFound(t *testing.T) {
	svc, st, _ := setupQueueService(t)
	ctx := context.Background()

	_, err := svc.Vote(ctx, "venue-1", "missing-song", "sess-1")
	assert.ErrorIs(t, err, apperrors.ErrSongNotFound)

	// A rejected vote leaves no marker behind, so the same session can vote
	// once the song actually exists
	var marker bool
	err = st.Get(ctx, model.VoteKey("venue-1", "sess-1", "missing-song"), &marker)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueueService_Vote_Validation(t *testing.T) {
	svc, _, _ := setupQueueService(t)
	ctx := context.Background()

	var verr *apperrors.ValidationError

	_, err := svc.Vote(ctx, "", "song", "sess")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.Vote(ctx, "venue", "", "sess")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.Vote(ctx, "venue", "song", "")
	assert.ErrorAs(t, err, &verr)
}

func TestQueueService_InitDemo(t *testing.T) {
	svc, st, _ := setupQueueService(t)
	ctx := context.Background()

	seeded, err := svc.InitDemo(ctx, "venue-1")
	require.NoError(t, err)
	assert.True(t, seeded)

	queue, err := svc.GetQueue(ctx, "venue-1")
	require.NoError(t, err)
	require.Len(t, queue, 4)
	assert.Equal(t, "adore u", queue[0].Title)
	assert.Equal(t, 127, queue[0].Hype)

	var np model.NowPlaying
	require.NoError(t, st.Get(ctx, model.NowPlayingKey("venue-1"), &np))
	assert.Equal(t, "Starboy", np.Title)
}

func TestQueueService_InitDemo_Idempotent(t *testing.T) {
	svc, _, _ := setupQueueService(t)
	ctx := context.Background()

	seeded, err := svc.InitDemo(ctx, "venue-1")
	require.NoError(t, err)
	require.True(t, seeded)

	seeded, err = svc.InitDemo(ctx, "venue-1")
	require.NoError(t, err)
	assert.False(t, seeded)

	queue, err := svc.GetQueue(ctx, "venue-1")
	require.NoError(t, err)
	assert.Len(t, queue, 4)
}

func TestQueueService_InitDemo_SkipsNonEmptyVenue(t *testing.T) {
	svc, _, _ := setupQueueService(t)
	ctx := context.Background()

	_, err := svc.AddSong(ctx, "venue-1", "sess-1", SongSubmission{Title: "a", Artist: "b"})
	require.NoError(t, err)

	seeded, err := svc.InitDemo(ctx, "venue-1")
	require.NoError(t, err)
	assert.False(t, seeded)

	queue, err := svc.GetQueue(ctx, "venue-1")
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}
