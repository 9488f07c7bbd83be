// Package service implements the venue request-queue, voting, search and
// playback operations over the key-value store.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/model"
	"github.com/ristijajohannesefestival/pela/internal/store"
	"go.uber.org/zap"
)

// SongSubmission is the audience-provided payload of an add-song request.
type SongSubmission struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt"`
}

// QueueService maintains one request queue per venue: session-gated adds,
// one-vote-per-session hype voting and the hype-sorted queue listing.
type QueueService struct {
	store    store.Store
	cooldown time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewQueueService creates a new queue service.
func NewQueueService(st store.Store, cooldown time.Duration, logger *zap.Logger) *QueueService {
	return &QueueService{
		store:    st,
		cooldown: cooldown,
		logger:   logger,
		now:      time.Now,
	}
}

// GetQueue returns a venue's queue sorted by descending hype. Ties keep the
// store's scan order, which for queue keys is insertion order.
func (s *QueueService) GetQueue(ctx context.Context, venueID string) ([]model.QueueEntry, error) {
	raws, err := s.store.GetByPrefix(ctx, model.QueuePrefix(venueID))
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue for venue %q: %w", venueID, err)
	}

	entries := make([]model.QueueEntry, 0, len(raws))
	for _, raw := range raws {
		var entry model.QueueEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode queue entry for venue %q: %w", venueID, err)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Hype > entries[j].Hype
	})
	return entries, nil
}

// AddSong appends a song to a venue's queue after the session cooldown check.
// The entry write and the cooldown write are two separate store operations;
// near-simultaneous adds from one session can both pass the check. That
// bounded race is accepted rather than papered over with locking the store
// does not provide.
func (s *QueueService) AddSong(ctx context.Context, venueID, sessionID string, song SongSubmission) (*model.QueueEntry, error) {
	if venueID == "" || sessionID == "" || song.Title == "" || song.Artist == "" {
		return nil, apperrors.Validation("Missing required fields")
	}

	sessionKey := model.SessionKey(venueID, sessionID)
	now := s.now()

	var cooldown model.SessionCooldown
	err := s.store.Get(ctx, sessionKey, &cooldown)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to read session cooldown: %w", err)
	}
	if err == nil && cooldown.LastAddedAt > 0 {
		since := now.UnixMilli() - cooldown.LastAddedAt
		if since < s.cooldown.Milliseconds() {
			remaining := s.cooldown.Milliseconds() - since
			minutes := int((remaining + 59_999) / 60_000)
			s.logger.Info("add rejected by cooldown",
				zap.String("venue_id", venueID),
				zap.String("session_id", sessionID),
				zap.Int("remaining_minutes", minutes),
			)
			return nil, &apperrors.CooldownActiveError{Minutes: minutes}
		}
	}

	entry := model.QueueEntry{
		ID:       newEntryID(now),
		Title:    song.Title,
		Artist:   song.Artist,
		AlbumArt: song.AlbumArt,
		Hype:     0,
		AddedAt:  now.UnixMilli(),
	}

	if err := s.store.Set(ctx, model.QueueKey(venueID, entry.ID), entry); err != nil {
		return nil, fmt.Errorf("failed to write queue entry: %w", err)
	}

	if err := s.store.Set(ctx, sessionKey, model.SessionCooldown{
		VenueID:     venueID,
		SessionID:   sessionID,
		LastAddedAt: now.UnixMilli(),
	}); err != nil {
		return nil, fmt.Errorf("failed to write session cooldown: %w", err)
	}

	s.logger.Info("song added to queue",
		zap.String("venue_id", venueID),
		zap.String("song_id", entry.ID),
		zap.String("title", entry.Title),
	)
	return &entry, nil
}

// Vote records one hype vote for a queued song. The vote marker is written
// with create-if-absent, so a session can never double-count even under
// concurrent requests. The hype increment itself is a read-modify-write and
// can lose an update when two different sessions vote at the same instant;
// that is a documented, bounded behavior.
func (s *QueueService) Vote(ctx context.Context, venueID, songID, sessionID string) (int, error) {
	if venueID == "" || songID == "" || sessionID == "" {
		return 0, apperrors.Validation("Missing required fields")
	}

	queueKey := model.QueueKey(venueID, songID)

	var entry model.QueueEntry
	if err := s.store.Get(ctx, queueKey, &entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, apperrors.ErrSongNotFound
		}
		return 0, fmt.Errorf("failed to read queue entry: %w", err)
	}

	ok, err := s.store.SetNX(ctx, model.VoteKey(venueID, sessionID, songID), true)
	if err != nil {
		return 0, fmt.Errorf("failed to write vote record: %w", err)
	}
	if !ok {
		return 0, apperrors.ErrAlreadyVoted
	}

	entry.Hype++
	if err := s.store.Set(ctx, queueKey, entry); err != nil {
		return 0, fmt.Errorf("failed to update hype: %w", err)
	}

	s.logger.Info("vote recorded",
		zap.String("venue_id", venueID),
		zap.String("song_id", songID),
		zap.Int("hype", entry.Hype),
	)
	return entry.Hype, nil
}

// demoQueue is the fixture seeded into fresh venues. addedAgo staggers the
// entries so the queue looks lived-in.
var demoQueue = []struct {
	entry    model.QueueEntry
	addedAgo time.Duration
}{
	{model.QueueEntry{ID: "demo-1", Title: "adore u", Artist: "Fred again..", AlbumArt: "https://images.unsplash.com/photo-1571766752116-63b1e6514b53?w=300&h=300&fit=crop", Hype: 127}, 1000 * time.Second},
	{model.QueueEntry{ID: "demo-2", Title: "Heat Waves", Artist: "Glass Animals", AlbumArt: "https://images.unsplash.com/photo-1622224408917-9dfb43de2cd4?w=300&h=300&fit=crop", Hype: 89}, 800 * time.Second},
	{model.QueueEntry{ID: "demo-3", Title: "Parem veelgi", Artist: "Tanel Padar", AlbumArt: "https://images.unsplash.com/photo-1629426958038-a4cb6e3830a0?w=300&h=300&fit=crop", Hype: 56}, 600 * time.Second},
	{model.QueueEntry{ID: "demo-4", Title: "Blinding Lights", Artist: "The Weeknd", AlbumArt: "https://images.unsplash.com/photo-1606224534096-fcd6bb9a2018?w=300&h=300&fit=crop", Hype: 43}, 400 * time.Second},
}

var demoNowPlaying = model.NowPlaying{
	Title:    "Starboy",
	Artist:   "The Weeknd ft. Daft Punk",
	AlbumArt: "https://images.unsplash.com/photo-1571766752116-63b1e6514b53?w=300&h=300&fit=crop",
}

// InitDemo seeds a venue with demo queue entries and a now-playing snapshot.
// Reports whether seeding happened; a venue with any queue entries is left
// untouched.
func (s *QueueService) InitDemo(ctx context.Context, venueID string) (bool, error) {
	existing, err := s.store.GetByPrefix(ctx, model.QueuePrefix(venueID))
	if err != nil {
		return false, fmt.Errorf("failed to scan queue for venue %q: %w", venueID, err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	now := s.now()
	for _, demo := range demoQueue {
		entry := demo.entry
		entry.AddedAt = now.Add(-demo.addedAgo).UnixMilli()
		if err := s.store.Set(ctx, model.QueueKey(venueID, entry.ID), entry); err != nil {
			return false, fmt.Errorf("failed to seed demo entry %q: %w", entry.ID, err)
		}
	}

	if err := s.store.Set(ctx, model.NowPlayingKey(venueID), demoNowPlaying); err != nil {
		return false, fmt.Errorf("failed to seed demo now-playing: %w", err)
	}

	s.logger.Info("demo venue initialized", zap.String("venue_id", venueID))
	return true, nil
}

// newEntryID builds a queue entry ID from the add timestamp and a random
// suffix. The timestamp prefix keeps prefix scans in insertion order;
// collisions within one venue and millisecond are covered by the suffix.
func newEntryID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
