package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/model"
	"github.com/ristijajohannesefestival/pela/internal/store"
	"go.uber.org/zap"
)

// PlaybackService holds the per-venue now-playing snapshot and drives the
// operator's "play next" action against the provider device API.
type PlaybackService struct {
	store    store.Store
	queues   *QueueService
	provider Provider
	logger   *zap.Logger
}

// NewPlaybackService creates a new playback service.
func NewPlaybackService(st store.Store, queues *QueueService, provider Provider, logger *zap.Logger) *PlaybackService {
	return &PlaybackService{
		store:    st,
		queues:   queues,
		provider: provider,
		logger:   logger,
	}
}

// NowPlaying returns a venue's last-known playback snapshot, or nil if the
// venue has never played anything.
func (s *PlaybackService) NowPlaying(ctx context.Context, venueID string) (*model.NowPlaying, error) {
	var np model.NowPlaying
	err := s.store.Get(ctx, model.NowPlayingKey(venueID), &np)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read now-playing for venue %q: %w", venueID, err)
	}
	return &np, nil
}

// Devices lists the provider playback devices for the operator UI.
func (s *PlaybackService) Devices(ctx context.Context, venueID string) ([]model.Device, error) {
	if venueID == "" {
		return nil, apperrors.Validation("Missing venue id")
	}
	return s.provider.Devices(ctx)
}

// SelectDevice persists the operator's playback device choice for a venue.
func (s *PlaybackService) SelectDevice(ctx context.Context, venueID, deviceID, name string) error {
	if venueID == "" || deviceID == "" {
		return apperrors.Validation("Missing required fields")
	}

	if err := s.store.Set(ctx, model.DeviceKey(venueID), model.SelectedDevice{
		DeviceID: deviceID,
		Name:     name,
	}); err != nil {
		return fmt.Errorf("failed to store selected device: %w", err)
	}

	s.logger.Info("playback device selected",
		zap.String("venue_id", venueID),
		zap.String("device_id", deviceID),
	)
	return nil
}

// PlayNext pops the top-voted entry off the venue's queue and starts it on
// the selected device: resolve a playable URI for the entry (queue IDs are
// local, not provider IDs), issue the play command, record the now-playing
// snapshot, then remove the entry from the queue. Failures before the play
// command leave the queue untouched.
func (s *PlaybackService) PlayNext(ctx context.Context, venueID string) (*model.NowPlaying, error) {
	if venueID == "" {
		return nil, apperrors.Validation("Missing venue id")
	}

	queue, err := s.queues.GetQueue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if len(queue) == 0 {
		return nil, apperrors.ErrQueueEmpty
	}
	top := queue[0]

	var device model.SelectedDevice
	if err := s.store.Get(ctx, model.DeviceKey(venueID), &device); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Validation("No playback device selected")
		}
		return nil, fmt.Errorf("failed to read selected device: %w", err)
	}

	uri, err := s.provider.ResolveTrackURI(ctx, top.Title, top.Artist)
	if err != nil {
		return nil, err
	}

	if err := s.provider.Play(ctx, device.DeviceID, uri); err != nil {
		return nil, err
	}

	np := model.NowPlaying{
		Title:     top.Title,
		Artist:    top.Artist,
		AlbumArt:  top.AlbumArt,
		StartedAt: s.queues.now().UnixMilli(),
	}
	if err := s.store.Set(ctx, model.NowPlayingKey(venueID), np); err != nil {
		return nil, fmt.Errorf("failed to write now-playing: %w", err)
	}

	if err := s.store.Delete(ctx, model.QueueKey(venueID, top.ID)); err != nil {
		return nil, fmt.Errorf("failed to remove played entry: %w", err)
	}

	s.logger.Info("playing next song",
		zap.String("venue_id", venueID),
		zap.String("song_id", top.ID),
		zap.String("title", top.Title),
		zap.String("device_id", device.DeviceID),
	)
	return &np, nil
}
