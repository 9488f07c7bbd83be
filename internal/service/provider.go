package service

import (
	"context"

	"github.com/ristijajohannesefestival/pela/internal/model"
)

// Provider is the slice of the external music API the services depend on.
// *spotify.Client implements it; tests substitute a mock.
type Provider interface {
	Search(ctx context.Context, query string) ([]model.Song, error)
	ResolveTrackURI(ctx context.Context, title, artist string) (string, error)
	Devices(ctx context.Context) ([]model.Device, error)
	Play(ctx context.Context, deviceID, trackURI string) error
}
