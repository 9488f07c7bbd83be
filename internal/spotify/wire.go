package spotify

import (
	"strings"

	"github.com/ristijajohannesefestival/pela/internal/model"
)

// Wire types for the subset of the Spotify Web API this service consumes.
// Shapes follow https://developer.spotify.com/documentation/web-api/reference/

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyAlbum struct {
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	URI     string          `json:"uri"`
	Artists []spotifyArtist `json:"artists"`
	Album   spotifyAlbum    `json:"album"`
}

type searchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyDevice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

type devicesResponse struct {
	Devices []spotifyDevice `json:"devices"`
}

type playRequest struct {
	URIs []string `json:"uris"`
}

// mapTrack flattens a raw Spotify track to the song shape the audience UI
// renders: artists joined into one display string, first album image only.
func mapTrack(t spotifyTrack) model.Song {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	albumArt := ""
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	return model.Song{
		ID:       t.ID,
		Title:    t.Name,
		Artist:   strings.Join(names, ", "),
		AlbumArt: albumArt,
	}
}

func mapDevice(d spotifyDevice) model.Device {
	return model.Device{
		ID:       d.ID,
		Name:     d.Name,
		Type:     d.Type,
		IsActive: d.IsActive,
	}
}
