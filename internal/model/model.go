// Package model defines the persisted entities and the key layout of the
// venue request-queue store. Key formats are a store contract: prefix scans
// over "queue:{venueId}:" must enumerate exactly that venue's entries, so any
// change here changes the on-disk layout.
package model

// Timestamps are Unix milliseconds throughout, matching the values the
// audience and operator frontends already persist and compare against.

// QueueEntry is one requested song in a venue's queue.
type QueueEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt"`
	Hype     int    `json:"hype"`
	AddedAt  int64  `json:"addedAt"`
}

// SessionCooldown records the last successful add for a (venue, session)
// pair. It is overwritten on every successful add.
type SessionCooldown struct {
	VenueID     string `json:"venueId"`
	SessionID   string `json:"sessionId"`
	LastAddedAt int64  `json:"lastAddedAt"`
}

// NowPlaying is the last-known playback snapshot for a venue.
type NowPlaying struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	AlbumArt  string `json:"albumArt"`
	StartedAt int64  `json:"startedAt,omitempty"`
}

// ProviderToken is the cached Spotify client-credentials token. Process-wide,
// not venue-scoped, and stored in the KV store so horizontally scaled
// replicas share one token.
type ProviderToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// RateLimitWindow is the fixed search rate-limit window. A single global
// record guards the provider quota across all venues.
type RateLimitWindow struct {
	Count   int   `json:"count"`
	ResetAt int64 `json:"resetAt"`
}

// SelectedDevice is the operator-chosen Spotify playback device for a venue.
type SelectedDevice struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
}

// Song is a catalog search result as served to the audience UI.
type Song struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt"`
}

// Device is a provider playback device as served to the operator UI.
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"isActive"`
}

const (
	// ProviderTokenKey holds the shared ProviderToken record.
	ProviderTokenKey = "spotify:access_token"
	// SearchRateLimitKey holds the shared RateLimitWindow record.
	SearchRateLimitKey = "ratelimit:spotify:search"
)

// QueuePrefix returns the scan prefix covering every queue entry of a venue.
func QueuePrefix(venueID string) string {
	return "queue:" + venueID + ":"
}

// QueueKey returns the key of a single queue entry.
func QueueKey(venueID, songID string) string {
	return QueuePrefix(venueID) + songID
}

// SessionKey returns the key of a session's add-cooldown record.
func SessionKey(venueID, sessionID string) string {
	return "session:" + venueID + ":" + sessionID
}

// VoteKey returns the key of a vote presence marker. One key exists per
// (venue, session, song) triple, ever.
func VoteKey(venueID, sessionID, songID string) string {
	return "vote:" + venueID + ":" + sessionID + ":" + songID
}

// NowPlayingKey returns the key of a venue's now-playing snapshot.
func NowPlayingKey(venueID string) string {
	return "nowplaying:" + venueID
}

// DeviceKey returns the key of a venue's selected playback device.
func DeviceKey(venueID string) string {
	return "device:" + venueID
}
