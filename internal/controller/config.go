package controller

import "time"

// Config is the node's runtime configuration, assembled by cmd/lsnpd from
// flags (spec.md's ambient configuration surface).
type Config struct {
	// Username is the local handle before "@ip" (e.g. "alice").
	Username string
	// Port is the UDP port this node binds and peers connect back on.
	Port int
	// DisplayName is the human-readable name advertised in PROFILE.
	DisplayName string
	// Status is the free-text status line advertised in PROFILE.
	Status string
	// FilesDir is where outgoing SENDFILE paths are resolved from.
	FilesDir string
	// DownloadsDir is where accepted incoming transfers are written.
	DownloadsDir string
	// AvatarPath, if set, is loaded once at startup and advertised in
	// every PROFILE broadcast.
	AvatarPath string
	// Verbose raises the log level to Debug and enables the dropped-frame
	// trace lines spec.md §7 describes.
	Verbose bool
	// PostTTL is the default TTL attached to outbound POST frames.
	PostTTL time.Duration
}

// DefaultPostTTL mirrors spec.md §4.8's default broadcast post lifetime.
const DefaultPostTTL = 1 * time.Hour

// ProfileRebroadcastInterval is how often PROFILE is re-announced while
// any peer is known (spec.md §4.12).
const ProfileRebroadcastInterval = 300 * time.Second

// HousekeepingInterval governs the GC sweep over finished transfers and
// expired avatar cache entries (spec.md §4.12).
const HousekeepingInterval = 1 * time.Hour
