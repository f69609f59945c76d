// Package intent maps natural-language commands to a fixed set of
// intents. Classification is a deterministic ordered pattern table, not
// a learned model.
package intent

// Intent identifies a supported command.
type Intent string

const (
	// Gmail
	GmailSummarize Intent = "gmail_summarize"
	GmailReply     Intent = "gmail_reply"
	GmailOpenUI    Intent = "gmail_open_ui"

	// Google Maps
	MapsDistance   Intent = "maps_distance"
	MapsDirections Intent = "maps_directions"
	MapsOpenUI     Intent = "maps_open_ui"

	// Spotify
	SpotifyPlay   Intent = "spotify_play"
	SpotifyPause  Intent = "spotify_pause"
	SpotifyOpenUI Intent = "spotify_open_ui"

	// System
	Unknown Intent = "unknown"
)

// ActionType is how an intent gets executed.
type ActionType string

const (
	// ActionAPI executes through the automation engine.
	ActionAPI ActionType = "api"
	// ActionUIHandoff opens an external service UI instead of calling an API.
	ActionUIHandoff ActionType = "ui_handoff"
	// ActionClarify means the input needs more information before anything
	// can be executed.
	ActionClarify ActionType = "clarify"
)

// Description returns a human-readable description of the intent.
func (i Intent) Description() string {
	switch i {
	case GmailSummarize:
		return "Summarize emails"
	case GmailReply:
		return "Reply to email"
	case GmailOpenUI:
		return "Open Gmail interface"
	case MapsDistance:
		return "Calculate distance"
	case MapsDirections:
		return "Get directions"
	case MapsOpenUI:
		return "Open Maps interface"
	case SpotifyPlay:
		return "Play music"
	case SpotifyPause:
		return "Pause music"
	case SpotifyOpenUI:
		return "Open Spotify interface"
	default:
		return "Unknown intent"
	}
}
