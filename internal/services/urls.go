package services

// GmailURL is the web UI target for Gmail handoff.
func GmailURL() string {
	return "https://mail.google.com"
}

// SpotifyURL is the web UI target for Spotify handoff.
func SpotifyURL() string {
	return "https://open.spotify.com"
}
