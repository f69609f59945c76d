package intent

import (
	"regexp"
	"strings"
)

// pattern pairs a compiled expression with the intent it selects.
// Patterns are evaluated top to bottom; the first match wins, so more
// specific patterns must come before broad ones (e.g. "open spotify"
// before the bare "play" catch-all).
type pattern struct {
	re     *regexp.Regexp
	intent Intent
}

var patterns = []pattern{
	// Gmail
	{regexp.MustCompile(`reply.*email`), GmailReply},
	{regexp.MustCompile(`respond.*email`), GmailReply},
	{regexp.MustCompile(`answer.*email`), GmailReply},
	{regexp.MustCompile(`write back`), GmailReply},
	{regexp.MustCompile(`open.*gmail`), GmailOpenUI},
	{regexp.MustCompile(`show.*gmail`), GmailOpenUI},
	{regexp.MustCompile(`take me to gmail`), GmailOpenUI},
	{regexp.MustCompile(`summarize.*email`), GmailSummarize},
	{regexp.MustCompile(`email.*summary`), GmailSummarize},
	{regexp.MustCompile(`what.*email`), GmailSummarize},
	{regexp.MustCompile(`check.*email`), GmailSummarize},
	{regexp.MustCompile(`any.*email`), GmailSummarize},
	{regexp.MustCompile(`show.*email`), GmailSummarize},

	// Google Maps
	{regexp.MustCompile(`open.*maps`), MapsOpenUI},
	{regexp.MustCompile(`show.*maps`), MapsOpenUI},
	{regexp.MustCompile(`how far`), MapsDistance},
	{regexp.MustCompile(`distance`), MapsDistance},
	{regexp.MustCompile(`how long.*take`), MapsDistance},
	{regexp.MustCompile(`travel time`), MapsDistance},
	{regexp.MustCompile(`directions`), MapsDirections},
	{regexp.MustCompile(`navigate`), MapsDirections},
	{regexp.MustCompile(`take me`), MapsDirections},
	{regexp.MustCompile(`how do i get`), MapsDirections},
	{regexp.MustCompile(`route`), MapsDirections},

	// Spotify
	{regexp.MustCompile(`open.*spotify`), SpotifyOpenUI},
	{regexp.MustCompile(`show.*spotify`), SpotifyOpenUI},
	{regexp.MustCompile(`pause`), SpotifyPause},
	{regexp.MustCompile(`stop.*music`), SpotifyPause},
	{regexp.MustCompile(`stop playing`), SpotifyPause},
	{regexp.MustCompile(`play`), SpotifyPlay},
	{regexp.MustCompile(`start.*music`), SpotifyPlay},
	{regexp.MustCompile(`put on`), SpotifyPlay},
	{regexp.MustCompile(`listen`), SpotifyPlay},
}

// Intents that always hand off to an external UI.
var uiHandoffIntents = map[Intent]bool{
	GmailOpenUI:    true,
	MapsOpenUI:     true,
	MapsDirections: true,
	SpotifyOpenUI:  true,
}

// Classify maps user input to an intent and the action type that
// executes it. Unmatched input yields (Unknown, ActionClarify).
func Classify(input string) (Intent, ActionType) {
	text := strings.ToLower(strings.TrimSpace(input))

	for _, p := range patterns {
		if p.re.MatchString(text) {
			return p.intent, actionTypeFor(p.intent, text)
		}
	}

	return Unknown, ActionClarify
}

func actionTypeFor(intent Intent, text string) ActionType {
	if uiHandoffIntents[intent] {
		return ActionUIHandoff
	}
	// An explicit "open"/"show me" overrides the default API action.
	for _, word := range []string{"open", "show me", "display"} {
		if strings.Contains(text, word) {
			return ActionUIHandoff
		}
	}
	return ActionAPI
}

var (
	replyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`saying\s+(.+)`),
		regexp.MustCompile(`tell them\s+(.+)`),
		regexp.MustCompile(`message\s+(.+)`),
	}
	destinationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`to\s+(.+?)(?:\?|$)`),
		regexp.MustCompile(`from here to\s+(.+?)(?:\?|$)`),
	}
	playPatterns = []*regexp.Regexp{
		regexp.MustCompile(`play\s+(.+?)(?:\s+by\s+|\s+music|\s+song|$)`),
		regexp.MustCompile(`put on\s+(.+)`),
	}
)

// ExtractParams pulls intent-specific parameters out of the input text.
// Missing parameters are simply absent from the map; downstream
// resolution or clarification handles them.
func ExtractParams(intent Intent, input string) map[string]string {
	params := make(map[string]string)
	text := strings.ToLower(input)

	switch intent {
	case GmailReply:
		if v, ok := firstCapture(replyPatterns, text); ok {
			params["reply_content"] = v
		}
	case MapsDistance, MapsDirections:
		if v, ok := firstCapture(destinationPatterns, text); ok {
			params["destination"] = v
		}
	case SpotifyPlay:
		if v, ok := firstCapture(playPatterns, text); ok {
			params["query"] = v
		}
	}

	return params
}

func firstCapture(res []*regexp.Regexp, text string) (string, bool) {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}
