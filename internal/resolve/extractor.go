// Package resolve implements context-reference resolution: deciding
// whether an utterance points back at something the user saw earlier,
// finding the right candidate in the interaction memory, and asking for
// clarification when it cannot.
package resolve

import (
	"strings"

	"github.com/nexuslabs/nexus-voice/internal/domain"
)

// Descriptor captures the contextual cues found in one utterance.
type Descriptor struct {
	HasReference bool
	RefType      domain.RefType // empty when no keyword family matched
	Ordinal      string         // empty when no ordinal word found
	// NeedsClarification is reserved for extraction-time clarification
	// flags; resolution currently decides clarification on its own.
	NeedsClarification bool
}

// Ordinal words in priority order; the first match wins.
var ordinalWords = []string{"first", "second", "third", "fourth", "fifth", "last"}

// Demonstrative back-references implying "the most recent one".
var demonstrativeWords = []string{"that", "this", "it", "there"}

// ExtractContext scans raw input text for reference cues. Matching is
// substring containment over the lowercased text, like the rest of the
// classification layer. An empty input yields an empty descriptor, not
// an error.
func ExtractContext(input string) Descriptor {
	var d Descriptor
	text := strings.ToLower(input)

	for _, ordinal := range ordinalWords {
		if strings.Contains(text, ordinal) {
			d.HasReference = true
			d.Ordinal = ordinal
			break
		}
	}

	if !d.HasReference {
		for _, demo := range demonstrativeWords {
			if strings.Contains(text, demo) {
				d.HasReference = true
				break
			}
		}
	}

	// Type inference runs independently of ordinal/demonstrative
	// detection; the first matching keyword family wins.
	switch {
	case containsAny(text, "email", "message"):
		d.RefType = domain.RefTypeEmail
	case containsAny(text, "place", "location", "there"):
		d.RefType = domain.RefTypeLocation
	case containsAny(text, "song", "track", "music"):
		d.RefType = domain.RefTypeTrack
	}

	return d
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
