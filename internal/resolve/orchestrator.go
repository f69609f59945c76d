package resolve

import (
	"context"
	"log/slog"

	"github.com/nexuslabs/nexus-voice/internal/domain"
	"github.com/nexuslabs/nexus-voice/internal/store"
)

// ResolvedReferenceKey is the entities-map key the resolved entity is
// attached under.
const ResolvedReferenceKey = "resolved_reference"

// Resolution is the orchestrator's structured outcome: the accumulated
// entity map plus the clarification flag. It is always well-formed, even
// for empty input.
type Resolution struct {
	Entities           map[string]any         `json:"entities"`
	ResolvedReference  *domain.ResolvedEntity `json:"resolved_reference,omitempty"`
	NeedsClarification bool                   `json:"needs_clarification"`
	// RefType carries the inferred reference type so the caller can ask
	// a targeted clarification question. Empty means no type was inferred.
	RefType domain.RefType `json:"ref_type,omitempty"`
}

// Clarification is a structured prompt for an ambiguous reference.
type Clarification struct {
	Question string         `json:"question"`
	Options  []string       `json:"options"`
	RefType  domain.RefType `json:"type"`
}

var clarificationQuestions = map[domain.RefType]string{
	domain.RefTypeEmail:    "Which email? Could you be more specific?",
	domain.RefTypeLocation: "Which location do you mean?",
	domain.RefTypeTrack:    "Which song are you referring to?",
}

const generalClarificationQuestion = "Could you please clarify what you mean?"

// Orchestrator combines extracted command parameters with resolver
// output and decides whether the result is complete or needs a
// clarification round-trip.
type Orchestrator struct {
	repo     store.Repository
	resolver *Resolver
}

// NewOrchestrator creates an orchestrator over the given repository.
func NewOrchestrator(repo store.Repository) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		resolver: NewResolver(repo),
	}
}

// ResolveEntities resolves references in rawInput against the
// interaction memory. Parameters already extracted by the intent
// classifier take precedence and are never overwritten. The command
// intent rides along for tracing; resolution itself is intent-agnostic.
// Only storage faults produce an error; a resolution miss routes to
// clarification.
func (o *Orchestrator) ResolveEntities(ctx context.Context, rawInput, commandIntent string, params map[string]string) (*Resolution, error) {
	res := &Resolution{Entities: make(map[string]any, len(params)+1)}
	for k, v := range params {
		res.Entities[k] = v
	}

	desc := ExtractContext(rawInput)
	res.RefType = desc.RefType

	slog.Debug("Resolving entities",
		"intent", commandIntent,
		"has_reference", desc.HasReference,
		"ordinal", desc.Ordinal,
		"ref_type", desc.RefType)

	if !desc.HasReference {
		return res, nil
	}

	var entity *domain.ResolvedEntity
	var err error

	if desc.Ordinal != "" {
		// Email is the default reference type: it is the system's most
		// common entity, so "the second one" means the second email
		// unless the utterance says otherwise.
		refType := desc.RefType
		if refType == "" {
			refType = domain.RefTypeEmail
		}
		entity, err = o.resolver.ResolveOrdinal(ctx, desc.Ordinal, refType)
	} else {
		entity, err = o.resolver.ResolveDemonstrative(ctx, rawInput)
	}
	if err != nil {
		return nil, err
	}

	if entity != nil {
		res.ResolvedReference = entity
		res.Entities[ResolvedReferenceKey] = entity
	} else {
		res.NeedsClarification = true
	}

	return res, nil
}

// Clarify builds a clarification prompt for the given reference type,
// listing up to three recent candidates. Zero candidates still yields
// the question with an empty options list; the caller decides whether
// that is worth presenting.
func (o *Orchestrator) Clarify(ctx context.Context, refType domain.RefType) (*Clarification, error) {
	question, ok := clarificationQuestions[refType]
	if !ok {
		question = generalClarificationQuestion
	}

	clar := &Clarification{
		Question: question,
		Options:  []string{},
		RefType:  refType,
	}

	if refType == "" {
		return clar, nil
	}

	refs, err := o.repo.RecentReferences(ctx, refType, 3)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		clar.Options = append(clar.Options, ref.RefName)
	}

	return clar, nil
}
