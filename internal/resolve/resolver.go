package resolve

import (
	"context"
	"strings"

	"github.com/nexuslabs/nexus-voice/internal/domain"
	"github.com/nexuslabs/nexus-voice/internal/store"
)

// ordinalWindow is the fixed fetch window for ordinal lookups. Note that
// "last" therefore means the oldest reference within this window, not the
// oldest in full history; tests pin this boundary.
const ordinalWindow = 5

var ordinalIndex = map[string]int{
	"first":  0,
	"second": 1,
	"third":  2,
	"fourth": 3,
	"fifth":  4,
	"last":   -1,
}

// Resolver answers reference lookups against the interaction memory.
// It is stateless and safe for concurrent use.
type Resolver struct {
	repo store.Repository
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo store.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveOrdinal resolves positional references like "the second email".
// A nil entity with nil error means no matching reference exists; callers
// treat that as a normal branch leading to clarification.
func (r *Resolver) ResolveOrdinal(ctx context.Context, ordinal string, refType domain.RefType) (*domain.ResolvedEntity, error) {
	idx, ok := ordinalIndex[strings.ToLower(ordinal)]
	if !ok {
		return nil, nil
	}

	refs, err := r.repo.RecentReferences(ctx, refType, ordinalWindow)
	if err != nil {
		return nil, err
	}

	if idx < 0 {
		idx += len(refs)
	}
	if idx < 0 || idx >= len(refs) {
		return nil, nil
	}

	return refs[idx].Resolved(), nil
}

// ResolveLast resolves a demonstrative reference ("that email") to the
// single most recently accessed reference of the given type.
func (r *Resolver) ResolveLast(ctx context.Context, refType domain.RefType) (*domain.ResolvedEntity, error) {
	refs, err := r.repo.RecentReferences(ctx, refType, 1)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return refs[0].Resolved(), nil
}

// ResolveDemonstrative resolves a bare back-reference by keyword family,
// checking email, then location, then track. A family only wins if a
// reference of that type is actually stored; otherwise the next family
// gets a chance.
func (r *Resolver) ResolveDemonstrative(ctx context.Context, input string) (*domain.ResolvedEntity, error) {
	text := strings.ToLower(input)

	if containsAny(text, "email", "message") {
		entity, err := r.ResolveLast(ctx, domain.RefTypeEmail)
		if err != nil || entity != nil {
			return entity, err
		}
	}

	if containsAny(text, "there", "that place", "location") {
		entity, err := r.ResolveLast(ctx, domain.RefTypeLocation)
		if err != nil || entity != nil {
			return entity, err
		}
	}

	if containsAny(text, "song", "track", "music", "it") {
		entity, err := r.ResolveLast(ctx, domain.RefTypeTrack)
		if err != nil || entity != nil {
			return entity, err
		}
	}

	return nil, nil
}
