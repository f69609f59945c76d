// Package executor runs classified commands end to end: entity
// resolution, service dispatch, reference bookkeeping and the
// interaction append.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexuslabs/nexus-voice/internal/cmdlog"
	"github.com/nexuslabs/nexus-voice/internal/domain"
	"github.com/nexuslabs/nexus-voice/internal/intent"
	"github.com/nexuslabs/nexus-voice/internal/resolve"
	"github.com/nexuslabs/nexus-voice/internal/services"
	"github.com/nexuslabs/nexus-voice/internal/store"
	"github.com/nexuslabs/nexus-voice/internal/workflow"
)

// Result outcome types, mirrored in the HTTP response.
const (
	TypeAPIResponse   = "api_response"
	TypeUIHandoff     = "ui_handoff"
	TypeClarification = "clarification"
	TypeError         = "error"
)

// Distance queries always start from the device position; the maps UI
// resolves it client-side.
const currentLocation = "Current Location"

// Result is the outcome of one processed command.
type Result struct {
	Type          string            `json:"type"`
	VoiceResponse string            `json:"voice_response"`
	Question      string            `json:"question,omitempty"`
	Options       []string          `json:"options,omitempty"`
	Action        string            `json:"action,omitempty"`
	URL           string            `json:"url,omitempty"`
	Data          map[string]any    `json:"data,omitempty"`
	Intent        intent.Intent     `json:"intent"`
	ActionType    intent.ActionType `json:"action_type"`
}

// Pipeline wires the resolution core to the outbound integrations.
// Maps may be nil when no API key is configured; distance queries then
// fail gracefully.
type Pipeline struct {
	repo         store.Repository
	orchestrator *resolve.Orchestrator
	workflows    *workflow.Trigger
	maps         *services.MapsClient
	cmdlog       cmdlog.Logger
	log          *slog.Logger
}

// NewPipeline assembles the command pipeline.
func NewPipeline(repo store.Repository, workflows *workflow.Trigger, maps *services.MapsClient, commandLog cmdlog.Logger, log *slog.Logger) *Pipeline {
	if commandLog == nil {
		commandLog = noopCommandLog{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		repo:         repo,
		orchestrator: resolve.NewOrchestrator(repo),
		workflows:    workflows,
		maps:         maps,
		cmdlog:       commandLog,
		log:          log,
	}
}

type noopCommandLog struct{}

func (noopCommandLog) Log(cmdlog.Event) {}
func (noopCommandLog) Close() error     { return nil }

// Process runs one command through classification, resolution and
// execution. Only storage faults return an error; everything else is a
// structured Result, including failures of downstream services.
func (p *Pipeline) Process(ctx context.Context, userID, channel, input string) (*Result, error) {
	commandID := uuid.NewString()
	text := strings.TrimSpace(input)

	detected, actionType := intent.Classify(text)
	params := intent.ExtractParams(detected, text)

	p.log.Info("processing command",
		"command_id", commandID,
		"intent", detected,
		"action", actionType)

	resolution, err := p.orchestrator.ResolveEntities(ctx, text, string(detected), params)
	if err != nil {
		return nil, fmt.Errorf("resolve entities: %w", err)
	}

	var result *Result
	if resolution.NeedsClarification {
		// A failed reference lookup asks before acting and records
		// nothing: the turn is not complete until the user answers.
		clar, err := p.orchestrator.Clarify(ctx, resolution.RefType)
		if err != nil {
			return nil, fmt.Errorf("build clarification: %w", err)
		}
		result = &Result{
			Type:          TypeClarification,
			Question:      clar.Question,
			Options:       clar.Options,
			VoiceResponse: clar.Question,
			Intent:        detected,
			ActionType:    actionType,
		}
	} else {
		result = p.execute(ctx, detected, actionType, resolution)
		result.Intent = detected
		result.ActionType = actionType

		rec := &domain.Interaction{
			Timestamp:     time.Now().UTC(),
			UserInput:     text,
			Intent:        string(detected),
			Entities:      resolution.Entities,
			ActionTaken:   string(actionType),
			ResultSummary: result.VoiceResponse,
		}
		if err := p.repo.AppendInteraction(ctx, rec); err != nil {
			return nil, fmt.Errorf("append interaction: %w", err)
		}
	}

	p.cmdlog.Log(cmdlog.Event{
		CommandID: commandID,
		UserID:    userID,
		Channel:   channel,
		Input:     text,
		Intent:    string(detected),
		Action:    string(actionType),
		Outcome:   result.Type,
		Response:  result.VoiceResponse,
	})

	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, detected intent.Intent, actionType intent.ActionType, resolution *resolve.Resolution) *Result {
	switch actionType {
	case intent.ActionUIHandoff:
		return p.executeUIHandoff(ctx, detected, resolution)
	case intent.ActionAPI:
		return p.executeAPI(ctx, detected, resolution)
	default:
		return &Result{
			Type:          TypeError,
			VoiceResponse: "I'm not sure how to handle that request.",
		}
	}
}

func (p *Pipeline) executeUIHandoff(ctx context.Context, detected intent.Intent, resolution *resolve.Resolution) *Result {
	switch detected {
	case intent.GmailOpenUI, intent.GmailSummarize, intent.GmailReply:
		return &Result{
			Type:          TypeUIHandoff,
			Action:        "open_url",
			URL:           services.GmailURL(),
			VoiceResponse: "Opening Gmail for you now.",
		}

	case intent.MapsDirections, intent.MapsOpenUI, intent.MapsDistance:
		destination := p.destinationFor(ctx, resolution)
		if destination == "" {
			question := "Where would you like directions to?"
			return &Result{
				Type:          TypeClarification,
				Question:      question,
				Options:       []string{},
				VoiceResponse: question,
			}
		}

		p.storeReference(ctx, domain.RefTypeLocation, destination, destination, nil)

		return &Result{
			Type:          TypeUIHandoff,
			Action:        "open_url",
			URL:           services.DirectionsURL(currentLocation, destination),
			VoiceResponse: fmt.Sprintf("Opening directions to %s.", destination),
		}

	case intent.SpotifyOpenUI, intent.SpotifyPlay, intent.SpotifyPause:
		return &Result{
			Type:          TypeUIHandoff,
			Action:        "open_url",
			URL:           services.SpotifyURL(),
			VoiceResponse: "Opening Spotify for you.",
		}
	}

	return &Result{
		Type:          TypeError,
		VoiceResponse: "I couldn't open that for you.",
	}
}

func (p *Pipeline) executeAPI(ctx context.Context, detected intent.Intent, resolution *resolve.Resolution) *Result {
	switch detected {
	case intent.GmailSummarize:
		return p.gmailSummarize(ctx)
	case intent.GmailReply:
		return p.gmailReply(ctx, resolution)
	case intent.MapsDistance:
		return p.mapsDistance(ctx, resolution)
	case intent.SpotifyPlay:
		return p.spotifyPlay(ctx, resolution)
	case intent.SpotifyPause:
		return p.spotifyPause(ctx)
	}

	return &Result{
		Type:          TypeError,
		VoiceResponse: "I couldn't complete that action.",
	}
}

func (p *Pipeline) gmailSummarize(ctx context.Context) *Result {
	data, err := p.workflows.GmailSummarize(ctx, 10)
	if err != nil {
		p.log.Error("gmail summarize workflow failed", "error", err)
		return &Result{
			Type:          TypeError,
			VoiceResponse: "I couldn't reach your email right now.",
		}
	}

	// Remember the surfaced emails so "the second one" works next turn.
	if emails, ok := data["emails"].([]any); ok {
		for i, e := range emails {
			if i >= 5 {
				break
			}
			email, ok := e.(map[string]any)
			if !ok {
				continue
			}
			id, _ := email["id"].(string)
			subject, _ := email["subject"].(string)
			from, _ := email["from"].(string)
			if id == "" {
				continue
			}
			name := fmt.Sprintf("%s from %s", subject, senderName(from))
			p.storeReference(ctx, domain.RefTypeEmail, id, name, map[string]any{
				"from":    from,
				"subject": subject,
			})
		}
	}

	voice, _ := data["text_summary"].(string)
	if voice == "" {
		voice = "You have no new emails."
	}
	return &Result{
		Type:          TypeAPIResponse,
		Data:          data,
		VoiceResponse: voice,
	}
}

func (p *Pipeline) gmailReply(ctx context.Context, resolution *resolve.Resolution) *Result {
	ref := resolution.ResolvedReference
	if ref == nil {
		question := "Which email would you like to reply to?"
		return &Result{
			Type:          TypeClarification,
			Question:      question,
			Options:       []string{},
			VoiceResponse: question,
		}
	}

	replyContent, _ := resolution.Entities["reply_content"].(string)
	if replyContent == "" {
		question := "What would you like to say in your reply?"
		return &Result{
			Type:          TypeClarification,
			Question:      question,
			Options:       []string{},
			VoiceResponse: "What would you like to say?",
		}
	}

	data, err := p.workflows.GmailReply(ctx, ref.ID, replyContent)
	if err != nil {
		p.log.Error("gmail reply workflow failed", "error", err)
		return &Result{
			Type:          TypeError,
			VoiceResponse: "I couldn't send that reply.",
		}
	}

	return &Result{
		Type:          TypeAPIResponse,
		Data:          data,
		VoiceResponse: "Reply sent successfully.",
	}
}

func (p *Pipeline) mapsDistance(ctx context.Context, resolution *resolve.Resolution) *Result {
	destination, _ := resolution.Entities["destination"].(string)
	if destination == "" {
		question := "Where would you like to go?"
		return &Result{
			Type:          TypeClarification,
			Question:      question,
			Options:       []string{},
			VoiceResponse: question,
		}
	}

	if p.maps == nil {
		return &Result{
			Type:          TypeError,
			VoiceResponse: "Maps is not configured.",
		}
	}

	results, err := p.maps.Distance(ctx, currentLocation, destination)
	if err != nil {
		p.log.Error("distance lookup failed", "destination", destination, "error", err)
		return &Result{
			Type:          TypeError,
			VoiceResponse: "I couldn't calculate that distance right now.",
		}
	}

	p.storeReference(ctx, domain.RefTypeLocation, destination, destination, nil)

	data := make(map[string]any, len(results))
	for mode, r := range results {
		data[mode] = r
	}
	return &Result{
		Type:          TypeAPIResponse,
		Data:          data,
		VoiceResponse: services.FormatDistanceSummary(results, destination),
	}
}

func (p *Pipeline) spotifyPlay(ctx context.Context, resolution *resolve.Resolution) *Result {
	query, _ := resolution.Entities["query"].(string)
	if query == "" {
		query = "chill music"
	}

	data, err := p.workflows.SpotifyControl(ctx, "play", query)
	if err != nil {
		p.log.Error("spotify play workflow failed", "error", err)
		return &Result{
			Type:          TypeError,
			VoiceResponse: "I couldn't start playback.",
		}
	}

	voice := "Playing now."
	if track, ok := data["track"].(map[string]any); ok {
		uri, _ := track["uri"].(string)
		name, _ := track["name"].(string)
		artist, _ := track["artist"].(string)
		if uri != "" && name != "" {
			p.storeReference(ctx, domain.RefTypeTrack, uri, name, map[string]any{
				"artist": artist,
			})
		}
		if name != "" && artist != "" {
			voice = fmt.Sprintf("Now playing %s by %s", name, artist)
		}
	}

	return &Result{
		Type:          TypeAPIResponse,
		Data:          data,
		VoiceResponse: voice,
	}
}

func (p *Pipeline) spotifyPause(ctx context.Context) *Result {
	data, err := p.workflows.SpotifyControl(ctx, "pause", "")
	if err != nil {
		p.log.Error("spotify pause workflow failed", "error", err)
		return &Result{
			Type:          TypeError,
			VoiceResponse: "I couldn't pause playback.",
		}
	}

	return &Result{
		Type:          TypeAPIResponse,
		Data:          data,
		VoiceResponse: "Paused.",
	}
}

// destinationFor prefers the extracted parameter, then a resolved
// location reference, then the most recently surfaced location.
func (p *Pipeline) destinationFor(ctx context.Context, resolution *resolve.Resolution) string {
	if destination, _ := resolution.Entities["destination"].(string); destination != "" {
		return destination
	}
	if ref := resolution.ResolvedReference; ref != nil && ref.Type == domain.RefTypeLocation {
		return ref.Name
	}

	refs, err := p.repo.RecentReferences(ctx, domain.RefTypeLocation, 1)
	if err != nil {
		p.log.Error("location fallback lookup failed", "error", err)
		return ""
	}
	if len(refs) == 0 {
		return ""
	}
	return refs[0].RefName
}

// storeReference best-effort: a bookkeeping failure must not turn a
// successful action into an error.
func (p *Pipeline) storeReference(ctx context.Context, refType domain.RefType, refID, refName string, metadata map[string]any) {
	if err := p.repo.UpsertReference(ctx, refType, refID, refName, metadata); err != nil {
		p.log.Error("failed to store reference",
			"ref_type", refType, "ref_id", refID, "error", err)
	}
}

// senderName strips the address part of "Display Name <addr>".
func senderName(from string) string {
	if i := strings.Index(from, "<"); i >= 0 {
		from = from[:i]
	}
	return strings.TrimSpace(from)
}
