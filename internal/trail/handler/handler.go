// Package handler exposes the audit trail over HTTP: collaborator appends,
// filtered reads, lossless export, and chain verification.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service,ChainVerifier

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/platform/metrics"
	"sigil/internal/platform/middleware"
	"sigil/internal/trail"
	"sigil/internal/transport/http/shared"
	sharedjson "sigil/internal/transport/http/shared/json"
	"sigil/internal/verifier"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// Service defines the ledger operations the handler needs.
type Service interface {
	Append(ctx context.Context, envelopeID id.EnvelopeID, eventType trail.EventType, actor trail.Actor, metadata trail.Metadata) (trail.Event, error)
	List(ctx context.Context, envelopeID id.EnvelopeID, filter trail.Filter) ([]trail.Event, error)
}

// ChainVerifier defines the verification operation the handler needs.
type ChainVerifier interface {
	Verify(ctx context.Context, envelopeID id.EnvelopeID) (verifier.Result, error)
}

// Handler handles trail-related endpoints.
type Handler struct {
	logger   *slog.Logger
	ledger   Service
	verifier ChainVerifier
	metrics  *metrics.Metrics
}

// New creates a new trail Handler.
func New(ledger Service, chainVerifier ChainVerifier, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		ledger:   ledger,
		verifier: chainVerifier,
		metrics:  m,
	}
}

// Register registers the trail routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Recovery(h.logger))
		g.Use(middleware.RequestID)
		g.Use(middleware.Logger(h.logger))
		g.Use(middleware.Timeout(30 * time.Second))
		g.Use(middleware.ContentTypeJSON)
		g.Post("/envelopes/{envelopeID}/events", h.handleAppend)
		g.Get("/envelopes/{envelopeID}/events", h.handleList)
		g.Get("/envelopes/{envelopeID}/events/export", h.handleExport)
		g.Get("/envelopes/{envelopeID}/verify", h.handleVerify)
	})
}

type actorRequest struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type appendRequest struct {
	EventType string            `json:"event_type"`
	Actor     actorRequest      `json:"actor"`
	Metadata  map[string]string `json:"metadata"`
}

type eventResponse struct {
	EventID      id.EventID         `json:"event_id"`
	EnvelopeID   id.EnvelopeID      `json:"envelope_id"`
	Sequence     int64              `json:"sequence_number"`
	Type         trail.EventType    `json:"event_type"`
	ActorID      string             `json:"actor_id"`
	ActorRole    trail.ActorRole    `json:"actor_role"`
	Timestamp    time.Time          `json:"timestamp"`
	MetadataKind trail.MetadataKind `json:"metadata_kind"`
	Metadata     map[string]string  `json:"metadata"`
	PreviousHash string             `json:"previous_event_hash"`
	Hash         string             `json:"event_hash"`
	HashVersion  string             `json:"hash_version"`
}

func toEventResponse(ev trail.Event) eventResponse {
	return eventResponse{
		EventID:      ev.ID,
		EnvelopeID:   ev.EnvelopeID,
		Sequence:     ev.Sequence,
		Type:         ev.Type,
		ActorID:      ev.Actor.ID,
		ActorRole:    ev.Actor.Role,
		Timestamp:    ev.Timestamp,
		MetadataKind: ev.Metadata.Kind(),
		Metadata:     ev.Metadata.CanonicalMap(),
		PreviousHash: ev.PreviousHash,
		Hash:         ev.Hash,
		HashVersion:  ev.HashVersion,
	}
}

// handleAppend records one audit event reported by the collaborator layer.
func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid append request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	eventType := trail.EventType(req.EventType)
	metadata, err := metadataFromRequest(eventType, req.Metadata, r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	actor := trail.Actor{ID: req.Actor.ID, Role: trail.ActorRole(req.Actor.Role)}
	ev, err := h.ledger.Append(ctx, envelopeID, eventType, actor, metadata)
	if err != nil {
		h.logEventError(ctx, "append event failed", requestID, err)
		shared.WriteError(w, err)
		return
	}

	sharedjson.WriteJSON(w, http.StatusCreated, toEventResponse(ev))
}

// metadataFromRequest builds the typed metadata for the event from the flat
// request map. When access-style metadata omits user_agent, the summary is
// derived from the request's own User-Agent header.
func metadataFromRequest(eventType trail.EventType, fields map[string]string, r *http.Request) (trail.Metadata, error) {
	kind, ok := trail.KindFor(eventType)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unrecognized event type: "+string(eventType))
	}
	if fields == nil {
		fields = map[string]string{}
	}
	switch kind {
	case trail.KindAccess, trail.KindView, trail.KindSignature, trail.KindConsent, trail.KindDecline:
		if _, set := fields["user_agent"]; !set {
			if summary := trail.SummarizeUserAgent(r.UserAgent()); summary != "" {
				fields["user_agent"] = summary
			}
		}
	}
	return trail.MetadataFromStored(kind, fields)
}

// handleList returns the envelope's events, optionally filtered.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	events, err := h.ledger.List(ctx, envelopeID, filter)
	if err != nil {
		h.logEventError(ctx, "list events failed", middleware.GetRequestID(ctx), err)
		shared.WriteError(w, err)
		return
	}

	responses := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		responses = append(responses, toEventResponse(ev))
	}
	sharedjson.WriteJSON(w, http.StatusOK, map[string]any{
		"envelope_id": envelopeID,
		"events":      responses,
	})
}

func filterFromQuery(r *http.Request) (trail.Filter, error) {
	var filter trail.Filter

	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t := trail.EventType(strings.TrimSpace(part))
			if !t.Known() {
				return trail.Filter{}, dErrors.New(dErrors.CodeBadRequest, "unrecognized event type in filter: "+string(t))
			}
			filter.Types = append(filter.Types, t)
		}
	}
	filter.ActorID = r.URL.Query().Get("actor_id")

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return trail.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid from timestamp")
		}
		filter.From = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return trail.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid to timestamp")
		}
		filter.To = to
	}
	return filter, nil
}

// handleExport streams the full chain as JSON or CSV. Export is lossless:
// every hash and metadata field appears, so an exported chain can be
// re-verified offline.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	events, err := h.ledger.List(ctx, envelopeID, trail.Filter{})
	if err != nil {
		h.logEventError(ctx, "export events failed", middleware.GetRequestID(ctx), err)
		shared.WriteError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		responses := make([]eventResponse, 0, len(events))
		for _, ev := range events {
			responses = append(responses, toEventResponse(ev))
		}
		w.Header().Set("Content-Disposition", `attachment; filename="audit-trail-`+envelopeID.String()+`.json"`)
		sharedjson.WriteJSON(w, http.StatusOK, map[string]any{
			"envelope_id": envelopeID,
			"events":      responses,
		})
	case "csv":
		h.exportCSV(w, envelopeID, events)
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unsupported export format: "+format))
	}
}

func (h *Handler) exportCSV(w http.ResponseWriter, envelopeID id.EnvelopeID, events []trail.Event) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail-`+envelopeID.String()+`.csv"`)
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	// envelope_id repeats on every row so a detached CSV still carries the
	// full event, not just what the filename implies.
	header := []string{
		"envelope_id", "sequence_number", "event_id", "event_type", "actor_id", "actor_role",
		"timestamp", "metadata_kind", "metadata", "previous_event_hash", "event_hash", "hash_version",
	}
	if err := writer.Write(header); err != nil {
		return
	}
	for _, ev := range events {
		metadataJSON, err := json.Marshal(ev.Metadata.CanonicalMap())
		if err != nil {
			return
		}
		record := []string{
			ev.EnvelopeID.String(),
			strconv.FormatInt(ev.Sequence, 10),
			ev.ID.String(),
			string(ev.Type),
			ev.Actor.ID,
			string(ev.Actor.Role),
			ev.Timestamp.UTC().Format(time.RFC3339Nano),
			string(ev.Metadata.Kind()),
			string(metadataJSON),
			ev.PreviousHash,
			ev.Hash,
			ev.HashVersion,
		}
		if err := writer.Write(record); err != nil {
			return
		}
	}
	writer.Flush()
}

// handleVerify runs a full chain verification and reports the result. A
// tampered chain is a 200 with valid=false: the verification itself
// succeeded, the chain did not.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	result, err := h.verifier.Verify(ctx, envelopeID)
	if err != nil {
		h.logEventError(ctx, "verify chain failed", middleware.GetRequestID(ctx), err)
		shared.WriteError(w, err)
		return
	}

	sharedjson.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) logEventError(ctx context.Context, msg string, requestID string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err.Error())
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "code", string(code), "error", err.Error())
}
