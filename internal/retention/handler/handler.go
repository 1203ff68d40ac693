// Package handler exposes retention administration over HTTP: legal holds,
// retention policies, deletion authorization, and the purge endpoint.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/platform/middleware"
	"sigil/internal/retention"
	"sigil/internal/trail"
	"sigil/internal/transport/http/shared"
	sharedjson "sigil/internal/transport/http/shared/json"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// Service defines the retention guard operations the handler needs.
type Service interface {
	ApplyLegalHold(ctx context.Context, envelopeID id.EnvelopeID, actor trail.Actor, reason string) (retention.LegalHold, error)
	ReleaseLegalHold(ctx context.Context, envelopeID id.EnvelopeID, actor trail.Actor) error
	UpdatePolicy(ctx context.Context, envelopeID id.EnvelopeID, period time.Duration, completedAt time.Time, actor trail.Actor) (retention.Policy, error)
	AuthorizeDelete(ctx context.Context, envelopeID id.EnvelopeID, actor trail.Actor) (retention.DeleteAuthorization, error)
	Purge(ctx context.Context, envelopeID id.EnvelopeID, token id.AuthorizationID) (int64, error)
}

// Handler handles retention-related endpoints.
type Handler struct {
	logger *slog.Logger
	guard  Service
}

// New creates a new retention Handler.
func New(guard Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, guard: guard}
}

// Register registers the retention routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Recovery(h.logger))
		g.Use(middleware.RequestID)
		g.Use(middleware.Logger(h.logger))
		g.Use(middleware.Timeout(30 * time.Second))
		g.Use(middleware.ContentTypeJSON)
		g.Post("/envelopes/{envelopeID}/holds", h.handleApplyHold)
		g.Delete("/envelopes/{envelopeID}/holds", h.handleReleaseHold)
		g.Post("/envelopes/{envelopeID}/retention", h.handleUpdatePolicy)
		g.Post("/envelopes/{envelopeID}/retention/authorize-delete", h.handleAuthorizeDelete)
		g.Delete("/envelopes/{envelopeID}", h.handlePurge)
	})
}

type actorRequest struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func (a actorRequest) toActor() trail.Actor {
	return trail.Actor{ID: a.ID, Role: trail.ActorRole(a.Role)}
}

type holdRequest struct {
	Actor  actorRequest `json:"actor"`
	Reason string       `json:"reason"`
}

type holdResponse struct {
	HoldID     id.HoldID     `json:"hold_id"`
	EnvelopeID id.EnvelopeID `json:"envelope_id"`
	Reason     string        `json:"reason"`
	AppliedBy  string        `json:"applied_by"`
	AppliedAt  time.Time     `json:"applied_at"`
	ReleasedAt *time.Time    `json:"released_at,omitempty"`
}

func (h *Handler) handleApplyHold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	hold, err := h.guard.ApplyLegalHold(ctx, envelopeID, req.Actor.toActor(), req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "apply legal hold failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	sharedjson.WriteJSON(w, http.StatusCreated, holdResponse{
		HoldID:     hold.ID,
		EnvelopeID: hold.EnvelopeID,
		Reason:     hold.Reason,
		AppliedBy:  hold.AppliedBy,
		AppliedAt:  hold.AppliedAt,
		ReleasedAt: hold.ReleasedAt,
	})
}

type releaseRequest struct {
	Actor actorRequest `json:"actor"`
}

func (h *Handler) handleReleaseHold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.guard.ReleaseLegalHold(ctx, envelopeID, req.Actor.toActor()); err != nil {
		h.logger.WarnContext(ctx, "release legal hold failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type policyRequest struct {
	Actor       actorRequest `json:"actor"`
	Period      string       `json:"retention_period"`
	CompletedAt time.Time    `json:"completed_at"`
}

type policyResponse struct {
	EnvelopeID         id.EnvelopeID `json:"envelope_id"`
	Period             string        `json:"retention_period"`
	CompletedAt        time.Time     `json:"completed_at"`
	EligibleDeletionAt time.Time     `json:"eligible_deletion_at"`
}

func (h *Handler) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	period, err := time.ParseDuration(req.Period)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid retention_period duration"))
		return
	}

	policy, err := h.guard.UpdatePolicy(ctx, envelopeID, period, req.CompletedAt, req.Actor.toActor())
	if err != nil {
		h.logger.WarnContext(ctx, "update retention policy failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	sharedjson.WriteJSON(w, http.StatusOK, policyResponse{
		EnvelopeID:         policy.EnvelopeID,
		Period:             policy.Period.String(),
		CompletedAt:        policy.CompletedAt,
		EligibleDeletionAt: policy.EligibleDeletionAt(),
	})
}

type authorizeRequest struct {
	Actor actorRequest `json:"actor"`
}

type authorizeResponse struct {
	AuthorizationID id.AuthorizationID `json:"authorization_id"`
	EnvelopeID      id.EnvelopeID      `json:"envelope_id"`
	IssuedAt        time.Time          `json:"issued_at"`
	ExpiresAt       time.Time          `json:"expires_at"`
}

func (h *Handler) handleAuthorizeDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	authz, err := h.guard.AuthorizeDelete(ctx, envelopeID, req.Actor.toActor())
	if err != nil {
		// Denials are recorded decisions, not failures
		h.logger.InfoContext(ctx, "delete authorization refused",
			"request_id", requestID,
			"code", string(dErrors.CodeOf(err)),
		)
		shared.WriteError(w, err)
		return
	}

	sharedjson.WriteJSON(w, http.StatusCreated, authorizeResponse{
		AuthorizationID: authz.ID,
		EnvelopeID:      authz.EnvelopeID,
		IssuedAt:        authz.IssuedAt,
		ExpiresAt:       authz.ExpiresAt,
	})
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	token, err := id.ParseAuthorizationID(r.Header.Get("X-Delete-Authorization"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid delete authorization token"))
		return
	}

	removed, err := h.guard.Purge(ctx, envelopeID, token)
	if err != nil {
		h.logger.WarnContext(ctx, "purge failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "envelope chain purged",
		"request_id", requestID,
		"envelope_id", envelopeID.String(),
		"events_removed", removed,
	)
	sharedjson.WriteJSON(w, http.StatusOK, map[string]any{
		"envelope_id":    envelopeID,
		"events_removed": removed,
	})
}
