// Package handler exposes completion certificate generation over HTTP.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/certificate"
	"sigil/internal/platform/middleware"
	"sigil/internal/trail"
	"sigil/internal/transport/http/shared"
	sharedjson "sigil/internal/transport/http/shared/json"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// Service defines the assembly operation the handler needs.
type Service interface {
	Generate(ctx context.Context, envelopeID id.EnvelopeID, actor trail.Actor) (certificate.CompletionCertificate, error)
}

// Handler handles certificate endpoints.
type Handler struct {
	logger    *slog.Logger
	assembler Service
}

// New creates a new certificate Handler.
func New(assembler Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, assembler: assembler}
}

// Register registers the certificate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Recovery(h.logger))
		g.Use(middleware.RequestID)
		g.Use(middleware.Logger(h.logger))
		g.Use(middleware.Timeout(30 * time.Second))
		g.Use(middleware.ContentTypeJSON)
		g.Post("/envelopes/{envelopeID}/certificate", h.handleGenerate)
	})
}

type generateRequest struct {
	Actor struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"actor"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "envelopeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope ID"))
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	actor := trail.Actor{ID: req.Actor.ID, Role: trail.ActorRole(req.Actor.Role)}
	cert, err := h.assembler.Generate(ctx, envelopeID, actor)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate generation failed",
			"request_id", requestID,
			"code", string(dErrors.CodeOf(err)),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	sharedjson.WriteJSON(w, http.StatusCreated, cert)
}
