package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"attentid/internal/certificate"
	"attentid/internal/platform/metrics"
	"attentid/internal/platform/middleware"
	"attentid/internal/transport/http/shared"
	dErrors "attentid/pkg/domain-errors"
)

// Service defines the certificate operations the transport consumes.
type Service interface {
	Issue(ctx context.Context, identityID, placeID string, claimedAt *time.Time, window time.Duration) (certificate.Certificate, error)
	Verify(ctx context.Context, certID string) (certificate.Certificate, error)
	Get(ctx context.Context, certID string) (certificate.Certificate, error)
	ListForIdentity(ctx context.Context, identityID string, skip, limit int) ([]certificate.Certificate, error)
	ListAll(ctx context.Context, skip, limit int) ([]certificate.Certificate, error)
}

// Handler exposes the certificate endpoints.
type Handler struct {
	certs        Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(certs Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{certs: certs, logger: logger, metrics: m, jwtValidator: jwtValidator}
}

// Register mounts the certificate routes; all of them require auth.
func (h *Handler) Register(r chi.Router) {
	certRouter := chi.NewRouter()
	certRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	certRouter.Post("/", h.handleIssue)
	certRouter.Get("/", h.handleListMine)
	certRouter.Get("/all", h.handleListAll)
	certRouter.Get("/{id}", h.handleGet)
	certRouter.Post("/{id}/verify", h.handleVerify)
	r.Mount("/certificates", certRouter)
}

// issueRequest mirrors the original wire shape: raspberry_uuid carries the
// place id, user_id the identity id.
type issueRequest struct {
	UserID            string     `json:"user_id"`
	RaspberryUUID     string     `json:"raspberry_uuid"`
	Timestamp         *time.Time `json:"timestamp"`
	TimeWindowMinutes int        `json:"time_window_minutes"`
}

type certificateResponse struct {
	ID            string    `json:"id"`
	RaspberryUUID string    `json:"raspberry_uuid"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
	Verified      bool      `json:"verified"`
}

func toResponse(cert certificate.Certificate) certificateResponse {
	return certificateResponse{
		ID:            cert.ID,
		RaspberryUUID: cert.PlaceID,
		UserID:        cert.IdentityID,
		Timestamp:     cert.IssuedAt,
		Verified:      cert.Verified,
	}
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	identityID := req.UserID
	if identityID == "" {
		identityID = middleware.GetUserID(ctx)
	}

	cert, err := h.certs.Issue(ctx, identityID, req.RaspberryUUID, req.Timestamp,
		time.Duration(req.TimeWindowMinutes)*time.Minute)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate issuance rejected",
			"request_id", middleware.GetRequestID(ctx),
			"identity_id", identityID,
			"place_id", req.RaspberryUUID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	h.metrics.CertificatesIssued.WithLabelValues("api").Inc()
	shared.WriteJSON(w, http.StatusCreated, toResponse(cert))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID := chi.URLParam(r, "id")

	cert, err := h.certs.Verify(ctx, certID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTamperedCertificate) {
			h.metrics.VerifyTampered.Inc()
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(cert))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cert, err := h.certs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(cert))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	skip, limit := pagination(r)
	certs, err := h.certs.ListForIdentity(ctx, middleware.GetUserID(ctx), skip, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(certs))
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	certs, err := h.certs.ListAll(r.Context(), skip, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponses(certs))
}

func toResponses(certs []certificate.Certificate) []certificateResponse {
	out := make([]certificateResponse, 0, len(certs))
	for _, cert := range certs {
		out = append(out, toResponse(cert))
	}
	return out
}

func pagination(r *http.Request) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if skip < 0 {
		skip = 0
	}
	return skip, limit
}
