package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/mizan-app/mizan/server/internal/zakat/service"
	"github.com/mizan-app/mizan/server/internal/zakat/store"
	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

type Dependencies struct {
	Logger    *log.Logger
	Addr      string
	Lifecycle *service.LifecycleService
	Tracker   *service.Tracker
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	lifecycle  *service.LifecycleService
	tracker    *service.Tracker
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:    d.Logger,
		mux:       mux,
		lifecycle: d.Lifecycle,
		tracker:   d.Tracker,
	}

	mux.HandleFunc("POST /v1/records", s.handleCreateRecord)
	mux.HandleFunc("GET /v1/records/{id}", s.handleGetRecord)
	mux.HandleFunc("PATCH /v1/records/{id}", s.handleEditRecord)
	mux.HandleFunc("POST /v1/records/{id}/finalize", s.handleFinalize)
	mux.HandleFunc("POST /v1/records/{id}/unlock", s.handleUnlock)
	mux.HandleFunc("GET /v1/records/{id}/tracking", s.handleTracking)
	mux.HandleFunc("GET /v1/records/{id}/audit", s.handleAuditTrail)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type createRecordRequest struct {
	OwnerID          string   `json:"owner_id"`
	SelectedAssetIDs []string `json:"selected_asset_ids"`
	NisabBasis       string   `json:"nisab_basis"`
	Currency         string   `json:"currency"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.lifecycle.Create(r.Context(), service.CreateParams{
		OwnerID:          req.OwnerID,
		SelectedAssetIDs: req.SelectedAssetIDs,
		NisabBasis:       types.NisabBasis(req.NisabBasis),
		Currency:         req.Currency,
	})
	if err != nil {
		s.writeServiceError(w, "create", err)
		return
	}

	// New DRAFT records go straight onto the live tracker; the loop stops
	// itself once the record leaves DRAFT.
	if s.tracker != nil {
		s.tracker.Track(context.WithoutCancel(r.Context()), rec.ID)
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lifecycle.Record(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type editRecordRequest struct {
	ExpectedVersion  int64    `json:"expected_version"`
	ActorID          string   `json:"actor_id"`
	SelectedAssetIDs []string `json:"selected_asset_ids"`
}

func (s *Server) handleEditRecord(w http.ResponseWriter, r *http.Request) {
	var req editRecordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.lifecycle.Edit(r.Context(), r.PathValue("id"), req.ExpectedVersion, req.ActorID, service.EditParams{
		SelectedAssetIDs: req.SelectedAssetIDs,
	})
	if err != nil {
		s.writeServiceError(w, "edit", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type finalizeRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	ActorID         string `json:"actor_id"`
	EarlyOverride   bool   `json:"early_override"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.lifecycle.Finalize(r.Context(), r.PathValue("id"), req.ExpectedVersion, req.ActorID, req.EarlyOverride)
	if err != nil {
		s.writeServiceError(w, "finalize", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type unlockRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	ActorID         string `json:"actor_id"`
	Reason          string `json:"reason"`
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.lifecycle.Unlock(r.Context(), r.PathValue("id"), req.ExpectedVersion, req.ActorID, req.Reason)
	if err != nil {
		s.writeServiceError(w, "unlock", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		state types.HawlTrackingState
		err   error
	)
	if s.tracker != nil {
		state, err = s.tracker.Snapshot(r.Context(), id)
	} else {
		state, err = s.lifecycle.GetLiveTrackingState(r.Context(), id)
	}
	if err != nil {
		s.writeServiceError(w, "tracking", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := s.lifecycle.GetAuditTrail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "audit", err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps the service sentinels onto the API's status codes:
// validation 400, unknown record 404, lost version race 409, transitions the
// state machine forbids 422.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "record_not_found", "no such record")
	case errors.Is(err, store.ErrStaleVersion):
		writeError(w, http.StatusConflict, "stale_version", "record was modified concurrently; re-read and retry")
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		writeError(w, http.StatusUnprocessableEntity, "illegal_transition", err.Error())
	default:
		s.logger.Printf("%s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
