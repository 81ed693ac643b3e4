package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/contact-enricher/internal/enrich"
	"github.com/sells-group/contact-enricher/internal/provider"
)

type batchRequest struct {
	ContactIDs []int64 `json:"contact_ids"`
	Strategy   string  `json:"strategy"`
	Force      bool    `json:"force"`
}

type canEnrichResponse struct {
	ContactID int64 `json:"contact_id"`
	CanEnrich bool  `json:"can_enrich"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "provider": s.svc.ProviderName()}
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			resp["status"] = "degraded"
			resp["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	strategy, err := parseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		if force, err = strconv.ParseBool(v); err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid force value %q", v))
			return
		}
	}

	out, err := s.svc.EnrichWith(r.Context(), id, strategy, enrich.EnrichOptions{Force: force})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEnrichBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if len(req.ContactIDs) == 0 {
		writeBadRequest(w, "contact_ids is required")
		return
	}
	if len(req.ContactIDs) > maxBatchSize {
		writeBadRequest(w, fmt.Sprintf("at most %d contact_ids per batch", maxBatchSize))
		return
	}
	strategy, err := parseStrategy(req.Strategy)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sum := s.svc.EnrichBatchWith(r.Context(), req.ContactIDs, strategy, enrich.EnrichOptions{Force: req.Force})
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	rec, err := s.svc.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCanEnrich(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	can, err := s.svc.CanEnrichContact(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, canEnrichResponse{ContactID: id, CanEnrich: can})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseStrategy keeps an omitted strategy empty so the service default applies.
func parseStrategy(s string) (provider.Strategy, error) {
	if s == "" {
		return "", nil
	}
	return provider.ParseStrategy(s)
}

// contactID parses the {id} path parameter, writing a 400 when invalid.
func contactID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, fmt.Sprintf("invalid contact id %q", raw))
		return 0, false
	}
	return id, true
}
