package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/contact-enricher/internal/enrich"
	"github.com/sells-group/contact-enricher/internal/provider"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps an enrichment error kind onto an HTTP status code.
func statusFor(kind enrich.ErrorKind) int {
	switch kind {
	case enrich.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case enrich.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case enrich.KindContactNotFound:
		return http.StatusNotFound
	case enrich.KindRateLimited:
		return http.StatusTooManyRequests
	case enrich.KindNetwork, enrich.KindAPI:
		return http.StatusBadGateway
	case enrich.KindInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := enrich.Kind(err)
	code := statusFor(kind)

	var pe *provider.Error
	if kind == enrich.KindRateLimited && errors.As(err, &pe) && pe.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(pe.RetryAfter.Seconds()))))
	}

	msg := err.Error()
	if code == http.StatusInternalServerError {
		zap.L().Error("api: internal error", zap.Error(err))
		if kind == enrich.KindUnknown {
			msg = "internal server error"
		}
	}
	writeJSON(w, code, errorResponse{Error: msg, Kind: string(kind)})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: "bad_request"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}
