package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type clearCacheResponse struct {
	Success   bool   `json:"success"`
	L1Dropped int    `json:"l1_dropped"`
	L2Dropped int64  `json:"l2_dropped"`
	Message   string `json:"message"`
}

// ClearCache handles POST /admin/cache/clear requests.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	l1Dropped, l2Dropped, err := h.cache.Clear(r.Context())
	if err != nil {
		h.errorHandler.WriteInternalError(w, "cache clear failed: "+err.Error(), requestID)
		return
	}

	h.logger.Info("cache cleared",
		zap.Int("l1_dropped", l1Dropped),
		zap.Int64("l2_dropped", l2Dropped),
		zap.String("request_id", requestID))

	h.writeJSONResponse(w, http.StatusOK, clearCacheResponse{
		Success:   true,
		L1Dropped: l1Dropped,
		L2Dropped: l2Dropped,
		Message:   "cache cleared",
	})
}

type resetRateLimitResponse struct {
	Success  bool   `json:"success"`
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// ResetRateLimit handles DELETE /admin/rate-limit/{client_id} requests.
func (h *Handlers) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	clientID := mux.Vars(r)["client_id"]

	if h.limiter == nil {
		h.errorHandler.WriteServiceUnavailable(w, "rate limiting disabled", requestID)
		return
	}

	if err := h.limiter.ResetClient(r.Context(), clientID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.Info("rate limit reset",
		zap.String("client_id", clientID),
		zap.String("request_id", requestID))

	h.writeJSONResponse(w, http.StatusOK, resetRateLimitResponse{
		Success:  true,
		ClientID: clientID,
		Message:  "rate limit reset",
	})
}
