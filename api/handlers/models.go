package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// ModelsHandler serves GET /v1/models by passing the upstream listing
// through unchanged.
type ModelsHandler struct {
	upstream Upstream
	logger   *zap.Logger
}

func NewModelsHandler(upstream Upstream, logger *zap.Logger) *ModelsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelsHandler{
		upstream: upstream,
		logger:   logger.With(zap.String("component", "models_handler")),
	}
}

func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	models, err := h.upstream.ListModels(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, models)
}
