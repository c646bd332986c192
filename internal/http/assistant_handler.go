package http

import (
	"errors"
	"net/http"

	"log/slog"

	"cyberwhale/internal/assistant"
)

// AssistantHandler exposes the tutoring chat endpoint.
type AssistantHandler struct {
	service *assistant.Service
	logger  *slog.Logger
}

// NewAssistantHandler creates a handler.
func NewAssistantHandler(service *assistant.Service, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{service: service, logger: logger}
}

// Chat proxies a conversation to the inference API.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Messages []assistant.Message `json:"messages"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	reply, err := h.service.Chat(r.Context(), payload.Messages)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyPrompt) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("assistant chat", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete chat")
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
