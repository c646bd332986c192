package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cyberwhale/internal/knowledge"
)

// KnowledgeHandler exposes the knowledge base endpoints.
type KnowledgeHandler struct {
	service *knowledge.Service
	logger  *slog.Logger
}

// NewKnowledgeHandler creates a handler.
func NewKnowledgeHandler(service *knowledge.Service, logger *slog.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{service: service, logger: logger}
}

// List returns articles matching optional filters.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseArticleListOptions(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("list articles", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": list})
}

func parseArticleListOptions(values url.Values) (knowledge.ListOptions, error) {
	opts := knowledge.ListOptions{}
	const maxListLimit = 100
	const maxSearchQueryLength = 500

	if raw := strings.TrimSpace(values.Get("category")); raw != "" {
		category := raw
		opts.Category = &category
	}

	if raw := strings.TrimSpace(values.Get("query")); raw != "" {
		if len(raw) > maxSearchQueryLength {
			return knowledge.ListOptions{}, fmt.Errorf("query too long (max %d characters)", maxSearchQueryLength)
		}
		query := raw
		opts.Query = &query
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 || value > maxListLimit {
			return knowledge.ListOptions{}, fmt.Errorf("invalid limit filter")
		}
		opts.Limit = &value
	}

	return opts, nil
}

// Get returns a single article.
func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid article id")
		return
	}

	article, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		h.logger.Error("get article", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to get article")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"article": article})
}

// Create publishes a new article. Restricted to admins.
func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		unauthorized(w)
		return
	}
	if user.Role != "admin" {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	var payload struct {
		Title    string   `json:"title"`
		Summary  string   `json:"summary"`
		Body     string   `json:"body"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	created, err := h.service.Create(r.Context(), knowledge.CreateInput{
		Title:    payload.Title,
		Summary:  payload.Summary,
		Body:     payload.Body,
		Category: payload.Category,
		Tags:     payload.Tags,
		Author:   user.Username,
	})
	if err != nil {
		if errors.Is(err, knowledge.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create article", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create article")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"article": created})
}
