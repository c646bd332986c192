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

	"cyberwhale/internal/challenges"
	"cyberwhale/internal/exporter"
	"cyberwhale/internal/importer"
)

// ChallengeHandler exposes the CTF challenge endpoints.
type ChallengeHandler struct {
	service  *challenges.Service
	importer *importer.CSVImporter
	exporter *exporter.CSVExporter
	logger   *slog.Logger
}

// NewChallengeHandler creates a handler.
func NewChallengeHandler(service *challenges.Service, csvImporter *importer.CSVImporter, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		service:  service,
		importer: csvImporter,
		exporter: exporter.NewCSVExporter(),
		logger:   logger,
	}
}

// List returns challenges matching optional filters.
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseChallengeListOptions(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.List(r.Context(), opts)
	if err != nil {
		if errors.Is(err, challenges.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("list challenges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list challenges")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": list})
}

func parseChallengeListOptions(values url.Values) (challenges.ListOptions, error) {
	opts := challenges.ListOptions{}
	const maxListLimit = 100
	const maxSearchQueryLength = 500

	if raw := strings.TrimSpace(values.Get("category")); raw != "" {
		category := challenges.Category(raw)
		if !challenges.ValidCategory(category) {
			return challenges.ListOptions{}, fmt.Errorf("invalid category filter")
		}
		opts.Category = &category
	}

	if raw := strings.TrimSpace(values.Get("difficulty")); raw != "" {
		difficulty := challenges.Difficulty(raw)
		if !challenges.ValidDifficulty(difficulty) {
			return challenges.ListOptions{}, fmt.Errorf("invalid difficulty filter")
		}
		opts.Difficulty = &difficulty
	}

	if raw := strings.TrimSpace(values.Get("query")); raw != "" {
		if len(raw) > maxSearchQueryLength {
			return challenges.ListOptions{}, fmt.Errorf("query too long (max %d characters)", maxSearchQueryLength)
		}
		query := raw
		opts.Query = &query
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 || value > maxListLimit {
			return challenges.ListOptions{}, fmt.Errorf("invalid limit filter")
		}
		opts.Limit = &value
	}

	return opts, nil
}

// Get returns one challenge by id. For an authenticated caller the response
// carries whether they already solved it.
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid challenge id")
		return
	}

	challenge, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, challenges.ErrNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		h.logger.Error("get challenge", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to get challenge")
		return
	}

	resp := map[string]any{"challenge": challenge}
	if user := UserFromContext(r.Context()); user != nil {
		solved, err := h.service.HasSolved(r.Context(), id, user.ID)
		if err != nil {
			h.logger.Error("check solve state", "error", err, "id", id)
		} else {
			resp["solved"] = solved
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create publishes a new challenge. Restricted to admins.
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Difficulty  string   `json:"difficulty"`
		Points      int      `json:"points"`
		Tags        []string `json:"tags"`
		Flag        string   `json:"flag"`
		TimeLimit   *int     `json:"timeLimit"`
		DownloadURL string   `json:"downloadUrl"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	created, err := h.service.Create(r.Context(), challenges.CreateInput{
		Title:       payload.Title,
		Description: payload.Description,
		Category:    challenges.Category(payload.Category),
		Difficulty:  challenges.Difficulty(payload.Difficulty),
		Points:      payload.Points,
		Tags:        payload.Tags,
		Flag:        payload.Flag,
		TimeLimit:   payload.TimeLimit,
		DownloadURL: payload.DownloadURL,
	})
	if err != nil {
		if errors.Is(err, challenges.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create challenge")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"challenge": created})
}

// SubmitFlag checks a flag for the authenticated user and awards points on
// the first correct capture.
func (h *ChallengeHandler) SubmitFlag(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		unauthorized(w)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid challenge id")
		return
	}

	var payload struct {
		Flag string `json:"flag"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Flag) == "" {
		writeError(w, http.StatusBadRequest, "flag is required")
		return
	}

	result, err := h.service.SubmitFlag(r.Context(), id, user.ID, payload.Flag)
	if err != nil {
		if errors.Is(err, challenges.ErrNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		h.logger.Error("submit flag", "error", err, "id", id, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "failed to submit flag")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

const maxCSVUploadBytes int64 = 5 << 20

// ImportCSV bulk-creates challenges from an uploaded CSV file. Restricted to
// admins.
func (h *ChallengeHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		unauthorized(w)
		return
	}
	if user.Role != "admin" {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}
	if h.importer == nil {
		writeError(w, http.StatusNotImplemented, "CSV import is not available")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCSVUploadBytes)
	if err := r.ParseMultipartForm(maxCSVUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("CSV upload is too large (max %d bytes)", maxErr.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid CSV upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "CSV file is required")
		return
	}
	defer func() { _ = file.Close() }()

	summary, err := h.importer.Import(r.Context(), file)
	if err != nil {
		if errors.Is(err, importer.ErrInvalidCSV) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("csv import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "bulk import failed")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ExportCSV streams the challenge catalog as CSV. Flags never leave the
// database; the export is for reporting and backup. Restricted to admins.
func (h *ChallengeHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		unauthorized(w)
		return
	}
	if user.Role != "admin" {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	opts, err := parseChallengeListOptions(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("export challenges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export challenges")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="challenges-export.csv"`)
	if err := h.exporter.Export(w, list); err != nil {
		h.logger.Error("write challenge export", "error", err)
	}
}
