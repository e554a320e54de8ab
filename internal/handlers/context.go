package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"quizsmith-backend/internal/services"
)

// maxUploadBytes caps course-context uploads.
const maxUploadBytes = 25 * 1024 * 1024

// ContextHandler turns uploads and YouTube links into course-context text for
// quiz generation.
type ContextHandler struct {
	extract *services.ExtractService
	youtube *services.YouTubeService
}

func NewContextHandler(extract *services.ExtractService, youtube *services.YouTubeService) *ContextHandler {
	return &ContextHandler{extract: extract, youtube: youtube}
}

type extractResponse struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Chars  int    `json:"chars"`
}

// Extract accepts either a multipart upload (field "file") or a JSON body with
// a youtube_url.
func (h *ContextHandler) Extract(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.extractFromUpload(w, r)
		return
	}
	h.extractFromYouTube(w, r)
}

func (h *ContextHandler) extractFromUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Upload too large or malformed", r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Missing file field", r))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read uploaded file", r))
		return
	}

	text, err := h.extract.ExtractText(data, header.Filename)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	source := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	writeJSON(w, http.StatusOK, extractResponse{Source: source, Text: text, Chars: len(text)})
}

func (h *ContextHandler) extractFromYouTube(w http.ResponseWriter, r *http.Request) {
	var req struct {
		YouTubeURL string `json:"youtube_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.YouTubeURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Provide a file upload or a youtube_url", r))
		return
	}

	videoID, err := services.ParseVideoID(req.YouTubeURL)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	text, err := h.youtube.ContextFromVideo(r.Context(), videoID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{Source: "youtube", Text: text, Chars: len(text)})
}
