package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/bootstrap"
	"github.com/aousabdo/meetingsage/internal/config"
	"github.com/aousabdo/meetingsage/internal/domain"
	"github.com/aousabdo/meetingsage/internal/ports"
	"github.com/aousabdo/meetingsage/internal/usecase"
)

// maxUploadBytes caps multipart upload memory and body size.
const maxUploadBytes = 64 << 20

// defaultUserID is used when a request carries no user. The personal
// deployment runs single-user.
const defaultUserID = "default_user"

var allowedUploadExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".webm": true,
}

// App is the HTTP application root.
type App struct {
	recorder  *usecase.Recorder
	processor *usecase.Processor
	store     ports.MeetingStore
	audio     ports.AudioSink
	cfg       config.Config
	log       zerolog.Logger
}

func NewApp(services bootstrap.Services, log zerolog.Logger) *App {
	return &App{
		recorder:  services.Recorder,
		processor: services.Processor,
		store:     services.Store,
		audio:     services.Audio,
		cfg:       services.Config,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// Routes builds the request mux.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload_audio", a.handleUploadAudio)
	mux.HandleFunc("POST /api/meetings/process", a.handleProcessRecording)
	mux.HandleFunc("GET /api/meetings", a.handleListMeetings)
	mux.HandleFunc("GET /api/meetings/{id}", a.handleGetMeeting)
	mux.HandleFunc("PATCH /api/meetings/{id}", a.handleUpdateMeeting)
	mux.HandleFunc("DELETE /api/meetings/{id}", a.handleDeleteMeeting)
	mux.HandleFunc("POST /api/meetings/{id}/actions", a.handleAddActionItem)
	mux.HandleFunc("GET /api/record/status", a.handleRecordStatus)
	mux.HandleFunc("GET /ws/audio", a.handleRecordStream)

	return mux
}

type uploadResponse struct {
	FilePath  string  `json:"file_path"`
	Success   bool    `json:"success"`
	Duration  float64 `json:"duration,omitempty"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

// handleUploadAudio accepts a pre-recorded audio file from the browser
// recorder and persists it. Processing happens in a separate call so the
// client can show the saved file first.
func (a *App) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExts[ext] {
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported audio format %q", ext))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	saved, err := a.audio.SaveUpload(header.Filename, data)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to save upload")
		a.writeError(w, http.StatusInternalServerError, "failed to save audio")
		return
	}

	a.writeJSON(w, http.StatusOK, uploadResponse{
		FilePath:  saved.Path,
		Success:   true,
		Duration:  saved.Duration,
		Synthetic: saved.Synthetic,
	})
}

type processRequest struct {
	FilePath string `json:"file_path"`
	Title    string `json:"title"`
	UserID   string `json:"user_id"`
}

// handleProcessRecording runs the pipeline on an already-saved audio file,
// typically the one returned by a live recording stop.
func (a *App) handleProcessRecording(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FilePath == "" {
		a.writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	if req.Title == "" {
		req.Title = "Untitled Meeting"
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	meeting, err := a.processor.ProcessRecording(r.Context(), req.FilePath, req.Title, req.UserID)
	if err != nil {
		a.writeProcessingError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, meeting)
}

func (a *App) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = defaultUserID
	}

	meetings, err := a.store.MeetingsByUser(r.Context(), userID)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to list meetings")
		a.writeError(w, http.StatusInternalServerError, "failed to list meetings")
		return
	}
	if meetings == nil {
		meetings = []domain.Meeting{}
	}
	a.writeJSON(w, http.StatusOK, meetings)
}

func (a *App) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := a.store.Meeting(r.Context(), r.PathValue("id"))
	if errors.Is(err, ports.ErrNotFound) {
		a.writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("failed to load meeting")
		a.writeError(w, http.StatusInternalServerError, "failed to load meeting")
		return
	}
	a.writeJSON(w, http.StatusOK, meeting)
}

func (a *App) handleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	var upd domain.MeetingUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if upd.ActionItems != nil {
		for _, item := range *upd.ActionItems {
			if _, err := domain.ParseActionItemStatus(string(item.Status)); err != nil {
				a.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
	}

	id := r.PathValue("id")
	if err := a.store.UpdateMeeting(r.Context(), id, upd); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			a.writeError(w, http.StatusNotFound, "meeting not found")
			return
		}
		a.log.Error().Err(err).Msg("failed to update meeting")
		a.writeError(w, http.StatusInternalServerError, "failed to update meeting")
		return
	}

	meeting, err := a.store.Meeting(r.Context(), id)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to load updated meeting")
		return
	}
	a.writeJSON(w, http.StatusOK, meeting)
}

func (a *App) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	err := a.store.DeleteMeeting(r.Context(), r.PathValue("id"))
	if errors.Is(err, ports.ErrNotFound) {
		a.writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("failed to delete meeting")
		a.writeError(w, http.StatusInternalServerError, "failed to delete meeting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addActionRequest struct {
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to"`
	Status      string `json:"status"`
}

// handleAddActionItem appends one action item to a meeting.
func (a *App) handleAddActionItem(w http.ResponseWriter, r *http.Request) {
	var req addActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		a.writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	status := domain.StatusPending
	if req.Status != "" {
		parsed, err := domain.ParseActionItemStatus(req.Status)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	id := r.PathValue("id")
	meeting, err := a.store.Meeting(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		a.writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to load meeting")
		return
	}

	items := append(meeting.ActionItems, domain.ActionItem{
		Description: strings.TrimSpace(req.Description),
		AssignedTo:  strings.TrimSpace(req.AssignedTo),
		Status:      status,
	})
	if err := a.store.UpdateMeeting(r.Context(), id, domain.MeetingUpdate{ActionItems: &items}); err != nil {
		a.log.Error().Err(err).Msg("failed to add action item")
		a.writeError(w, http.StatusInternalServerError, "failed to add action item")
		return
	}

	meeting.ActionItems = items
	a.writeJSON(w, http.StatusOK, meeting)
}

// handleRecordStatus reports the live capture pipeline snapshot.
func (a *App) handleRecordStatus(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.recorder.Stats())
}

// writeProcessingError maps pipeline failures to HTTP statuses. Quota and
// size failures get distinct codes so the client can explain them.
func (a *App) writeProcessingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrQuotaExceeded):
		a.writeError(w, http.StatusTooManyRequests, "transcription provider quota exceeded")
	case errors.Is(err, ports.ErrFileTooLarge):
		a.writeError(w, http.StatusRequestEntityTooLarge, "audio file exceeds the transcription size limit")
	default:
		a.log.Error().Err(err).Msg("meeting processing failed")
		a.writeError(w, http.StatusInternalServerError, "meeting processing failed")
	}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}
