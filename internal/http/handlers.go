package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/app"
	"daisy-dictation-service/internal/models"
	"daisy-dictation-service/internal/notify"
	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/service/apierror"
	"daisy-dictation-service/internal/service/device"
	"daisy-dictation-service/internal/service/generation"
	"daisy-dictation-service/internal/service/recording"
	"daisy-dictation-service/internal/service/scribes"
	"daisy-dictation-service/internal/service/storage"
	"daisy-dictation-service/internal/service/stt"
)

const (
	maxAudioBytes    = 100 << 20
	maxDocumentBytes = 1 << 20
)

type handlers struct {
	app *app.Application
	log zerolog.Logger
}

func newHandlers(a *app.Application) *handlers {
	return &handlers{app: a, log: logging.WithComponent("http")}
}

type errorResponse struct {
	Error string       `json:"error"`
	Level notify.Level `json:"level,omitempty"`
}

type outcomeResponse struct {
	Name    string       `json:"name"`
	Level   notify.Level `json:"level"`
	Message string       `json:"message"`
}

type documentRequest struct {
	Transcript string `json:"transcript"`
	SessionID  string `json:"sessionId,omitempty"`
}

type documentResponse struct {
	Document string `json:"document"`
}

type scribeRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// transcribe accepts a raw audio body and returns the normalized transcript.
func (h *handlers) transcribe(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = device.DefaultMimeType
	}
	seconds, _ := strconv.Atoi(r.URL.Query().Get("seconds"))

	a := &recording.Artifact{
		SessionID:      "http-" + uuid.NewString(),
		MimeType:       mimeType,
		Data:           data,
		ChunkCount:     1,
		ElapsedSeconds: seconds,
		CreatedAt:      time.Now().UTC(),
	}

	res, err := h.app.Transcriber.Transcribe(r.Context(), a)
	if err != nil {
		h.log.Warn().Err(err).Str("sessionId", a.SessionID).Msg("Transcription request failed")
		writeError(w, statusFor(err), fmt.Sprintf("Failed to transcribe audio: %v", err))
		return
	}

	ev := &models.TranscriptCompleted{
		EventType:      models.EventTranscriptCompleted,
		SessionID:      a.SessionID,
		Principal:      h.app.Publisher.Principal(),
		Timestamp:      time.Now().UnixMilli(),
		Provider:       h.app.Transcriber.Provider(),
		MimeType:       mimeType,
		ElapsedSeconds: seconds,
		Transcript:     res.Transcript,
		Confidence:     res.Confidence,
		WordCount:      len(res.Words),
		EstimatedCost:  stt.EstimateCost(seconds),
	}
	if err := h.app.Publisher.PublishTranscript(r.Context(), ev); err != nil {
		h.log.Error().Err(err).Str("sessionId", a.SessionID).Msg("Failed to publish transcript")
	}
	h.app.Notifier.Notify(notify.Success("Transcription complete"))

	w.Header().Set("X-Session-Id", a.SessionID)
	writeJSON(w, http.StatusOK, res)
}

// generate produces a document. With Accept: text/event-stream each
// fragment is forwarded as it arrives.
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	streaming := strings.Contains(r.Header.Get("Accept"), "text/event-stream")
	flusher, canFlush := w.(http.Flusher)
	fragments := 0
	var onFragment func(string)
	if streaming && canFlush {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		onFragment = func(f string) {
			fragments++
			payload, _ := json.Marshal(documentResponse{Document: f})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	} else {
		onFragment = func(string) { fragments++ }
	}

	text, err := h.app.Generator.Stream(r.Context(), req.Transcript, onFragment)
	if err != nil {
		h.log.Warn().Err(err).Msg("Generation request failed")
		msg := fmt.Sprintf("Failed to generate document: %v", err)
		if streaming && canFlush {
			payload, _ := json.Marshal(errorResponse{Error: msg})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
			flusher.Flush()
			return
		}
		writeError(w, statusFor(err), msg)
		return
	}

	ev := &models.DocumentGenerated{
		EventType:       models.EventDocumentGenerated,
		SessionID:       req.SessionID,
		Principal:       h.app.Publisher.Principal(),
		Timestamp:       time.Now().UnixMilli(),
		Model:           h.app.Generator.Model(),
		TranscriptChars: len(req.Transcript),
		DocumentChars:   len(text),
		Fragments:       fragments,
		Document:        text,
	}
	if err := h.app.Publisher.PublishDocument(r.Context(), ev); err != nil {
		h.log.Error().Err(err).Msg("Failed to publish document")
	}
	h.app.Notifier.Notify(notify.Success("Document generated"))

	if streaming && canFlush {
		fmt.Fprint(w, "event: done\ndata: {}\n\n")
		flusher.Flush()
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: text})
}

func (h *handlers) listScribes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Library.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) createScribe(w http.ResponseWriter, r *http.Request) {
	var req scribeRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.app.Library.Create(r.Context(), req.Name, req.Content)
	h.writeOutcome(w, http.StatusCreated, out, err)
}

func (h *handlers) openScribe(w http.ResponseWriter, r *http.Request) {
	text, err := h.app.Library.Open(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	w.Header().Set("Content-Type", scribes.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func (h *handlers) saveScribe(w http.ResponseWriter, r *http.Request) {
	var req scribeRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.app.Library.Save(r.Context(), chi.URLParam(r, "name"), req.Content)
	h.writeOutcome(w, http.StatusOK, out, err)
}

func (h *handlers) deleteScribe(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Library.Delete(r.Context(), chi.URLParam(r, "name"))
	h.writeOutcome(w, http.StatusOK, out, err)
}

// copyScribe saves content under a new name. Without content the original
// document is copied.
func (h *handlers) copyScribe(w http.ResponseWriter, r *http.Request) {
	var req scribeRequest
	if !decode(w, r, &req) {
		return
	}
	original := chi.URLParam(r, "name")
	content := req.Content
	if content == "" {
		text, err := h.app.Library.Open(r.Context(), original)
		if err != nil {
			h.writeLibraryError(w, err)
			return
		}
		content = text
	}
	out, err := h.app.Library.SaveAs(r.Context(), original, req.Name, content)
	h.writeOutcome(w, http.StatusCreated, out, err)
}

func (h *handlers) renameScribe(w http.ResponseWriter, r *http.Request) {
	var req scribeRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.app.Library.Rename(r.Context(), chi.URLParam(r, "name"), req.Name)
	h.writeOutcome(w, http.StatusOK, out, err)
}

func (h *handlers) writeOutcome(w http.ResponseWriter, status int, out scribes.Outcome, err error) {
	if err != nil {
		h.writeLibraryError(w, err)
		return
	}
	h.app.Notifier.Notify(out.Notification())
	writeJSON(w, status, outcomeResponse{Name: out.Name, Level: out.Level, Message: out.Message})
}

func (h *handlers) writeLibraryError(w http.ResponseWriter, err error) {
	level, msg := notify.LevelError, err.Error()
	var lerr *scribes.Error
	if errors.As(err, &lerr) {
		level = lerr.Level
		h.app.Notifier.Notify(lerr.Notification())
	}
	writeJSON(w, statusFor(err), errorResponse{Error: msg, Level: level})
}

// statusFor maps component errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, scribes.ErrCancelled), errors.Is(err, scribes.ErrSameName),
		errors.Is(err, storage.ErrInvalidKey), errors.Is(err, stt.ErrNoAudio),
		errors.Is(err, generation.ErrEmptyTranscript):
		return http.StatusBadRequest
	case errors.Is(err, apierror.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, apierror.ErrMalformedResponse):
		return http.StatusBadGateway
	}
	if se, ok := apierror.AsServiceError(err); ok {
		if se.Status == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
