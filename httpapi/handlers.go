package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqa/answer"
	"docqa/core"
	"docqa/document"
	"docqa/session"
)

// maxFormMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const maxFormMemory = 8 << 20

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Action  string `json:"action,omitempty"`
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
}

type askResponse struct {
	Success          bool   `json:"success"`
	Answer           string `json:"answer"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

type sessionResponse struct {
	Success bool             `json:"success"`
	Session session.Snapshot `json:"session"`
}

type ingestResponse struct {
	Success bool                  `json:"success"`
	Report  *session.IngestReport `json:"report"`
}

type historyEntry struct {
	CorrelationID string    `json:"correlation_id"`
	SessionID     string    `json:"session_id"`
	FileName      string    `json:"file_name"`
	Format        string    `json:"format"`
	Strategy      string    `json:"strategy"`
	Source        string    `json:"source"`
	ContentLength int       `json:"content_length"`
	Success       bool      `json:"success"`
	ErrorCode     string    `json:"error_code,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, msg, action string) {
	writeJSON(w, status, failureResponse{Error: msg, Action: action})
}

// writeError maps pipeline errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := failureResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	if de, ok := core.IsDocumentError(err); ok {
		resp.Code = de.Code
		resp.Error = de.Message
		resp.Action = de.Action
		switch de.Code {
		case core.ErrCodeContextEmpty:
			status = http.StatusConflict
		case core.ErrCodeServiceTimeout:
			status = http.StatusGatewayTimeout
		case core.ErrCodeService:
			status = http.StatusBadGateway
		default:
			status = http.StatusUnprocessableEntity
		}
	} else {
		switch {
		case errors.Is(err, session.ErrNotFound):
			status = http.StatusNotFound
			resp.Action = "Create a new session"
		case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrSuperseded):
			status = http.StatusConflict
			resp.Action = "Wait for processing to finish"
		case errors.Is(err, answer.ErrEmptyQuestion):
			status = http.StatusBadRequest
			resp.Action = "Enter a question"
		default:
			resp.Error = "internal error"
			s.logger.Error("request failed", zap.Error(err))
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.config.Version,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, sessionResponse{Success: true, Session: sess.Snapshot()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: sess.Snapshot()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB", s.config.MaxUploadBytes>>20), "Upload fewer or smaller files")
			return
		}
		writeFailure(w, http.StatusBadRequest, "expected a multipart form", "Send files as multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, err := readUploads(r.MultipartForm)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), "Upload the files again")
		return
	}
	url := strings.TrimSpace(r.FormValue("url"))
	if len(files) == 0 && url == "" {
		writeFailure(w, http.StatusBadRequest, "no files or url provided", "Attach at least one file or a website URL")
		return
	}

	report, err := sess.Ingest(r.Context(), files, url)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Success: true, Report: report})
}

// readUploads collects the "files[]" and "files" parts in form order.
func readUploads(form *multipart.Form) ([]document.SourceFile, error) {
	var out []document.SourceFile
	for _, field := range []string{"files[]", "files"} {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("could not read %s", fh.Filename)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("could not read %s", fh.Filename)
			}
			out = append(out, document.NewSourceFile(fh.Filename, fh.Header.Get("Content-Type"), data))
		}
	}
	return out, nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body", `Send {"question": "..."}`)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := s.validate.Struct(req); err != nil {
		writeFailure(w, http.StatusBadRequest, "question is required and must be at most 4000 characters", "Enter a question")
		return
	}

	ans, err := sess.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Success:          true,
		Answer:           ans.Text,
		Model:            ans.Model,
		PromptTokens:     ans.PromptTokens,
		CompletionTokens: ans.CompletionTokens,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeFailure(w, http.StatusNotFound, "history is not enabled", "Set DATABASE_PATH to record extraction history")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeFailure(w, http.StatusBadRequest, "limit must be between 1 and 500", "")
			return
		}
		limit = n
	}

	recs, err := s.history.RecentExtractions(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries := make([]historyEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, historyEntry{
			CorrelationID: rec.CorrelationID,
			SessionID:     rec.SessionID,
			FileName:      rec.FileName,
			Format:        rec.Format,
			Strategy:      rec.Strategy,
			Source:        rec.Source,
			ContentLength: rec.ContentLength,
			Success:       rec.Success,
			ErrorCode:     rec.ErrorCode,
			DurationMs:    rec.Duration.Milliseconds(),
			CreatedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "extractions": entries})
}
