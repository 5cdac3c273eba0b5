package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/adalundhe/crews/core/credentials"
	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/selection"
	"github.com/adalundhe/crews/core/session"
)

// multipartOverhead is the allowance for form fields next to the upload.
const multipartOverhead = 1 << 20

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := cerrors.HTTPStatus(err)
	switch {
	case errors.Is(err, session.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, session.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrManagerClosed):
		status = http.StatusServiceUnavailable
	}

	resp := errorResponse{Error: cerrors.UserMessage(err)}
	if kind := cerrors.KindOf(err); kind != cerrors.KindUnknown {
		resp.Kind = kind.String()
	} else {
		resp.Error = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": s.config.Sessions.Active(),
	})
}

type crewInfo struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	DefaultPrompt string `json:"default_prompt"`
	NeedsCode     bool   `json:"needs_code"`
	WebSearch     bool   `json:"web_search"`
	DownloadName  string `json:"download_name"`
}

func (s *Server) handleCrews(w http.ResponseWriter, r *http.Request) {
	crews := make([]crewInfo, 0, len(selection.Crews()))
	for _, c := range selection.Crews() {
		crews = append(crews, crewInfo{
			ID:            c.String(),
			Label:         c.Label(),
			DefaultPrompt: c.DefaultPrompt(),
			NeedsCode:     c.NeedsCode(),
			WebSearch:     c.UsesAnswerTool(),
			DownloadName:  c.DownloadName(),
		})
	}
	writeJSON(w, http.StatusOK, crews)
}

type providerInfo struct {
	ID                string   `json:"id"`
	Label             string   `json:"label"`
	Local             bool     `json:"local"`
	Models            []string `json:"models"`
	CustomModel       bool     `json:"custom_model"`
	Credential        string   `json:"credential,omitempty"`
	CredentialPresent bool     `json:"credential_present"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers := make([]providerInfo, 0, len(selection.Providers()))
	for _, p := range selection.Providers() {
		info := providerInfo{
			ID:          p.String(),
			Label:       p.Label(),
			Local:       p.Local(),
			Models:      selection.Catalog(p),
			CustomModel: p.AllowsCustomModel(),
			Credential:  p.CredentialName(),
		}
		if info.Models == nil {
			info.Models = []string{}
		}
		if info.Credential != "" && s.config.Credentials != nil {
			info.CredentialPresent = s.config.Credentials.Has(info.Credential)
		}
		providers = append(providers, info)
	}

	resp := map[string]any{"providers": providers}
	if s.config.Credentials != nil {
		resp["exa_present"] = s.config.Credentials.Has(credentials.Exa)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOllamaModels(w http.ResponseWriter, r *http.Request) {
	models := []string{}
	if s.config.Models != nil {
		found, err := s.config.Models.ListModels(r.Context())
		if err != nil {
			s.logger.Warn("ollama model discovery failed", "error", err)
		} else if len(found) > 0 {
			models = found
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// runRequest is the JSON form of a run submission.
type runRequest struct {
	Crew         string            `json:"crew"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	Prompt       string            `json:"prompt"`
	Code         string            `json:"code"`
	CodeFileName string            `json:"code_file_name"`
	Credentials  map[string]string `json:"credentials"`
}

func (s *Server) parseRunRequest(r *http.Request) (selection.Input, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return s.parseMultipartRun(r)
	}

	var req runRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return selection.Input{}, cerrors.Wrap(cerrors.KindInvalidInput, "malformed run request", err)
	}
	return selection.Input{
		Provider:     req.Provider,
		Model:        req.Model,
		Crew:         req.Crew,
		Prompt:       req.Prompt,
		Code:         []byte(req.Code),
		CodeFileName: req.CodeFileName,
		Credentials:  req.Credentials,
	}, nil
}

// parseMultipartRun reads the UI form. Keys arrive as key_<credential>, the
// source file as "code".
func (s *Server) parseMultipartRun(r *http.Request) (selection.Input, error) {
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		return selection.Input{}, cerrors.Wrap(cerrors.KindInvalidInput, "malformed upload", err)
	}

	in := selection.Input{
		Provider:    r.FormValue("provider"),
		Model:       r.FormValue("model"),
		Crew:        r.FormValue("crew"),
		Prompt:      r.FormValue("prompt"),
		Credentials: make(map[string]string),
	}
	for _, name := range credentials.Known() {
		if v := strings.TrimSpace(r.FormValue("key_" + name)); v != "" {
			in.Credentials[name] = v
		}
	}

	file, header, err := r.FormFile("code")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return selection.Input{}, cerrors.Wrap(cerrors.KindInvalidInput, "read upload", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.config.MaxUploadBytes+1))
	if err != nil {
		return selection.Input{}, cerrors.Wrap(cerrors.KindInvalidInput, "read upload", err)
	}
	in.Code = data
	in.CodeFileName = header.Filename
	return in, nil
}

// sessionID returns the caller's session, issuing a cookie for new sessions.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess := s.config.Sessions.Session(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess.ID
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+multipartOverhead)

	in, err := s.parseRunRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sessionID := s.sessionID(w, r)

	sel, err := s.config.Orchestrator.Resolve(r.Context(), in)
	if err != nil {
		s.logger.Info("run refused", "session", sessionID, "kind", cerrors.KindOf(err).String(), "error", err)
		s.writeError(w, err)
		return
	}

	spec := session.Spec{Crew: sel.Crew, Provider: sel.Provider, Model: sel.Model}
	if !sel.WebSearch && sel.Crew.UsesAnswerTool() {
		spec.Notice = "Web search is unavailable with local models; the crew runs without it."
	}

	run, err := s.config.Sessions.Start(sessionID, spec, s.executor(sel))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": run.ID,
		"notice": spec.Notice,
	})
}

// executor binds a resolved selection to a run. The run's log receives the
// pipeline's records alongside the server log.
func (s *Server) executor(sel *selection.Selection) session.Executor {
	return func(ctx context.Context, run *session.Run) (string, error) {
		logger := slog.New(session.Tee(
			s.logger.Handler(),
			run.Log.Handler(s.config.RunLogLevel),
		)).With("run", run.ID)

		result, err := s.config.Orchestrator.Execute(ctx, sel, logger)
		if err != nil {
			logger.Error("run failed", "error", cerrors.UserMessage(err))
			return "", err
		}
		logger.Info("run completed", "tasks", len(result.Tasks))
		return result.Artifact, nil
	}
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*session.Run, bool) {
	run, err := s.config.Sessions.Run(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return run, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot())
}

func (s *Server) completedArtifact(w http.ResponseWriter, r *http.Request) (*session.Run, string, bool) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return nil, "", false
	}
	if run.State() != session.StateCompleted {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: fmt.Sprintf("run %s has no result (state %s)", run.ID, run.State()),
		})
		return nil, "", false
	}
	return run, run.Artifact(), true
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	run, artifact, ok := s.completedArtifact(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": run.Spec.Crew.DownloadName()}))
	_, _ = io.WriteString(w, artifact)
}

func (s *Server) handleArtifactHTML(w http.ResponseWriter, r *http.Request) {
	_, artifact, ok := s.completedArtifact(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(artifact), &buf); err != nil {
		s.writeError(w, cerrors.Wrap(cerrors.KindPipelineExecution, "render result", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
