package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/morezero/procurement-assistant/pkg/router"
	"github.com/morezero/procurement-assistant/pkg/session"
)

const httpLogPrefix = "server:http"

// maxBodyBytes caps request bodies on the JSON API.
const maxBodyBytes = 1 << 20

// HealthOutput is the /health payload.
type HealthOutput struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Checks    HealthChecks `json:"checks"`
}

// HealthChecks lists the individual probes behind HealthOutput.Status.
type HealthChecks struct {
	Store    bool `json:"store"`
	Handlers int  `json:"handlers"`
	Sessions int  `json:"sessions"`
	Watchers int  `json:"watchers"`
}

// ChatRequest is the body of POST /api/v1/chat and of chat-subject requests.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SessionOutput is the body of GET /api/v1/sessions/{id}.
type SessionOutput struct {
	*session.Session
	PendingGates any `json:"pending_gates,omitempty"`
}

// Health probes the store and reports handler and session counts.
func (a *App) Health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(a.started).Round(time.Second).String(),
		Checks: HealthChecks{
			Store:    true,
			Handlers: a.router.HandlerCount(),
			Sessions: a.sessions.SessionCount(),
			Watchers: a.hub.ConnectionCount(),
		},
	}
	if a.storeCheck != nil {
		if err := a.storeCheck(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - store health check failed: %v", httpLogPrefix, err))
			out.Checks.Store = false
			out.Status = "unhealthy"
		}
	}
	return out
}

// Handler returns the HTTP surface: pages, health, the JSON API and the event stream.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/", a.handleHome())
	r.Get("/agent/{agentID}", a.handleAgentDetail())
	r.Get("/agent/{agentID}/openapi.json", a.handleAgentOpenAPI)
	r.Get("/agent/{agentID}/docs", a.handleAgentDocs())
	r.Get("/health", a.handleHealth)
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Get("/ws", a.hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", a.handleChat)
		r.Post("/route", a.handleRoute)
		r.Get("/agents", a.handleListAgents)
		r.Get("/agents/{agentID}", a.handleGetAgent)
		r.Get("/workers/{agentID}/stats", a.handleWorkerStats)
		r.Get("/sessions/{sessionID}", a.handleGetSession)
		r.Delete("/sessions/{sessionID}", a.handleDeleteSession)
	})
	return r
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.cfg.HealthCheckTimeout)
	defer cancel()
	h := a.Health(ctx)
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (a *App) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[ChatRequest](w, r)
	if !ok {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.cfg.RequestTimeout)
	defer cancel()
	reply, err := a.sessions.Turn(ctx, req.SessionID, req.Message)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - chat turn failed: %v", httpLogPrefix, err))
		writeError(w, http.StatusInternalServerError, "turn failed")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// handleRoute accepts a raw request envelope and answers with a response envelope.
// Protocol failures are carried in the envelope, not in the HTTP status.
func (a *App) handleRoute(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	resp := a.serveRoute(r.Context(), data)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": a.router.ListAgents()})
}

func (a *App) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	card, ok := a.router.AgentInfo(chi.URLParam(r, "agentID"))
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (a *App) handleWorkerStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentID")
	srv, ok := a.servers[id]
	if !ok {
		writeError(w, http.StatusNotFound, "worker not found")
		return
	}
	out := map[string]any{"server": srv.Stats()}
	if cs, ok := a.clients.Stats()[id]; ok {
		out["client"] = cs
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := a.sessions.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to load session %s: %v", httpLogPrefix, id, err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	out := SessionOutput{Session: sess}
	if gates := a.sessions.Gates(id); gates != nil {
		if pending := gates.Pending(); len(pending) > 0 {
			out.PendingGates = pending
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	err := a.sessions.Delete(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to delete session %s: %v", httpLogPrefix, id, err))
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// homeData is the data passed to the home page template.
type homeData struct {
	Health *HealthOutput
	Agents []router.AgentSummary
}

func (a *App) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), a.cfg.HealthCheckTimeout)
		defer cancel()
		data := homeData{Health: a.Health(ctx), Agents: a.router.ListAgents()}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", httpLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// agentDetail is the data passed to the agent detail page template.
type agentDetail struct {
	AgentID      string
	Name         string
	Description  string
	Version      string
	HasHandler   bool
	Capabilities []capabilityView
}

type capabilityView struct {
	Name         string
	Description  string
	InputSchema  map[string]any
	OutputSchema map[string]any
}

func (a *App) handleAgentDetail() http.HandlerFunc {
	tmpl := template.Must(template.New("agentDetail").Funcs(template.FuncMap{
		"json": func(v any) string {
			if v == nil {
				return ""
			}
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return fmt.Sprintf("%v", v)
			}
			return string(b)
		},
	}).Parse(agentDetailPageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		card, ok := a.router.AgentInfo(chi.URLParam(r, "agentID"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, hasHandler := a.servers[card.AgentID]
		data := agentDetail{
			AgentID:     card.AgentID,
			Name:        card.Name,
			Description: card.Description,
			Version:     card.Version,
			HasHandler:  hasHandler,
		}
		for _, name := range card.Capabilities {
			d := card.Detail(name)
			data.Capabilities = append(data.Capabilities, capabilityView{
				Name: name, Description: d.Description, InputSchema: d.InputSchema, OutputSchema: d.OutputSchema,
			})
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - agent detail template execute: %v", httpLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func (a *App) handleAgentOpenAPI(w http.ResponseWriter, r *http.Request) {
	card, ok := a.router.AgentInfo(chi.URLParam(r, "agentID"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, buildOpenAPISpec(card))
}

func (a *App) handleAgentDocs() http.HandlerFunc {
	tmpl := template.Must(template.New("swagger").Parse(swaggerUIPage))
	return func(w http.ResponseWriter, r *http.Request) {
		card, ok := a.router.AgentInfo(chi.URLParam(r, "agentID"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		specURL := scheme + "://" + r.Host + "/agent/" + url.PathEscape(card.AgentID) + "/openapi.json"
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, map[string]string{"AgentID": card.AgentID, "SpecURL": specURL}); err != nil {
			slog.Error(fmt.Sprintf("%s - swagger template execute: %v", httpLogPrefix, err))
		}
	}
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to write JSON response: %v", httpLogPrefix, err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
