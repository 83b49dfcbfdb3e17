package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/router"
)

const commsLogPrefix = "server:comms"

// ChatReply is the chat-subject reply. Error is set instead of the other fields when
// the turn could not run.
type ChatReply struct {
	SessionID    string `json:"session_id,omitempty"`
	Response     string `json:"response,omitempty"`
	Stage        string `json:"stage,omitempty"`
	PendingGates int    `json:"pending_gates,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Subscribe attaches the router and chat subjects to nc. Each request runs under ctx
// with the configured request timeout. Callers unsubscribe the returned subscriptions.
func (a *App) Subscribe(ctx context.Context, nc *comms.Conn) ([]*comms.Subscription, error) {
	routerSub, err := nc.Subscribe(a.cfg.RouterSubject, func(msg *comms.Msg) {
		if resp := a.serveRoute(ctx, msg.Data); resp != nil {
			respond(msg, resp)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, a.cfg.RouterSubject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", commsLogPrefix, a.cfg.RouterSubject))

	chatSub, err := nc.Subscribe(a.cfg.ChatSubject, func(msg *comms.Msg) {
		respond(msg, a.serveChat(ctx, msg.Data))
	})
	if err != nil {
		routerSub.Unsubscribe()
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, a.cfg.ChatSubject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", commsLogPrefix, a.cfg.ChatSubject))

	return []*comms.Subscription{routerSub, chatSub}, nil
}

// serveRoute decodes and routes one request. It returns nil for a notification; decode
// failures are always answered.
func (a *App) serveRoute(ctx context.Context, data []byte) *envelope.Response {
	req, perr := envelope.DecodeRequest(data)
	if perr != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", commsLogPrefix, perr))
		id := ""
		if req != nil {
			id = req.ID
		}
		return envelope.ErrorResponseFrom(id, perr, router.SourceRouter)
	}
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	resp := a.router.Route(reqCtx, req)
	if req.IsNotification() {
		if resp.Error != nil {
			slog.Warn(fmt.Sprintf("%s - notification %s failed: %s", commsLogPrefix, req.Method, resp.Error.Message))
		}
		return nil
	}
	return resp
}

func (a *App) serveChat(ctx context.Context, data []byte) *ChatReply {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode chat request: %v", commsLogPrefix, err))
		return &ChatReply{Error: "failed to decode request"}
	}
	if req.Message == "" {
		return &ChatReply{SessionID: req.SessionID, Error: "message is required"}
	}
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	reply, err := a.sessions.Turn(reqCtx, req.SessionID, req.Message)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - chat turn failed: %v", commsLogPrefix, err))
		return &ChatReply{SessionID: req.SessionID, Error: "turn failed"}
	}
	return &ChatReply{
		SessionID:    reply.SessionID,
		Response:     reply.Response,
		Stage:        reply.Stage,
		PendingGates: len(reply.PendingGates),
	}
}

func respond(msg *comms.Msg, v any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", commsLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond: %v", commsLogPrefix, err))
	}
}
