package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/procurement-assistant/internal/server"
	"github.com/morezero/procurement-assistant/pkg/commsutil"
	"github.com/morezero/procurement-assistant/pkg/orchestrator"
	"github.com/morezero/procurement-assistant/pkg/session"
)

const welcome = `Welcome to the PO Assistant.

I can help you monitor inventory and manage purchase orders.

Commands:
  check inventory   Check current inventory levels
  history           Show this session's conversation
  help              Show this message
  quit | exit       Leave the chat

Approval gates: PO creation, supplier selection, high-value PO (>$10,000).
`

// chatBackend runs one turn and returns the reply text and the session id to use next.
type chatBackend interface {
	Turn(ctx context.Context, sessionID, message string) (reply string, nextID string, err error)
	History(ctx context.Context, sessionID string) ([]orchestrator.Message, error)
}

// localBackend runs turns in this process.
type localBackend struct {
	sessions *session.Service
}

func (b *localBackend) Turn(ctx context.Context, id, message string) (string, string, error) {
	reply, err := b.sessions.Turn(ctx, id, message)
	if err != nil {
		return "", id, err
	}
	return reply.Response, reply.SessionID, nil
}

func (b *localBackend) History(ctx context.Context, id string) ([]orchestrator.Message, error) {
	sess, err := b.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// commsBackend sends turns to a running server on the chat subject.
type commsBackend struct {
	nc      *comms.Conn
	subject string
	timeout time.Duration
}

func (b *commsBackend) Turn(ctx context.Context, id, message string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	var reply server.ChatReply
	if err := commsutil.RequestJSON(ctx, b.nc, b.subject, server.ChatRequest{SessionID: id, Message: message}, &reply); err != nil {
		return "", id, err
	}
	if reply.Error != "" {
		return "", id, errors.New(reply.Error)
	}
	return reply.Response, reply.SessionID, nil
}

func (b *commsBackend) History(context.Context, string) ([]orchestrator.Message, error) {
	return nil, errors.New("history is not available over NATS; use GET /api/v1/sessions/{id}")
}

// chatLoop reads messages from in until EOF or a quit command.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, backend chatBackend, sessionID string) error {
	fmt.Fprint(out, welcome)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\nGoodbye!")
			return scanner.Err()
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}

		switch strings.ToLower(msg) {
		case "quit", "exit", "bye":
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		case "help", "?":
			fmt.Fprint(out, welcome)
			continue
		case "history":
			history, err := backend.History(ctx, sessionID)
			if err != nil {
				fmt.Fprintf(out, "\nError: %v\n", err)
				continue
			}
			if len(history) == 0 {
				fmt.Fprintln(out, "\nNo messages yet.")
			}
			for _, m := range history {
				fmt.Fprintf(out, "\n[%s] %s\n", m.Role, m.Content)
			}
			continue
		}

		reply, next, err := backend.Turn(ctx, sessionID, msg)
		if err != nil {
			fmt.Fprintf(out, "\nError: %v\n", err)
			continue
		}
		sessionID = next
		fmt.Fprintf(out, "\nAgent:\n%s\n", reply)
	}
}
