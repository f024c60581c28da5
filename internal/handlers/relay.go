package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"
	"github.com/vamu-rec/recommender-chat/internal/models"
	"github.com/vamu-rec/recommender-chat/internal/session"
)

// Relay forwards session updates to browsers as server-sent events. Every assistant message has its own
// event types, "message-<id>" carrying the rendered content and "close-<id>" marking the end of the
// stream, so a page needs a single connection to follow any number of messages.
type Relay struct {
	sseSrv *sse.Server
	logger *slog.Logger
}

// NewRelay creates a Relay with a default SSE server.
func NewRelay(logger *slog.Logger) *Relay {
	return &Relay{
		sseSrv: &sse.Server{},
		logger: logger.With(slog.String("module", "relay")),
	}
}

func messageEventType(messageID string) sse.EventType {
	return sse.Type("message-" + messageID)
}

func closeEventType(messageID string) sse.EventType {
	return sse.Type("close-" + messageID)
}

// Publish sends u to subscribed browsers. It is meant to be registered as the session observer.
func (r *Relay) Publish(u session.Update) {
	content, err := renderContent(models.RoleAssistant, u.Content)
	if err != nil {
		r.logger.Error("Failed to render contents",
			slog.String("messageID", u.MessageID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{Type: messageEventType(u.MessageID)}
	msg.AppendData(string(content))
	if err := r.sseSrv.Publish(&msg); err != nil {
		r.logger.Debug("Failed to publish message",
			slog.String("messageID", u.MessageID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	if !u.Done {
		return
	}

	// Browsers do not dispatch events without data.
	end := sse.Message{Type: closeEventType(u.MessageID)}
	end.AppendData("bye")
	if err := r.sseSrv.Publish(&end); err != nil {
		r.logger.Debug("Failed to publish close",
			slog.String("messageID", u.MessageID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// ServeHTTP subscribes the browser to message updates.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.sseSrv.ServeHTTP(w, req)
}

// Shutdown broadcasts a close event to all connected browsers and waits up to 5 seconds for their
// connections to terminate, after which they are forcefully closed.
func (r *Relay) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = r.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return r.sseSrv.Shutdown(ctx)
}
