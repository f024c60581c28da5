package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tmaxmax/go-sse"
	"github.com/vamu-rec/recommender-chat/internal/handlers"
	"github.com/vamu-rec/recommender-chat/internal/session"
)

func TestRelayPublish(t *testing.T) {
	relay := handlers.NewRelay(discardLogger)
	srv := httptest.NewServer(relay)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Response headers are only sent with the first event, so keep publishing until the browser side is
	// subscribed.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				relay.Publish(session.Update{MessageID: "m1", Content: "**oi**", State: session.StateStreaming})
			}
		}
	}()
	stopped := false
	defer func() {
		if !stopped {
			close(stop)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}

		switch ev.Type {
		case "message-m1":
			if !strings.Contains(ev.Data, "<strong>oi</strong>") {
				t.Errorf("message data = %q, want rendered markdown", ev.Data)
			}
			if !stopped {
				close(stop)
				stopped = true
				relay.Publish(session.Update{MessageID: "m1", Content: "**oi** tchau", State: session.StateIdle, Done: true})
			}
		case "close-m1":
			if !stopped {
				t.Fatal("close event before the final update")
			}
			if ev.Data != "bye" {
				t.Errorf("close data = %q, want %q", ev.Data, "bye")
			}
			return
		default:
			t.Errorf("unexpected event type %q", ev.Type)
		}
	}
	t.Fatal("stream ended before the close event")
}

func TestRelayShutdown(t *testing.T) {
	relay := handlers.NewRelay(discardLogger)
	relay.Publish(session.Update{MessageID: "m1", Content: "oi", Done: true})

	if err := relay.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
