package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vamu-rec/recommender-chat/internal/models"
	"github.com/vamu-rec/recommender-chat/internal/session"
)

// HandleChats sends a prompt to the selected model through HTTP POST requests. It accepts the prompt in the
// "message" form field and the model in the optional "model" field, which defaults to the current
// selection.
//
// The response streams asynchronously: the handler renders the user message and an empty assistant
// message whose content is then pushed to the browser through server-sent events. A blank prompt or an
// unknown model is a 400, and a prompt sent while a response is still streaming is a 409.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	model := models.ModelID(r.FormValue("model"))
	if model == "" {
		model = m.chat.Model()
	}
	if _, ok := models.LookupModel(model); !ok {
		m.logger.Error("Unknown model", slog.String("model", string(model)))
		http.Error(w, "Unknown model", http.StatusBadRequest)
		return
	}

	// The stream outlives the request, so it is bound to the session rather than to r.Context().
	_, err := m.chat.SendPrompt(context.Background(), model, r.FormValue("message"))
	switch {
	case errors.Is(err, session.ErrEmptyPrompt):
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	case errors.Is(err, session.ErrStreaming):
		m.logger.Warn("Prompt rejected while streaming")
		http.Error(w, "A response is still streaming", http.StatusConflict)
		return
	case err != nil:
		m.logger.Error("Failed to send prompt", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	msgs := m.chat.Messages()
	state := m.chat.State()
	if len(msgs) < 2 {
		// The transcript was cleared concurrently.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	um, err := messageView(msgs, len(msgs)-2, state)
	if err != nil {
		m.logger.Error("Failed to render contents", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "user_message", um); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	am, err := messageView(msgs, len(msgs)-1, state)
	if err != nil {
		m.logger.Error("Failed to render contents", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "ai_message", am); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleMessage renders the current state of one message, given by the "message_id" query parameter. The
// browser uses it to catch up on updates published before its event stream was connected.
func (m Main) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("message_id")
	msgs := m.chat.Messages()
	state := m.chat.State()
	for i := range msgs {
		if msgs[i].ID != id {
			continue
		}
		v, err := messageView(msgs, i, state)
		if err != nil {
			m.logger.Error("Failed to render contents", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		tmpl := "user_message"
		if msgs[i].Role == models.RoleAssistant {
			tmpl = "ai_message"
		}
		if err := m.templates.ExecuteTemplate(w, tmpl, v); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	http.Error(w, fmt.Sprintf("Message %q not found", id), http.StatusNotFound)
}

// HandleCancel stops the streaming response, keeping what was already received.
func (m Main) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m.chat.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear stops the streaming response and starts a new, empty conversation.
func (m Main) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m.chat.Clear()
	m.renderChatbox(w)
}

// HandleModel changes the selected model from the "model" form field.
func (m Main) HandleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	model := models.ModelID(r.FormValue("model"))
	if _, ok := models.LookupModel(model); !ok {
		m.logger.Error("Unknown model", slog.String("model", string(model)))
		http.Error(w, "Unknown model", http.StatusBadRequest)
		return
	}
	m.chat.SetModel(model)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE subscribes the browser to streaming message updates.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.relay.ServeHTTP(w, r)
}

func (m Main) renderChatbox(w http.ResponseWriter) {
	cb, err := m.chatbox()
	if err != nil {
		m.logger.Error("Failed to render chatbox", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "chatbox", cb); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
