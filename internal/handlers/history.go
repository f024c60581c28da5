package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vamu-rec/recommender-chat/internal/models"
)

var errConversationNotFound = errors.New("conversation not found")

// HandleHistory renders one page of stored conversations. The zero-based page is given by the "page"
// query parameter; invalid or negative values select the first page. Backend failures render an empty
// list rather than an error page.
func (m Main) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := m.history(r.Context(), pageParam(r.FormValue("page")))
	if err := m.templates.ExecuteTemplate(w, "history", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleLoad replaces the transcript with a stored conversation, identified by the "id" and "page" form
// fields, and renders the chatbox with the model the conversation was held with.
func (m Main) HandleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.FormValue("id")
	if id == "" {
		http.Error(w, "Conversation id is required", http.StatusBadRequest)
		return
	}

	c, err := m.findConversation(r.Context(), pageParam(r.FormValue("page")), id)
	if err != nil {
		if errors.Is(err, errConversationNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		m.logger.Error("Failed to load conversation",
			slog.String("conversationID", id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	model := m.chat.LoadTranscript(c)
	m.logger.Debug("Conversation loaded",
		slog.String("conversationID", id),
		slog.String("model", string(model)))

	m.renderChatbox(w)
}

// HandleHealth renders the backend status badge.
func (m Main) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "health", m.health(r.Context())); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) findConversation(ctx context.Context, page int, id string) (models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	p, err := m.backend.History(ctx, page, m.opts.HistoryPageSize)
	if err != nil {
		return models.Conversation{}, err
	}
	for _, c := range p.Content {
		if string(c.ID) == id {
			return c, nil
		}
	}
	return models.Conversation{}, errConversationNotFound
}

func (m Main) history(ctx context.Context, page int) historyData {
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	p, err := m.backend.History(ctx, page, m.opts.HistoryPageSize)
	if err != nil {
		m.logger.Error("Failed to fetch history",
			slog.Int("page", page),
			slog.String(errLoggerKey, err.Error()))
		return historyData{Page: page, Failed: true}
	}
	return newHistoryData(p, page)
}

func (m Main) health(ctx context.Context) healthData {
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	h, err := m.backend.Health(ctx)
	if err != nil {
		m.logger.Error("Failed to check health", slog.String(errLoggerKey, err.Error()))
		return healthData{}
	}
	return newHealthData(h)
}

func pageParam(v string) int {
	page, err := strconv.Atoi(v)
	if err != nil || page < 0 {
		return 0
	}
	return page
}
