package handlers

import (
	"log/slog"
	"net/http"
)

// HandleHome renders the chat page: model selector, current transcript, backend health, and the first page
// of conversation history.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cb, err := m.chatbox()
	if err != nil {
		m.logger.Error("Failed to render chatbox", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		chatboxData: cb,
		Health:      m.health(r.Context()),
		History:     m.history(r.Context(), 0),

		HealthRefresh: m.opts.HealthInterval.Milliseconds(),
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
