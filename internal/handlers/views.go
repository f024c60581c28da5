package handlers

import (
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/vamu-rec/recommender-chat/internal/models"
	"github.com/vamu-rec/recommender-chat/internal/session"
)

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	StreamingState string
}

type modelOption struct {
	models.Model
	Active bool
}

type chatboxData struct {
	Messages      []message
	Models        []modelOption
	SelectedModel models.ModelID
	Streaming     bool
}

type homePageData struct {
	chatboxData

	Health  healthData
	History historyData
	// HealthRefresh is the interval, in milliseconds, at which the page refreshes the health badge.
	HealthRefresh int64
}

type modelStatus struct {
	Name      string
	Status    string
	Available bool
}

type healthData struct {
	// Reachable is false when the backend could not be queried.
	Reachable bool
	Healthy   bool
	Models    []modelStatus
}

type conversationItem struct {
	ID       string
	Label    string
	Date     string
	Question string
}

type historyData struct {
	Conversations []conversationItem
	Page          int
	TotalPages    int
	Failed        bool
}

// Pager helpers for the history template.
func (h historyData) HasPrev() bool { return h.Page > 0 }
func (h historyData) HasNext() bool { return h.Page < h.TotalPages-1 }
func (h historyData) PrevPage() int { return max(0, h.Page-1) }
func (h historyData) NextPage() int { return min(max(h.TotalPages-1, 0), h.Page+1) }
func (h historyData) DisplayPage() int { return h.Page + 1 }

func modelOptions(selected models.ModelID) []modelOption {
	opts := make([]modelOption, len(models.Models))
	for i, m := range models.Models {
		opts[i] = modelOption{Model: m, Active: m.ID == selected}
	}
	return opts
}

// streamingState tells whether msg is the trailing assistant message of an active stream.
func streamingState(msgs []models.Message, i int, state session.State) string {
	if state == session.StateStreaming && i == len(msgs)-1 && msgs[i].Role == models.RoleAssistant {
		if msgs[i].Content == "" {
			return models.StreamingStateLoading
		}
		return models.StreamingStateStreaming
	}
	return models.StreamingStateEnded
}

func messageView(msgs []models.Message, i int, state session.State) (message, error) {
	content, err := renderContent(msgs[i].Role, msgs[i].Content)
	if err != nil {
		return message{}, fmt.Errorf("failed to render message %s: %w", msgs[i].ID, err)
	}
	return message{
		ID:             msgs[i].ID,
		Role:           string(msgs[i].Role),
		Content:        content,
		Timestamp:      msgs[i].Timestamp,
		StreamingState: streamingState(msgs, i, state),
	}, nil
}

func (m Main) chatbox() (chatboxData, error) {
	msgs := m.chat.Messages()
	state := m.chat.State()

	views := make([]message, len(msgs))
	for i := range msgs {
		v, err := messageView(msgs, i, state)
		if err != nil {
			return chatboxData{}, err
		}
		views[i] = v
	}

	selected := m.chat.Model()
	return chatboxData{
		Messages:      views,
		Models:        modelOptions(selected),
		SelectedModel: selected,
		Streaming:     state == session.StateStreaming,
	}, nil
}

func newHealthData(h models.Health) healthData {
	statuses := make([]modelStatus, 0, len(h.Models))
	for name, status := range h.Models {
		statuses = append(statuses, modelStatus{
			Name:      name,
			Status:    status,
			Available: models.ModelAvailable(status),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	return healthData{
		Reachable: true,
		Healthy:   h.Healthy(),
		Models:    statuses,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01 15:04")
}

func newHistoryData(p models.ConversationPage, page int) historyData {
	items := make([]conversationItem, len(p.Content))
	for i, c := range p.Content {
		items[i] = conversationItem{
			ID:       string(c.ID),
			Label:    c.Label(),
			Date:     formatDate(c.LocalData.Time),
			Question: c.FirstQuestion(),
		}
	}
	return historyData{
		Conversations: items,
		Page:          page,
		TotalPages:    p.TotalPages,
	}
}
