// Package session implements a streaming chat session: it owns the transcript of one conversation, sends
// prompts to the backend and appends the streamed response to the trailing assistant message.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vamu-rec/recommender-chat/internal/models"
	"github.com/vamu-rec/recommender-chat/internal/services"
)

// ConnectionErrorMarker is appended to the assistant message when the stream fails at the transport level.
const ConnectionErrorMarker = "\n[Erro na conexão]"

var (
	// ErrEmptyPrompt is returned by SendPrompt when the prompt is blank.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrStreaming is returned by SendPrompt while a response is still streaming.
	ErrStreaming = errors.New("a response is already streaming")
)

// State is the stream state of a session.
type State int

const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Transport opens the streaming response of a model for a prompt.
type Transport interface {
	Chat(ctx context.Context, model models.ModelID, prompt string) (io.ReadCloser, error)
}

// Decoder splits a response body into fragments.
type Decoder interface {
	Fragments(r io.Reader) iter.Seq2[services.Fragment, error]
}

// Update describes a change to an assistant message.
type Update struct {
	MessageID string
	Content   string
	State     State
	// Done is set on the last update of a stream.
	Done bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger of the session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithObserver registers fn to receive the updates of the streaming assistant message. Updates are
// delivered asynchronously in stream order, one call at a time and outside the session lock, so fn may
// call back into the Session. Updates of the same message that queue up while fn is busy are merged into
// the latest one.
func WithObserver(fn func(Update)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// Session is a chat conversation with at most one response streaming at a time. It is safe for concurrent
// use.
type Session struct {
	transport Transport
	decoder   Decoder
	logger    *slog.Logger
	observer  func(Update)

	mu       sync.Mutex
	messages []models.Message
	model    models.ModelID
	state    State
	cancel   context.CancelFunc
	// gen identifies the current stream; fragments of older streams are discarded.
	gen uint64

	// pending holds updates not yet handed to the observer; delivering is set while a goroutine drains it.
	pending    []Update
	delivering bool
}

// New creates an idle Session with an empty transcript that streams responses through transport and
// decoder.
func New(transport Transport, decoder Decoder, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		decoder:   decoder,
		logger:    slog.Default(),
		model:     models.DefaultModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("module", "session"))
	return s
}

// SendPrompt appends text as a user message followed by an empty assistant message, and starts streaming
// the response of model into the latter. It returns a channel that is closed once the stream has been
// fully consumed or abandoned.
//
// Blank prompts are rejected with ErrEmptyPrompt, and a call made while a response is streaming is
// rejected with ErrStreaming without touching the transcript.
func (s *Session) SendPrompt(ctx context.Context, model models.ModelID, text string) (<-chan struct{}, error) {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.state == StateStreaming {
		s.mu.Unlock()
		return nil, ErrStreaming
	}

	now := time.Now()
	assistantID := uuid.New().String()
	s.messages = append(s.messages,
		models.Message{
			ID:        uuid.New().String(),
			Role:      models.RoleUser,
			Content:   prompt,
			Timestamp: now,
		},
		models.Message{
			ID:        assistantID,
			Role:      models.RoleAssistant,
			Timestamp: now,
		},
	)

	streamCtx, cancel := context.WithCancel(ctx)
	s.model = model
	s.state = StateStreaming
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		s.stream(streamCtx, gen, assistantID, model, prompt)
	}()

	return done, nil
}

func (s *Session) stream(ctx context.Context, gen uint64, messageID string, model models.ModelID, prompt string) {
	logger := s.logger.With(
		slog.String("model", string(model)),
		slog.String("messageID", messageID),
	)

	body, err := s.transport.Chat(ctx, model, prompt)
	if err != nil {
		s.fail(ctx, logger, gen, messageID, err)
		return
	}
	defer body.Close()

	for f, err := range s.decoder.Fragments(body) {
		if err != nil {
			s.fail(ctx, logger, gen, messageID, err)
			return
		}

		switch f.Kind {
		case services.FragmentDone:
			logger.Debug("Stream completed")
			s.finish(gen, messageID)
			return
		case services.FragmentError:
			msg := decodeErrorText(f.Text)
			logger.Warn("Provider reported an error", slog.String("providerError", msg))
			s.replace(gen, messageID, msg)
			s.finish(gen, messageID)
			return
		default:
			if !s.appendText(gen, messageID, unescape(f.Text)) {
				return
			}
		}
	}

	s.finish(gen, messageID)
}

func (s *Session) fail(ctx context.Context, logger *slog.Logger, gen uint64, messageID string, err error) {
	if ctx.Err() != nil {
		logger.Debug("Stream cancelled")
		s.finish(gen, messageID)
		return
	}

	logger.Error("Stream failed", slog.String("error", err.Error()))
	s.appendText(gen, messageID, ConnectionErrorMarker)
	s.finish(gen, messageID)
}

// appendText appends text to the trailing assistant message if it still belongs to stream gen. It reports
// whether the stream is still current.
func (s *Session) appendText(gen uint64, messageID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.targetLocked(gen, messageID)
	if msg == nil {
		return false
	}
	msg.Content += text
	s.notifyLocked(*msg, false)
	return true
}

func (s *Session) replace(gen uint64, messageID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.targetLocked(gen, messageID)
	if msg == nil {
		return
	}
	msg.Content = text
	s.notifyLocked(*msg, false)
}

func (s *Session) finish(gen uint64, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.targetLocked(gen, messageID)
	if msg == nil {
		return
	}
	s.state = StateIdle
	s.cancel = nil
	s.notifyLocked(*msg, true)
}

// targetLocked returns the trailing assistant message when it is the target of the current stream.
func (s *Session) targetLocked(gen uint64, messageID string) *models.Message {
	if s.state != StateStreaming || s.gen != gen || len(s.messages) == 0 {
		return nil
	}
	msg := &s.messages[len(s.messages)-1]
	if msg.ID != messageID || msg.Role != models.RoleAssistant {
		return nil
	}
	return msg
}

func (s *Session) notifyLocked(msg models.Message, done bool) {
	if s.observer == nil {
		return
	}
	state := s.state
	if done {
		state = StateIdle
	}
	u := Update{
		MessageID: msg.ID,
		Content:   msg.Content,
		State:     state,
		Done:      done,
	}

	if n := len(s.pending); n > 0 && !s.pending[n-1].Done && s.pending[n-1].MessageID == u.MessageID {
		s.pending[n-1] = u
		return
	}
	s.pending = append(s.pending, u)

	if !s.delivering {
		s.delivering = true
		go s.deliver()
	}
}

// deliver hands pending updates to the observer until none are left.
func (s *Session) deliver() {
	s.mu.Lock()
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, u := range batch {
			s.observer(u)
		}

		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

// Cancel aborts the streaming response, if any, keeping whatever was already received. It is a no-op
// when the session is idle.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.state != StateStreaming {
		return
	}

	var last models.Message
	if len(s.messages) > 0 {
		last = s.messages[len(s.messages)-1]
	}

	s.cancel()
	s.cancel = nil
	s.state = StateIdle
	s.gen++

	if last.Role == models.RoleAssistant {
		s.notifyLocked(last, true)
	}
}

// Clear aborts the streaming response, if any, and empties the transcript.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.messages = nil
}

// LoadTranscript aborts the streaming response, if any, and replaces the transcript with the stored
// conversation c. Each question is followed by its answer when one was recorded. The selected model is
// derived from the conversation's model label when it has one; the resulting selection is returned.
func (s *Session) LoadTranscript(c models.Conversation) models.ModelID {
	messages := make([]models.Message, 0, len(c.Messages)+len(c.Responses))
	for i, question := range c.Messages {
		messages = append(messages, models.Message{
			ID:        uuid.New().String(),
			Role:      models.RoleUser,
			Content:   question,
			Timestamp: c.LocalData.Time,
		})
		if i < len(c.Responses) && c.Responses[i] != "" {
			messages = append(messages, models.Message{
				ID:        uuid.New().String(),
				Role:      models.RoleAssistant,
				Content:   c.Responses[i],
				Timestamp: c.LocalData.Time,
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.messages = messages
	if label := c.Label(); label != "" {
		s.model = models.NormalizeModel(label)
	}
	return s.model
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.Message(nil), s.messages...)
}

// State returns the current stream state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Model returns the selected model.
func (s *Session) Model() models.ModelID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.model
}

// SetModel changes the selected model used by the UI for the next prompt.
func (s *Session) SetModel(model models.ModelID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = model
}

// unescape turns the literal two-character sequence `\n` into a line break. An empty fragment stands for a
// line break the backend could not transmit as data.
func unescape(fragment string) string {
	if fragment == "" {
		return "\n"
	}
	return strings.ReplaceAll(fragment, `\n`, "\n")
}

// decodeErrorText strips the JSON string quoting, or bare surrounding quotes, of a provider error.
func decodeErrorText(raw string) string {
	text := strings.TrimSpace(raw)
	var s string
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		return s
	}
	return strings.ReplaceAll(strings.Trim(text, `"`), `\n`, "\n")
}
