// Package conversation coordinates a chat turn: classify the utterance, fetch
// the user's scoped billing data, compose a prompt, call the completion
// service, and append the exchange to durable history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opopescu/billchat/internal/chat"
	"github.com/opopescu/billchat/internal/comparison"
	"github.com/opopescu/billchat/internal/intent"
	"github.com/opopescu/billchat/internal/llm"
	"github.com/opopescu/billchat/internal/metrics"
	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage"
)

// ErrTurnInFlight is returned when a turn for the same user is already
// awaiting completion. Distinct users are never blocked by each other.
var ErrTurnInFlight = errors.New("a turn for this session is already in progress")

// DefaultCompletionTimeout bounds the external completion call. Expiry aborts
// the turn only; persisted context is left untouched.
const DefaultCompletionTimeout = 30 * time.Second

// Reply is the per-turn result handed back to the UI boundary.
type Reply struct {
	AssistantText string

	// MessageCount is the total persisted history length after the turn.
	MessageCount int

	// UpdatedAt is the Unix timestamp of the last appended message.
	UpdatedAt int64
}

// Orchestrator runs the per-turn pipeline. One orchestrator serves all
// sessions; per-user mutexes enforce a single turn in flight per session.
type Orchestrator struct {
	store      storage.Store
	contexts   *chat.Manager
	engine     *comparison.Engine
	classifier intent.Classifier
	completer  llm.Completer

	window  int
	timeout time.Duration

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWindow overrides how many trailing messages go into the prompt.
func WithWindow(n int) Option {
	return func(o *Orchestrator) { o.window = n }
}

// WithCompletionTimeout overrides the external call timeout.
func WithCompletionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithClassifier swaps the intent classifier.
func WithClassifier(c intent.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// New creates an orchestrator over the given collaborators.
func New(store storage.Store, engine *comparison.Engine, completer llm.Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		contexts:   chat.NewManager(store),
		engine:     engine,
		classifier: intent.KeywordClassifier{},
		completer:  completer,
		window:     chat.DefaultWindow,
		timeout:    DefaultCompletionTimeout,
		sessions:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) sessionLock(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.sessions[userID]
	if !ok {
		lock = &sync.Mutex{}
		o.sessions[userID] = lock
	}
	return lock
}

// HandleTurn processes one user utterance end to end.
//
// On any failure nothing is appended: the persisted context after a failed
// turn equals the persisted context before it, so the caller may retry the
// same turn.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, utterance string) (*Reply, error) {
	lock := o.sessionLock(userID)
	if !lock.TryLock() {
		metrics.TurnsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, ErrTurnInFlight
	}
	defer lock.Unlock()

	kind := o.classifier.Classify(utterance)
	slog.Debug("Turn classified", "user_id", userID, "intent", kind.String())

	reply, err := o.runTurn(ctx, userID, utterance, kind)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(kind.String(), outcomeOf(err)).Inc()
		return nil, err
	}
	metrics.TurnsTotal.WithLabelValues(kind.String(), "ok").Inc()
	return reply, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, userID, utterance string, kind intent.Kind) (*Reply, error) {
	// Profile load doubles as first-contact registration.
	profile, err := o.store.LoadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	conv, err := o.contexts.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := o.fetch(ctx, userID, utterance, kind)
	if err != nil {
		return nil, err
	}

	prompt := composePrompt(profile, chat.Window(conv.Messages, o.window), data, utterance)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	answer, err := o.completer.Complete(callCtx, prompt)
	metrics.CompletionSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Warn("Completion failed", "user_id", userID, "error", err)
		return nil, err
	}

	now := time.Now().Unix()
	exchange := []models.Message{
		{Role: models.RoleUser, Text: utterance, CreatedAt: now},
		{Role: models.RoleAssistant, Text: answer, CreatedAt: now},
	}
	if err := o.contexts.Persist(ctx, userID, exchange); err != nil {
		return nil, err
	}
	for _, msg := range exchange {
		chat.Append(conv, msg)
	}

	return &Reply{
		AssistantText: answer,
		MessageCount:  len(conv.Messages),
		UpdatedAt:     now,
	}, nil
}

// fetch retrieves the scoped billing data for the turn and renders it as
// structured text. Scope enforcement lives in the stores; nothing here can
// widen a query past the single user ID.
func (o *Orchestrator) fetch(ctx context.Context, userID, utterance string, kind intent.Kind) (string, error) {
	if kind == intent.ComparisonQuery {
		result, err := o.engine.Compare(ctx, userID)
		if err != nil {
			return "", err
		}
		return renderComparison(result), nil
	}

	bills, err := o.store.GetBills(ctx, userID)
	if err != nil {
		return "", err
	}
	if period := intent.ParsePeriod(utterance, time.Now()); period != nil {
		filtered := bills[:0:0]
		for _, bill := range bills {
			if period.Covers(bill.PeriodEnd) {
				filtered = append(filtered, bill)
			}
		}
		if len(filtered) > 0 {
			return fmt.Sprintf("Bills for the requested period:\n%s", renderBills(filtered)), nil
		}
		return fmt.Sprintf("No bills found for the requested period. Full history:\n%s", renderBills(bills)), nil
	}
	return renderBills(bills), nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, llm.ErrCompletion):
		return "completion_error"
	case errors.Is(err, storage.ErrPersistence):
		return "persist_error"
	default:
		return "fetch_error"
	}
}
