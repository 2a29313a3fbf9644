package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/flow"
	"github.com/hupe1980/toolagent/logging"
	"github.com/hupe1980/toolagent/session"
)

// ErrEmptyInput is returned when the user message is blank.
var ErrEmptyInput = errors.New("empty user input")

// Agent is the conversational surface the runner drives; *agent.Agent
// satisfies it.
type Agent interface {
	Name() string
	Run(ctx context.Context, conv core.Conversation, optFns ...func(o *flow.RunOptions)) (*flow.Result, error)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits concurrent runs across all threads; 0 means
	// unlimited.
	MaxConcurrentRuns int
	// Store persists threads, default in-memory.
	Store  core.ThreadStore
	Logger logging.Logger
}

// Runner answers user messages on persisted threads: it serializes runs per
// thread, replays the stored conversation and commits every step so an
// interrupted run can be resumed. Public methods are safe for concurrent use.
type Runner struct {
	agent  Agent
	store  core.ThreadStore
	logger logging.Logger
	sem    chan struct{}

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(agent Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}

	r := &Runner{
		agent:      agent,
		store:      opts.Store,
		logger:     opts.Logger,
		activeRuns: make(map[string]context.CancelFunc),
	}
	if opts.MaxConcurrentRuns > 0 {
		r.sem = make(chan struct{}, opts.MaxConcurrentRuns)
	}
	return r
}

// Store returns the thread store.
func (r *Runner) Store() core.ThreadStore { return r.store }

// Run appends userText to the thread and drives the agent until it answers.
// Each step is committed to the store before the next model call.
func (r *Runner) Run(ctx context.Context, threadID, userText string) (*flow.Result, error) {
	if userText == "" {
		return nil, ErrEmptyInput
	}

	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	runID := core.NewID()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}()

	unlock, err := r.store.Lock(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock thread: %w", err)
	}
	defer unlock()

	thread, err := r.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	conv := thread.Messages
	if pending := conv.PendingCalls(); len(pending) > 0 {
		// A previous run stopped between a tool-call request and its results.
		r.logger.Warn("runner.run.resume", "run_id", runID, "thread_id", threadID, "pending", len(pending))
		res, err := r.runAgent(ctx, runID, threadID, conv)
		if err != nil {
			return nil, fmt.Errorf("failed to resume thread: %w", err)
		}
		conv = append(conv, res.Messages...)
	}

	user := core.NewUserContent(userText)
	if err := r.store.Append(ctx, threadID, user); err != nil {
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}
	return r.runAgent(ctx, runID, threadID, append(conv, user))
}

func (r *Runner) runAgent(ctx context.Context, runID, threadID string, conv core.Conversation) (*flow.Result, error) {
	start := time.Now()
	r.logger.Info("runner.run.start", "run_id", runID, "thread_id", threadID, "agent", r.agent.Name(), "history", len(conv))

	res, err := r.agent.Run(ctx, conv, func(o *flow.RunOptions) {
		o.RunID = runID
		o.ThreadID = threadID
		o.OnCommit = func(ctx context.Context, msgs []core.Content) error {
			return r.store.Append(ctx, threadID, msgs...)
		}
	})
	if err != nil {
		r.logger.Error("runner.run.failed", "run_id", runID, "thread_id", threadID, "error", err.Error())
		return nil, err
	}

	r.logger.Info("runner.run.complete", "run_id", runID, "thread_id", threadID, "steps", res.Steps, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// History returns the stored conversation of a thread.
func (r *Runner) History(ctx context.Context, threadID string) (core.Conversation, error) {
	thread, err := r.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return thread.Messages, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// ActiveRuns returns the ids of runs in progress.
func (r *Runner) ActiveRuns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	return ids
}
