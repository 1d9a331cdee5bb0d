package usecase

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/kirillkom/neurovision/internal/core/ports"
)

const (
	DefaultRequestTimeout = 30 * time.Second

	outcomeSucceeded = "succeeded"
	outcomeTransport = "transport_failure"
	outcomeMalformed = "malformed_response"
	outcomeStale     = "stale"

	publishTimeout = 5 * time.Second
)

type SessionOptions struct {
	// RequestTimeout bounds one submission, including SubmitDelay.
	RequestTimeout time.Duration
	// SubmitDelay is an optional pause before the request is sent.
	SubmitDelay             time.Duration
	HighConfidenceThreshold float64

	SessionID string
	Publisher ports.OutcomePublisher
	Observer  ports.SessionObserver
	Logger    *slog.Logger
	Now       func() time.Time
}

// attempt tracks one submission. done is closed once the attempt is either
// applied to the session or superseded by a later intent.
type attempt struct {
	generation uint64
	number     uint64
	done       chan struct{}
	once       sync.Once
}

func (a *attempt) settle() {
	a.once.Do(func() { close(a.done) })
}

// DiagnosticSessionController owns one diagnostic session. Every intent
// runs under mu; the inference call runs on its own goroutine and is applied
// only if the session generation is unchanged when it returns.
type DiagnosticSessionController struct {
	inference ports.ImageInferenceService
	previews  ports.PreviewStore
	publisher ports.OutcomePublisher
	observer  ports.SessionObserver
	logger    *slog.Logger
	now       func() time.Time

	sessionID string
	timeout   time.Duration
	delay     time.Duration
	threshold float64

	mu           sync.Mutex
	phase        domain.Phase
	generation   uint64
	revision     uint64
	attempts     uint64
	inflight     *attempt
	listeners    map[uint64]func(domain.Snapshot)
	nextListener uint64

	background sync.WaitGroup
}

func NewDiagnosticSessionController(
	inference ports.ImageInferenceService,
	previews ports.PreviewStore,
	opts SessionOptions,
) *DiagnosticSessionController {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.SubmitDelay < 0 {
		opts.SubmitDelay = 0
	}
	if opts.HighConfidenceThreshold <= 0 || opts.HighConfidenceThreshold >= 1 {
		opts.HighConfidenceThreshold = domain.DefaultHighConfidenceThreshold
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &DiagnosticSessionController{
		inference: inference,
		previews:  previews,
		publisher: opts.Publisher,
		observer:  opts.Observer,
		logger:    opts.Logger.With("session_id", opts.SessionID),
		now:       opts.Now,
		sessionID: opts.SessionID,
		timeout:   opts.RequestTimeout,
		delay:     opts.SubmitDelay,
		threshold: opts.HighConfidenceThreshold,
		phase:     domain.Idle{},
		listeners: make(map[uint64]func(domain.Snapshot)),
	}
}

// SelectFile replaces whatever the session holds with image. It is valid in
// every state. The previous preview is released before a new one is
// acquired; if acquisition fails the session is left Idle.
func (c *DiagnosticSessionController) SelectFile(ctx context.Context, image domain.SelectedImage) error {
	image.Data = bytes.Clone(image.Data)

	c.mu.Lock()
	c.discardSelectionLocked(ctx)

	handle, err := c.previews.Acquire(ctx, image)
	if err != nil {
		c.setPhaseLocked(domain.Idle{})
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Warn("preview_acquire_failed", "filename", image.Filename, "error", err)
		c.notify(snap)
		return domain.WrapError(domain.ErrPreviewUnavailable, "select file", err)
	}
	c.observer.PreviewAcquired()

	c.setPhaseLocked(domain.FileSelected{Selection: domain.Selection{Image: image, Preview: handle}})
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Submit starts one inference request for the selected image. It returns
// false and does nothing unless the session is in FileSelected, so a second
// call while a request is in flight never issues another request.
func (c *DiagnosticSessionController) Submit(ctx context.Context) bool {
	c.mu.Lock()
	selected, ok := c.phase.(domain.FileSelected)
	if !ok {
		state := c.phase.State()
		c.mu.Unlock()
		c.logger.Debug("submit_ignored", "state", state)
		return false
	}

	c.generation++
	c.attempts++
	att := &attempt{
		generation: c.generation,
		number:     c.attempts,
		done:       make(chan struct{}),
	}
	c.inflight = att
	startedAt := c.now()
	c.setPhaseLocked(domain.Submitting{
		Selection:  selected.Selection,
		Generation: att.generation,
		StartedAt:  startedAt,
	})
	snap := c.snapshotLocked()
	c.background.Add(1)
	c.mu.Unlock()

	c.observer.AttemptStarted()
	c.notify(snap)

	go c.run(context.WithoutCancel(ctx), att, selected.Image, startedAt)
	return true
}

// Reset releases the preview and returns the session to Idle. From Idle it
// changes nothing.
func (c *DiagnosticSessionController) Reset(ctx context.Context) {
	c.mu.Lock()
	if _, idle := c.phase.(domain.Idle); idle {
		c.mu.Unlock()
		return
	}
	c.discardSelectionLocked(ctx)
	c.setPhaseLocked(domain.Idle{})
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *DiagnosticSessionController) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// WaitSettled blocks until the current attempt, if any, has been applied or
// superseded.
func (c *DiagnosticSessionController) WaitSettled(ctx context.Context) error {
	c.mu.Lock()
	att := c.inflight
	c.mu.Unlock()
	if att == nil {
		return nil
	}

	select {
	case <-att.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a listener called with a snapshot after every
// transition. Listeners run outside the controller lock, possibly
// concurrently; Snapshot.Revision orders them.
func (c *DiagnosticSessionController) Subscribe(listener func(domain.Snapshot)) func() {
	if listener == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = listener
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close resets the session and waits for background requests to return.
func (c *DiagnosticSessionController) Close(ctx context.Context) error {
	c.Reset(ctx)

	done := make(chan struct{})
	go func() {
		c.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *DiagnosticSessionController) run(ctx context.Context, att *attempt, image domain.SelectedImage, startedAt time.Time) {
	defer c.background.Done()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		if !c.isCurrent(att) {
			c.discardStale(att, startedAt)
			return
		}
	}

	raw, err := c.inference.Predict(ctx, image)
	var result domain.PredictionResult
	if err == nil {
		result, err = domain.ParsePrediction(raw)
	}
	c.complete(ctx, att, startedAt, result, err)
}

func (c *DiagnosticSessionController) complete(
	ctx context.Context,
	att *attempt,
	startedAt time.Time,
	result domain.PredictionResult,
	err error,
) {
	c.mu.Lock()
	current, ok := c.phase.(domain.Submitting)
	if !ok || current.Generation != att.generation {
		c.mu.Unlock()
		c.discardStale(att, startedAt)
		return
	}

	finishedAt := c.now()
	duration := finishedAt.Sub(startedAt)
	outcome := domain.Outcome{
		SessionID:  c.sessionID,
		Attempt:    att.number,
		Filename:   current.Image.Filename,
		DurationMS: float64(duration.Microseconds()) / 1000.0,
		FinishedAt: finishedAt.UTC(),
	}

	label := outcomeSucceeded
	if err != nil {
		kind := domain.ClassifyFailure(err)
		label = outcomeTransport
		if kind == domain.FailureMalformed {
			label = outcomeMalformed
		}
		c.setPhaseLocked(domain.Failed{
			Selection: current.Selection,
			Message:   domain.CommunicationFailureMessage,
			Kind:      kind,
		})
		outcome.State = domain.StateFailed
		outcome.FailureKind = kind
	} else {
		c.setPhaseLocked(domain.Succeeded{Selection: current.Selection, Result: result})
		outcome.State = domain.StateSucceeded
		outcome.TumorClass = result.TumorClass
		outcome.Confidence = result.Confidence
	}
	c.inflight = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	att.settle()

	if err != nil {
		c.logger.Warn("diagnostic_attempt_failed",
			"attempt", att.number,
			"failure_kind", string(outcome.FailureKind),
			"duration_ms", outcome.DurationMS,
			"error", err,
		)
	} else {
		c.logger.Info("diagnostic_attempt_succeeded",
			"attempt", att.number,
			"tumor_class", result.TumorClass,
			"confidence", result.Confidence,
			"duration_ms", outcome.DurationMS,
		)
	}
	c.notify(snap)
	c.publish(ctx, outcome)
	c.observer.AttemptFinished(label, duration)
}

func (c *DiagnosticSessionController) discardStale(att *attempt, startedAt time.Time) {
	c.logger.Debug("stale_response_discarded", "attempt", att.number, "generation", att.generation)
	c.observer.AttemptFinished(outcomeStale, c.now().Sub(startedAt))
}

func (c *DiagnosticSessionController) isCurrent(att *attempt) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == att.generation
}

func (c *DiagnosticSessionController) publish(ctx context.Context, outcome domain.Outcome) {
	if c.publisher == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.publisher.PublishOutcome(publishCtx, outcome); err != nil {
		c.logger.Warn("outcome_publish_failed", "attempt", outcome.Attempt, "error", err)
	}
}

// discardSelectionLocked releases the current preview, if any, and
// invalidates the in-flight attempt. Callers must set a new phase.
func (c *DiagnosticSessionController) discardSelectionLocked(ctx context.Context) {
	if sel, ok := domain.SelectionOf(c.phase); ok {
		if err := c.previews.Release(ctx, sel.Preview); err != nil {
			c.logger.Warn("preview_release_failed", "preview_id", sel.Preview.ID, "error", err)
		}
		c.observer.PreviewReleased()
	}
	c.generation++
	if c.inflight != nil {
		c.inflight.settle()
		c.inflight = nil
	}
}

func (c *DiagnosticSessionController) setPhaseLocked(next domain.Phase) {
	prev := c.phase.State()
	c.phase = next
	c.revision++
	c.logger.Debug("session_transition", "from", prev, "to", next.State(), "revision", c.revision)
}

func (c *DiagnosticSessionController) snapshotLocked() domain.Snapshot {
	return domain.NewSnapshot(c.sessionID, c.revision, c.phase, c.threshold)
}

func (c *DiagnosticSessionController) notify(snap domain.Snapshot) {
	c.mu.Lock()
	listeners := make([]func(domain.Snapshot), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

type noopObserver struct{}

func (noopObserver) AttemptStarted()                       {}
func (noopObserver) AttemptFinished(string, time.Duration) {}
func (noopObserver) PreviewAcquired()                      {}
func (noopObserver) PreviewReleased()                      {}
