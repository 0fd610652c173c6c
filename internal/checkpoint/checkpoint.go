package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inngest/inngestgo/internal/opcode"
)

// Config controls how steps are batched before being reported.
type Config struct {
	// BatchSteps flushes the buffer as soon as it holds this many steps.
	BatchSteps int
	// BatchInterval flushes the buffer this long after its first step was
	// buffered, even if BatchSteps hasn't been reached. Zero disables the
	// timer, so only BatchSteps (or Close) ever flushes.
	BatchInterval time.Duration
}

// Opts configures a Checkpointer.
type Opts struct {
	Config Config

	// APIBaseURL overrides where checkpoints are reported; empty resolves
	// from the environment per request.
	APIBaseURL string

	SigningKey         string
	SigningKeyFallback string

	// RunID/FnID/QueueItemRef identify the run every buffered step belongs
	// to, stamped onto each AsyncRequest this Checkpointer sends.
	RunID        string
	FnID         uuid.UUID
	QueueItemRef string
}

// Checkpointer batches completed steps and reports them to the orchestrator
// asynchronously, so a step response never blocks on the report.
type Checkpointer interface {
	// WithStep queues step for reporting. done is invoked with the full
	// batch step belonged to (and any reporting error) once that batch is
	// flushed, by timer, by filling up, or never, if the Checkpointer is
	// closed first.
	WithStep(ctx context.Context, step opcode.Step, done func([]opcode.Step, error))
	// Close stops the pending flush timer, if any, and discards any steps
	// that were buffered but never reported.
	Close()
}

// New returns a Checkpointer that reports via a Client built from opts.
func New(opts Opts) Checkpointer {
	client := NewClient(opts.SigningKey, opts.SigningKeyFallback)
	client.SetBaseURL(opts.APIBaseURL)

	return &checkpointer{
		config:       opts.Config,
		client:       client,
		runID:        opts.RunID,
		fnID:         opts.FnID,
		queueItemRef: opts.QueueItemRef,
	}
}

type pendingStep struct {
	done func([]opcode.Step, error)
}

type checkpointer struct {
	config Config
	client *Client

	runID        string
	fnID         uuid.UUID
	queueItemRef string

	lock    sync.Mutex
	buffer  []opcode.Step
	pending []pendingStep
	timer   *time.Timer
	closed  bool
}

func (c *checkpointer) WithStep(ctx context.Context, step opcode.Step, done func([]opcode.Step, error)) {
	c.lock.Lock()

	if c.closed {
		c.lock.Unlock()
		if done != nil {
			done(nil, fmt.Errorf("checkpointer is closed"))
		}
		return
	}

	c.buffer = append(c.buffer, step)
	c.pending = append(c.pending, pendingStep{done: done})

	if len(c.buffer) < c.config.BatchSteps || c.config.BatchSteps <= 0 {
		if c.timer == nil && c.config.BatchInterval > 0 {
			c.timer = time.AfterFunc(c.config.BatchInterval, c.flushTimer)
		}
		c.lock.Unlock()
		return
	}

	batch, callbacks := c.drainLocked()
	c.lock.Unlock()
	c.flush(ctx, batch, callbacks)
}

func (c *checkpointer) flushTimer() {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	batch, callbacks := c.drainLocked()
	c.lock.Unlock()
	c.flush(context.Background(), batch, callbacks)
}

// drainLocked empties the buffer and returns what it held. Callers must
// hold c.lock.
func (c *checkpointer) drainLocked() ([]opcode.Step, []pendingStep) {
	batch := c.buffer
	callbacks := c.pending
	c.buffer = nil
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return batch, callbacks
}

func (c *checkpointer) flush(ctx context.Context, batch []opcode.Step, callbacks []pendingStep) {
	if len(batch) == 0 {
		return
	}

	err := c.client.Checkpoint(ctx, AsyncRequest{
		RunID:        c.runID,
		FnID:         c.fnID,
		QueueItemRef: c.queueItemRef,
		Steps:        batch,
	})
	for _, p := range callbacks {
		if p.done != nil {
			p.done(batch, err)
		}
	}
}

func (c *checkpointer) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.buffer = nil
	c.pending = nil
}
