// Package logger implements the interaction logging pipeline: it buffers
// records captured from attached visualization surfaces and periodically
// ships them as one JSON batch to a collection endpoint.
//
// Records accumulate in two live buffers (interactions, pointer samples).
// On each timer tick the buffers are swapped into a staging pair and the
// staged batch is delivered with bounded retry. At most one staging pair is
// ever non-empty: a tick that fires while a batch is in flight is a no-op
// and new records keep accumulating in the live buffers. Exhausted retries
// or a transport-level failure permanently halt the flush loop; capture
// continues but nothing further is sent.
package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/vislab/vislog/internal/models"
	"github.com/vislab/vislog/internal/throttle"
	"github.com/vislab/vislog/internal/transport"
)

// Defaults for Options fields left zero.
const (
	DefaultURL           = "http://127.0.0.1:8123/log"
	DefaultFlushInterval = 10 * time.Second
	DefaultMouseInterval = 50 * time.Millisecond
	DefaultMaxAttempts   = 3

	DefaultGestureSignal    = "brushState"
	DefaultBrushSignal      = "brush"
	DefaultPixelBrushSignal = "pixelBrush"
)

// Sender delivers one serialized batch. A nil return confirms delivery, a
// *transport.StatusError marks a retryable rejection, and any other error is
// a transport-level failure.
type Sender interface {
	Send(ctx context.Context, url string, body []byte) error
}

type state int

const (
	stateIdle state = iota
	stateDraining
	stateHalted
)

// Options configures a Logger. All fields are optional.
type Options struct {
	UserID string
	TaskID string
	// URL is the collection endpoint batches are POSTed to.
	URL string
	// LogFields and MouseLogFields override the schema descriptions sent
	// alongside the records.
	LogFields      []string
	MouseLogFields []string
	// FlushInterval is the period of the flush timer.
	FlushInterval time.Duration
	// MouseInterval is the minimum spacing between pointer samples.
	MouseInterval time.Duration
	// MaxAttempts bounds delivery attempts per batch.
	MaxAttempts int

	// Signal names exposed by attached surfaces.
	GestureSignal    string
	BrushSignal      string
	PixelBrushSignal string

	// Clock and Sender are injected in tests.
	Clock  quartz.Clock
	Sender Sender
	Logger *log.Logger
}

// Logger owns the record buffers and the flush lifecycle. One Logger serves
// one page session and one destination endpoint.
type Logger struct {
	userID         string
	taskID         string
	url            string
	logFields      []string
	mouseLogFields []string
	mouseInterval  time.Duration
	maxAttempts    int

	gestureSignal    string
	brushSignal      string
	pixelBrushSignal string

	clock  quartz.Clock
	sender Sender
	logger *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	flushDone chan struct{}

	mu                 sync.Mutex
	state              state
	interactions       []models.InteractionRecord
	pointers           []models.PointerRecord
	stagedInteractions []models.InteractionRecord
	stagedPointers     []models.PointerRecord
	limiters           []*throttle.Limiter[PointerEvent]
}

// New creates a Logger and starts its periodic flush timer. The caller must
// Close it to stop the timer.
func New(opts Options) *Logger {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.LogFields == nil {
		opts.LogFields = models.DefaultLogFields
	}
	if opts.MouseLogFields == nil {
		opts.MouseLogFields = models.DefaultMouseLogFields
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.MouseInterval <= 0 {
		opts.MouseInterval = DefaultMouseInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.GestureSignal == "" {
		opts.GestureSignal = DefaultGestureSignal
	}
	if opts.BrushSignal == "" {
		opts.BrushSignal = DefaultBrushSignal
	}
	if opts.PixelBrushSignal == "" {
		opts.PixelBrushSignal = DefaultPixelBrushSignal
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Sender == nil {
		opts.Sender = transport.NewClient(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Logger{
		userID:           opts.UserID,
		taskID:           opts.TaskID,
		url:              opts.URL,
		logFields:        opts.LogFields,
		mouseLogFields:   opts.MouseLogFields,
		mouseInterval:    opts.MouseInterval,
		maxAttempts:      opts.MaxAttempts,
		gestureSignal:    opts.GestureSignal,
		brushSignal:      opts.BrushSignal,
		pixelBrushSignal: opts.PixelBrushSignal,
		clock:            opts.Clock,
		sender:           opts.Sender,
		logger:           opts.Logger,
		ctx:              ctx,
		cancel:           cancel,
		flushDone:        make(chan struct{}),
	}
	go l.run(opts.FlushInterval)
	return l
}

// run drives the periodic flush until the logger is closed or halted.
func (l *Logger) run(interval time.Duration) {
	defer close(l.flushDone)
	tkr := l.clock.TickerFunc(l.ctx, interval, l.flushOnce, "vislog", "flush")
	_ = tkr.Wait()
}

// flushOnce matches the signature expected by TickerFunc. Halting is
// signalled by cancelling the ticker context, not by returning an error.
func (l *Logger) flushOnce() error {
	l.flush()
	return nil
}

// flush moves the live buffers to staging and delivers the staged batch. It
// is a no-op while a previous batch is still draining, after the pipeline
// has halted, and when there is nothing to send. Delivery runs outside the
// mutex so in-flight sends never block capture.
func (l *Logger) flush() {
	l.mu.Lock()
	switch l.state {
	case stateHalted:
		l.mu.Unlock()
		return
	case stateDraining:
		// The previous batch is still in flight. New records keep
		// accumulating in the live buffers and ride the next flush.
		l.logger.Printf("flush skipped: delivery in progress")
		l.mu.Unlock()
		return
	}
	if len(l.interactions) == 0 && len(l.pointers) == 0 {
		l.mu.Unlock()
		return
	}
	l.stagedInteractions, l.interactions = l.interactions, nil
	l.stagedPointers, l.pointers = l.pointers, nil
	l.state = stateDraining
	batch := models.Batch{
		UserID:         l.userID,
		TaskID:         l.taskID,
		Log:            l.stagedInteractions,
		LogFields:      l.logFields,
		MouseLog:       l.stagedPointers,
		MouseLogFields: l.mouseLogFields,
	}
	l.mu.Unlock()

	if err := l.deliver(batch); err != nil {
		l.halt(err)
		return
	}

	l.mu.Lock()
	l.stagedInteractions = nil
	l.stagedPointers = nil
	l.state = stateIdle
	l.mu.Unlock()
}

// deliver serializes the batch once and POSTs it, retrying rejected sends
// with the identical body up to the attempt bound. Transport-level errors
// are not retried.
func (l *Logger) deliver(batch models.Batch) error {
	if batch.Log == nil {
		batch.Log = []models.InteractionRecord{}
	}
	if batch.MouseLog == nil {
		batch.MouseLog = []models.PointerRecord{}
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err := l.sender.Send(l.ctx, l.url, body)
		if err == nil {
			return nil
		}
		var statusErr *transport.StatusError
		if !errors.As(err, &statusErr) {
			return fmt.Errorf("send batch: %w", err)
		}
		l.logger.Printf("batch rejected (attempt %d of %d): %v", attempt, l.maxAttempts, err)
		if attempt >= l.maxAttempts {
			return fmt.Errorf("delivery failed after %d attempts: %w", l.maxAttempts, err)
		}
	}
}

// halt permanently disables flushing. The staged batch stays in staging and
// is never resent; capture keeps appending to the live buffers.
func (l *Logger) halt(err error) {
	l.mu.Lock()
	l.state = stateHalted
	l.mu.Unlock()
	l.logger.Printf("interaction logging halted, staged records dropped: %v", err)
	l.cancel()
}

// HasUnsentData triggers an immediate flush attempt, then reports whether
// any buffered or staged records remain. Page-unload handlers use it to
// force one last delivery and learn whether anything is still pending.
func (l *Logger) HasUnsentData() bool {
	l.flush()
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.interactions) > 0 || len(l.pointers) > 0 ||
		len(l.stagedInteractions) > 0 || len(l.stagedPointers) > 0
}

// Close stops the flush timer and any scheduled pointer samples, then waits
// for the flush goroutine to exit. It does not attempt a final delivery;
// callers that care should check HasUnsentData first.
func (l *Logger) Close() {
	l.mu.Lock()
	limiters := l.limiters
	l.limiters = nil
	l.mu.Unlock()
	for _, lim := range limiters {
		lim.Stop()
	}
	l.cancel()
	<-l.flushDone
}

// appendInteraction stamps the record with the current time and buffers it.
// The timestamp always comes from the logger's clock, never the caller.
func (l *Logger) appendInteraction(rec models.InteractionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec.Timestamp = l.clock.Now().UnixMilli()
	l.interactions = append(l.interactions, rec)
}

// appendPointer buffers one pointer-position sample.
func (l *Logger) appendPointer(x, y float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pointers = append(l.pointers, models.PointerRecord{
		Name:      models.KindMouse,
		Timestamp: l.clock.Now().UnixMilli(),
		PageX:     x,
		PageY:     y,
	})
}
