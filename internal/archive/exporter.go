package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/minitweet/backend/internal/logging"
	"github.com/minitweet/backend/internal/metrics"
	"github.com/minitweet/backend/internal/models"
)

var (
	// ErrUnavailable is wrapped by every error that means the exporter cannot take work right now.
	ErrUnavailable = errors.New("timeline archive unavailable")
	// ErrQueueFull is returned by Enqueue when the job queue has no free slot.
	ErrQueueFull = fmt.Errorf("%w: queue full", ErrUnavailable)
	// ErrClosed is returned by Enqueue after Shutdown.
	ErrClosed = fmt.Errorf("%w: exporter closed", ErrUnavailable)
)

const jobTimeout = 30 * time.Second

// Storage persists an encoded archive under name and returns its location.
type Storage interface {
	Save(ctx context.Context, name string, body []byte, contentType string) (string, error)
}

// TimelineReader assembles the timeline to archive.
type TimelineReader interface {
	Get(ctx context.Context, userID string) (models.Timeline, error)
}

// Config controls the exporter's queue depth and concurrency.
type Config struct {
	QueueSize int
	Workers   int
}

// Result describes one finished export job.
type Result struct {
	UserID   string
	Key      string
	Location string
	Entries  int
	Err      error
}

// Exporter writes timeline snapshots to Storage from a bounded worker pool.
type Exporter struct {
	timelines TimelineReader
	storage   Storage
	logger    *slog.Logger

	// OnResult, when set before the first Enqueue, observes every finished job.
	OnResult func(Result)
	NowFunc  func() time.Time

	jobs   chan exportJob
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

type exportJob struct {
	userID    string
	requestID string
}

// NewExporter starts cfg.Workers goroutines consuming a queue of cfg.QueueSize jobs.
func NewExporter(timelines TimelineReader, storage Storage, cfg Config, logger *slog.Logger) *Exporter {
	if timelines == nil || storage == nil {
		panic("archive: timeline reader and storage must not be nil")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Exporter{
		timelines: timelines,
		storage:   storage,
		logger:    logger,
		jobs:      make(chan exportJob, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	e.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go e.worker()
	}

	return e
}

// Enqueue schedules an export of userID's timeline. It never blocks: a full
// queue yields ErrQueueFull.
func (e *Exporter) Enqueue(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("archive: user id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}

	select {
	case e.jobs <- exportJob{userID: userID, requestID: logging.RequestIDFromContext(ctx)}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, in-flight jobs are cancelled and ctx.Err() is returned.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.jobs)
		e.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	case <-done:
		e.cancel()
		return nil
	}
}

func (e *Exporter) worker() {
	defer e.wg.Done()

	for job := range e.jobs {
		res := e.export(job)
		outcome := "success"
		if res.Err != nil {
			outcome = "failure"
		}
		metrics.ArchiveExports.WithLabelValues(outcome).Inc()
		if e.OnResult != nil {
			e.OnResult(res)
		}
	}
}

func (e *Exporter) export(job exportJob) Result {
	ctx, cancel := context.WithTimeout(e.ctx, jobTimeout)
	defer cancel()

	logger := e.logger.With(slog.String("user_id", job.userID))
	if job.requestID != "" {
		logger = logger.With(slog.String("request_id", job.requestID))
	}
	ctx = logging.WithLogger(ctx, logger)
	ctx, span := logging.StartSpan(ctx, "archive.export")
	defer span.End()

	res := Result{UserID: job.userID, Key: Key(job.userID, e.now())}

	tl, err := e.timelines.Get(ctx, job.userID)
	if err != nil {
		res.Err = fmt.Errorf("read timeline: %w", err)
		logger.Error("timeline export failed", "error", res.Err)
		return res
	}
	if tl.Entries == nil {
		tl.Entries = []models.TimelineEntry{}
	}
	res.Entries = len(tl.Entries)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(tl); err != nil {
		res.Err = fmt.Errorf("encode timeline: %w", err)
		logger.Error("timeline export failed", "error", res.Err)
		return res
	}

	location, err := e.storage.Save(ctx, res.Key, buf.Bytes(), "application/json")
	if err != nil {
		res.Err = fmt.Errorf("save archive: %w", err)
		logger.Error("timeline export failed", "key", res.Key, "error", res.Err)
		return res
	}
	res.Location = location

	logger.Info("timeline exported", "key", res.Key, "location", location, "entries", res.Entries)
	return res
}

// Key is the object name of a snapshot of userID's timeline taken at t.
func Key(userID string, t time.Time) string {
	return path.Join("timelines", userID, strconv.FormatInt(t.UnixNano(), 10)+".json")
}

func (e *Exporter) now() time.Time {
	if e.NowFunc != nil {
		return e.NowFunc()
	}
	return time.Now().UTC()
}
