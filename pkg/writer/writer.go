// Package writer streams rows to a delimited text file on a background
// goroutine. A save can be paused, resumed and cancelled between rows, and
// reports how it ended through a Completion.
//
//	w, err := writer.NewBuilder().SaveTo(path).From(src).WriteHeaderIfFileAbsent().Build()
//	if err != nil {
//	    return err
//	}
//	done, err := w.Start(ctx)
//	...
//	w.Pause()
//	w.Resume()
//	if err := done.Wait(ctx); err != nil {
//	    // the file could not be written
//	}
package writer

import (
	"context"
	"encoding/csv"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/compression"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
	"github.com/kscrap/kscrap/pkg/logger"
	"github.com/kscrap/kscrap/pkg/metrics"
	"github.com/kscrap/kscrap/pkg/observability"
)

// Source yields the rows to write.
type Source interface {
	// Header returns the column names.
	Header() []string
	// Next returns the next row, or false when there are no more rows.
	Next() ([]string, bool)
}

// Listener receives lifecycle callbacks. Any field may be nil.
// OnCompleted runs for every outcome, before the Completion resolves.
type Listener struct {
	OnStarted   func(c *Completion)
	OnCompleted func(outcome Outcome, rows int)
	OnError     func(err error)
}

// StreamWriter writes the rows of a Source to a file. It is single-use.
type StreamWriter struct {
	path      string
	target    string
	source    Source
	separator rune
	header    bool
	alg       compression.Algorithm
	level     compression.Level
	listener  Listener
	rowHook   func(rows int)
	logger    *zap.Logger
	progress  int

	mu         sync.Mutex
	cond       *sync.Cond
	state      State
	cancelled  bool
	rows       int
	completion *Completion
}

// Start begins writing on a new goroutine. Cancelling ctx cancels the save.
// A writer can be started once.
func (w *StreamWriter) Start(ctx context.Context) (*Completion, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	w.mu.Lock()
	if w.state != StateIdle {
		state := w.state
		w.mu.Unlock()
		return nil, kscraperrors.New(kscraperrors.ErrorTypeConcurrency, "writer already started").
			WithDetail("state", state.String())
	}
	w.state = StateWriting
	w.completion = newCompletion(uuid.NewString())
	c := w.completion
	w.mu.Unlock()

	if w.listener.OnStarted != nil {
		w.listener.OnStarted(c)
	}

	stop := context.AfterFunc(ctx, w.Cancel)
	go w.run(ctx, c, stop)
	return c, nil
}

// Save writes every row and blocks until the save ends.
func (w *StreamWriter) Save(ctx context.Context) error {
	c, err := w.Start(ctx)
	if err != nil {
		return err
	}
	<-c.Done()
	return c.Err()
}

// Pause stops the writer before the next row. It has no effect unless writing.
func (w *StreamWriter) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateWriting {
		w.state = StatePaused
		w.logger.Debug("save paused", zap.String("path", w.path), zap.Int("rows", w.rows))
	}
}

// Resume continues a paused writer. It has no effect unless paused.
func (w *StreamWriter) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StatePaused {
		w.state = StateWriting
		w.cond.Broadcast()
		w.logger.Debug("save resumed", zap.String("path", w.path), zap.Int("rows", w.rows))
	}
}

// Cancel stops the writer before the next row. It has no effect unless
// writing or paused.
func (w *StreamWriter) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateWriting || w.state == StatePaused {
		w.cancelled = true
		w.state = StateCancelled
		w.cond.Broadcast()
	}
}

// State returns the current state.
func (w *StreamWriter) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// RowsWritten returns the number of data rows flushed so far.
func (w *StreamWriter) RowsWritten() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Path returns the output file.
func (w *StreamWriter) Path() string { return w.path }

func (w *StreamWriter) run(ctx context.Context, c *Completion, stop func() bool) {
	defer stop()

	ctx = logger.WithSaveID(ctx, c.ID())
	_, span := observability.NewSpan(ctx, "writer.save")
	span.SetAttribute("path", w.path)
	span.SetAttribute("save_id", c.ID())
	span.SetAttribute("compression", string(w.alg))

	log := logger.FromContext(ctx, w.logger).With(zap.String("path", w.path))
	log.Debug("save started", zap.Bool("header", w.header))
	timer := metrics.NewTimer()

	stopped, err := w.drain(log)

	outcome := OutcomeCompleted
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case stopped:
		outcome = OutcomeCancelled
	}

	rows := w.finish(outcome)
	metrics.Saves.WithLabelValues(w.target, outcome.String()).Inc()
	metrics.SaveDuration.WithLabelValues(w.target).Observe(timer.Stop().Seconds())

	if err != nil {
		log.Error("save failed", zap.Int("rows", rows), zap.Error(err))
		if w.listener.OnError != nil {
			w.listener.OnError(err)
		}
	} else {
		log.Info("save finished",
			zap.Stringer("outcome", outcome),
			zap.Int("rows", rows),
			zap.Duration("elapsed", span.Elapsed()))
	}
	if w.listener.OnCompleted != nil {
		w.listener.OnCompleted(outcome, rows)
	}

	span.SetAttribute("rows", rows)
	span.SetAttribute("outcome", outcome)
	span.End(err)

	c.resolve(outcome, rows, err)
}

// drain writes the header and rows. stopped is true when a cancel ended it.
func (w *StreamWriter) drain(log *zap.Logger) (stopped bool, err error) {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // path is validated by the builder
	if err != nil {
		return false, kscraperrors.Wrap(err, kscraperrors.ErrorTypeFile, "failed to open output file").
			WithDetail("path", w.path)
	}

	sink, err := compression.NewWriter(f, w.alg, w.level)
	if err != nil {
		_ = f.Close()
		return false, err
	}

	cw := csv.NewWriter(sink)
	cw.Comma = w.separator

	stopped, err = w.writeRows(cw, sink, log)

	if cerr := sink.Close(); cerr != nil && err == nil {
		err = kscraperrors.Wrap(cerr, kscraperrors.ErrorTypeFile, "failed to finish compressed stream").
			WithDetail("path", w.path)
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = kscraperrors.Wrap(cerr, kscraperrors.ErrorTypeFile, "failed to close output file").
			WithDetail("path", w.path)
	}
	return stopped, err
}

func (w *StreamWriter) writeRows(cw *csv.Writer, sink compression.Writer, log *zap.Logger) (bool, error) {
	if w.header {
		if header := w.source.Header(); len(header) > 0 {
			if err := writeRecord(cw, sink, header); err != nil {
				return false, kscraperrors.Wrap(err, kscraperrors.ErrorTypeFile, "failed to write header").
					WithDetail("path", w.path)
			}
		}
	}

	for {
		if !w.waitTurn() {
			return true, nil
		}
		row, ok := w.source.Next()
		if !ok {
			return false, nil
		}
		if err := writeRecord(cw, sink, row); err != nil {
			return false, kscraperrors.Wrap(err, kscraperrors.ErrorTypeFile, "failed to write row").
				WithDetail("path", w.path).
				WithDetail("row", w.RowsWritten())
		}

		w.mu.Lock()
		w.rows++
		n := w.rows
		w.mu.Unlock()

		metrics.RowsWritten.WithLabelValues(w.target).Inc()
		if n%w.progress == 0 {
			log.Info("rows written", zap.Int("rows", n))
		}
		if w.rowHook != nil {
			w.rowHook(n)
		}
	}
}

// waitTurn blocks while paused and reports whether the next row may be written.
func (w *StreamWriter) waitTurn() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.state == StatePaused && !w.cancelled {
		w.cond.Wait()
	}
	return !w.cancelled
}

// finish records the terminal state. A cancel that lands after the last row
// keeps the state Cancelled even though the outcome is Completed.
func (w *StreamWriter) finish(outcome Outcome) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if outcome == OutcomeCompleted && !w.cancelled {
		w.state = StateCompleted
	} else {
		w.state = StateCancelled
	}
	w.cond.Broadcast()
	return w.rows
}

func writeRecord(cw *csv.Writer, sink compression.Writer, record []string) error {
	if err := cw.Write(record); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return sink.Flush()
}
