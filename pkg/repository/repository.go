// Package repository accumulates items in a column store and appends them to
// a delimited text file.
//
// A repository stores items of one type. The first item of a wider type,
// one that declares every stored field, widens the stored type once; any
// other type is rejected. Saves run in the background and remove the rows
// they wrote, so the file grows by appending while memory holds only what is
// still pending.
//
//	repo, err := repository.Create(cfg, []listing.Listing{sol, luna})
//	if err != nil {
//	    return err
//	}
//	repo.Add(&listing.Property{...}) // widens
//	if err := repo.Save(ctx); err != nil {
//	    return err
//	}
package repository

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/columnar"
	"github.com/kscrap/kscrap/pkg/compression"
	"github.com/kscrap/kscrap/pkg/config"
	"github.com/kscrap/kscrap/pkg/item"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
	"github.com/kscrap/kscrap/pkg/logger"
	"github.com/kscrap/kscrap/pkg/metrics"
	"github.com/kscrap/kscrap/pkg/transmitter"
	"github.com/kscrap/kscrap/pkg/writer"
)

// Repository stores items in memory and saves them to a file.
type Repository struct {
	name        string
	cfg         *config.RepositoryConfig
	logger      *zap.Logger
	saveLogger  *zap.Logger
	validator   config.PathValidator
	transmitter transmitter.Transmitter
	rowHook     func(rows int)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	schema      *item.Schema
	state       State
	store       *columnar.ColumnStore
	saveAllowed bool
	closed      bool
	writer      *writer.StreamWriter
	completion  *writer.Completion

	closeOnce    sync.Once
	autosaveStop chan struct{}
	autosaveDone chan struct{}
}

// New creates a repository for items of schema. A nil schema leaves the type
// to the first item added. cfg is copied and invalid settings are replaced by
// their defaults.
func New(schema *item.Schema, cfg *config.RepositoryConfig, opts ...Option) (*Repository, error) {
	if schema != nil && len(schema.SupportedFields()) == 0 {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "item type has no storable fields").
			WithDetail("type", schema.Name())
	}
	if cfg == nil {
		cfg = config.NewRepositoryConfig()
	} else {
		cfg = cfg.Clone()
	}

	r := &Repository{cfg: cfg, saveAllowed: true}
	for _, opt := range opts {
		opt(r)
	}

	base := logger.Or(r.logger)
	cfg.Normalize(base.Named("config"), r.validator)
	if r.name == "" {
		r.name = cfg.BaseName
	}
	r.logger = base.Named("repository").With(zap.String("repository", r.name))
	r.saveLogger = base.Named("repository")
	r.store = columnar.NewColumnStore(r.logger)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	if schema != nil {
		r.fixType(schema)
	}
	if cfg.AutoSave.Enabled {
		r.startAutoSave(cfg.AutoSave.Interval)
	}

	r.logger.Info("repository created",
		zap.String("path", cfg.FilePath()),
		zap.Stringer("state", r.state))
	return r, nil
}

// Create creates a repository for T and adds items to it.
func Create[T any](cfg *config.RepositoryConfig, items []T, opts ...Option) (*Repository, error) {
	schema, err := item.SchemaFor[T]()
	if err != nil {
		return nil, err
	}
	r, err := New(schema, cfg, opts...)
	if err != nil {
		return nil, err
	}
	for i := range items {
		r.Add(items[i])
	}
	return r, nil
}

// fixType sets the stored type. Callers hold r.mu or own r exclusively.
func (r *Repository) fixType(schema *item.Schema) {
	if err := r.store.CreateColumns(schema.Fields()); err != nil {
		r.logger.Warn("some fields will not be stored",
			zap.String("type", schema.Name()),
			zap.Error(err))
	}
	r.schema = schema
	r.state = StateTypeFixed
}

// Add adapts v with item.Reflect and adds it.
func (r *Repository) Add(v interface{}) Outcome {
	it, err := item.Reflect(v)
	if err != nil {
		r.logger.Warn("item rejected", zap.Error(err))
		metrics.ItemsAdded.WithLabelValues(r.name, Rejected.String()).Inc()
		return Rejected
	}
	return r.AddItem(it)
}

// AddItem stores it when its type is the stored type, or widens the stored
// type first when it is the first wider type seen. Other items are logged
// and dropped. Stored items are forwarded to the transmitter.
func (r *Repository) AddItem(it item.Item) Outcome {
	outcome := r.add(it)
	metrics.ItemsAdded.WithLabelValues(r.name, outcome.String()).Inc()

	if outcome.Stored() && r.transmitter != nil && !r.transmitter.Closed() {
		if err := r.transmitter.Transmit(r.ctx, it); err != nil {
			r.logger.Warn("item not transmitted", zap.Error(err))
		}
	}
	return outcome
}

// AddItems adds each item in order. Outcomes are independent.
func (r *Repository) AddItems(items []item.Item) []Outcome {
	out := make([]Outcome, len(items))
	for i, it := range items {
		out[i] = r.AddItem(it)
	}
	return out
}

func (r *Repository) add(it item.Item) Outcome {
	if it == nil || it.Schema() == nil {
		r.logger.Warn("nil item rejected")
		return Rejected
	}
	schema := it.Schema()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.logger.Warn("item rejected, repository is closed", zap.String("type", schema.Name()))
		return Rejected
	}

	outcome := Appended
	switch {
	case r.state == StateNoTypeYet:
		if len(schema.SupportedFields()) == 0 {
			r.logger.Warn("item rejected, type has no storable fields", zap.String("type", schema.Name()))
			return Rejected
		}
		r.fixType(schema)

	case item.SameType(schema, r.schema):
		// stored type, plain append

	case r.state == StateTypeFixed && schema.Covers(r.schema):
		if !r.store.Widen(schema.Fields()) {
			metrics.Widenings.WithLabelValues(r.name, "failure").Inc()
			if r.cfg.StrictWidening {
				r.saveAllowed = false
				r.logger.Error("widening failed, saving disabled",
					zap.String("from", r.schema.Name()),
					zap.String("to", schema.Name()))
			} else {
				r.logger.Warn("widening failed, item rejected",
					zap.String("from", r.schema.Name()),
					zap.String("to", schema.Name()))
			}
			return Rejected
		}
		metrics.Widenings.WithLabelValues(r.name, "success").Inc()
		r.logger.Info("stored type widened",
			zap.String("from", r.schema.Name()),
			zap.String("to", schema.Name()),
			zap.Strings("columns", r.store.ColumnNames()))
		r.schema = schema
		r.state = StateTypeWidened
		outcome = Widened

	default:
		r.logger.Warn("item rejected, type does not match",
			zap.String("stored", r.schema.Name()),
			zap.String("type", schema.Name()),
			zap.Stringer("state", r.state))
		return Rejected
	}

	r.store.AppendRow(item.Values(it))
	r.reportPending()
	return outcome
}

// SaveAsync starts saving the stored rows. It returns false, doing nothing,
// when a save is already running, saving is disabled, the repository is
// closed or there is nothing to save. Cancelling ctx cancels the save.
func (r *Repository) SaveAsync(ctx context.Context) (*writer.Completion, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		r.logger.Debug("save skipped, repository is closed")
		return nil, false
	case !r.saveAllowed:
		r.logger.Warn("save skipped, saving is disabled")
		return nil, false
	case r.writer != nil:
		r.logger.Debug("save skipped, another save is running")
		return nil, false
	case r.store.RowCount() == 0:
		r.logger.Debug("save skipped, nothing to save")
		return nil, false
	}

	b := writer.NewBuilder().
		SaveTo(r.cfg.FilePath()).
		From(r.store.NewRowSource()).
		Separator(r.cfg.SeparatorRune()).
		Compression(r.cfg.CompressionAlgorithm(), compression.Default).
		RowHook(r.rowHook).
		Logger(r.saveLogger).
		Listener(writer.Listener{OnCompleted: r.saveFinished})
	if r.cfg.WriteHeaderIfFileAbsent {
		b.WriteHeaderIfFileAbsent()
	} else {
		b.WriteHeader(false)
	}

	w, err := b.Build()
	if err != nil {
		r.logger.Error("save not started", zap.Error(err))
		return nil, false
	}
	c, err := w.Start(logger.WithRepository(ctx, r.name))
	if err != nil {
		r.logger.Error("save not started", zap.Error(err))
		return nil, false
	}

	r.writer = w
	r.completion = c
	return c, true
}

// saveFinished runs on the writer goroutine before the completion resolves.
// Written rows are dropped unless the save failed.
func (r *Repository) saveFinished(outcome writer.Outcome, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if outcome != writer.OutcomeFailed {
		r.store.Discard(rows)
	}
	r.writer = nil
	r.reportPending()
}

// Save saves the stored rows and waits for the save to end. It returns nil
// without saving when SaveAsync would not start one.
func (r *Repository) Save(ctx context.Context) error {
	c, ok := r.SaveAsync(ctx)
	if !ok {
		return nil
	}
	return c.Wait(ctx)
}

// Wait blocks until the last started save ends.
func (r *Repository) Wait(ctx context.Context) error {
	r.mu.Lock()
	c := r.completion
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Wait(ctx)
}

// Pause pauses the running save, if any.
func (r *Repository) Pause() {
	if w := r.currentWriter(); w != nil {
		w.Pause()
	}
}

// Resume resumes the paused save, if any.
func (r *Repository) Resume() {
	if w := r.currentWriter(); w != nil {
		w.Resume()
	}
}

// Cancel cancels the running save, if any. Rows not yet written stay stored.
func (r *Repository) Cancel() {
	if w := r.currentWriter(); w != nil {
		w.Cancel()
	}
}

func (r *Repository) currentWriter() *writer.StreamWriter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer
}

// Saving reports whether a save is running.
func (r *Repository) Saving() bool {
	return r.currentWriter() != nil
}

// IsFullyPersisted reports whether no rows are pending and no save is running.
func (r *Repository) IsFullyPersisted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer != nil || (r.completion != nil && !r.completion.Resolved()) {
		return false
	}
	return r.store.RowCount() == 0
}

// SaveAllowed reports whether saves may run.
func (r *Repository) SaveAllowed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveAllowed
}

// Count returns the number of rows not yet saved.
func (r *Repository) Count() int {
	return r.store.RowCount()
}

// MemoryUsage returns the approximate bytes held by the stored columns.
func (r *Repository) MemoryUsage() int64 {
	return r.store.MemoryUsage()
}

func (r *Repository) reportPending() {
	metrics.PendingRows.WithLabelValues(r.name).Set(float64(r.store.RowCount()))
	metrics.PendingBytes.WithLabelValues(r.name).Set(float64(r.store.MemoryUsage()))
}

// CurrentSchema returns the stored type, or nil before the first item.
func (r *Repository) CurrentSchema() *item.Schema {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schema
}

// State returns the type state.
func (r *Repository) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Columns returns the stored column names.
func (r *Repository) Columns() []string {
	return r.store.ColumnNames()
}

// Items rebuilds the rows not yet saved as items of the stored type.
func (r *Repository) Items() ([]item.Item, error) {
	r.mu.Lock()
	schema := r.schema
	r.mu.Unlock()
	if schema == nil {
		return nil, nil
	}
	return r.store.Records(schema)
}

// FilePath returns the output file.
func (r *Repository) FilePath() string {
	return r.cfg.FilePath()
}

// Name identifies the repository in logs and metrics.
func (r *Repository) Name() string { return r.name }

func (r *Repository) startAutoSave(interval time.Duration) {
	r.autosaveStop = make(chan struct{})
	r.autosaveDone = make(chan struct{})
	r.logger.Info("autosave enabled", zap.Duration("interval", interval))

	go func() {
		defer close(r.autosaveDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.autosaveStop:
				return
			case <-ticker.C:
				if c, ok := r.SaveAsync(r.ctx); ok {
					r.logger.Debug("autosave started", zap.String("save_id", c.ID()))
				}
			}
		}
	}()
}

// Close stops autosave, waits for the running save and rejects further
// items and saves. Stored rows that were never saved are kept in memory.
func (r *Repository) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		if r.autosaveStop != nil {
			close(r.autosaveStop)
			<-r.autosaveDone
		}
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
	})

	err := r.Wait(ctx)
	r.cancel()
	if pending := r.Count(); pending > 0 {
		r.logger.Warn("repository closed with unsaved rows", zap.Int("rows", pending))
	}
	return err
}
