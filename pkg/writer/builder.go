package writer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/compression"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
	"github.com/kscrap/kscrap/pkg/logger"
)

// DefaultProgressInterval is how many rows pass between progress log lines.
const DefaultProgressInterval = 50000

// Builder configures a StreamWriter.
//
//	w, err := writer.NewBuilder().
//	    SaveTo("/data/listings.csv").
//	    From(store.NewRowSource()).
//	    Separator(';').
//	    WriteHeaderIfFileAbsent().
//	    Build()
type Builder struct {
	path           string
	source         Source
	separator      rune
	header         bool
	headerIfAbsent bool
	alg            compression.Algorithm
	level          compression.Level
	listener       Listener
	rowHook        func(rows int)
	logger         *zap.Logger
	progress       int
}

// NewBuilder returns a builder with a ',' separator, no header and no compression.
func NewBuilder() *Builder {
	return &Builder{
		separator: ',',
		alg:       compression.None,
		level:     compression.Default,
		progress:  DefaultProgressInterval,
	}
}

// SaveTo sets the output file. It is opened in append mode.
func (b *Builder) SaveTo(path string) *Builder {
	b.path = path
	return b
}

// From sets the rows to write.
func (b *Builder) From(source Source) *Builder {
	b.source = source
	return b
}

// Separator sets the field separator.
func (b *Builder) Separator(r rune) *Builder {
	b.separator = r
	return b
}

// WriteHeaderIfFileAbsent writes the header only when the output file does
// not exist at Build time.
func (b *Builder) WriteHeaderIfFileAbsent() *Builder {
	b.headerIfAbsent = true
	return b
}

// WriteHeader always writes (true) or never writes (false) the header.
func (b *Builder) WriteHeader(enabled bool) *Builder {
	b.header = enabled
	b.headerIfAbsent = false
	return b
}

// Compression wraps the output in a compressed stream.
func (b *Builder) Compression(alg compression.Algorithm, level compression.Level) *Builder {
	b.alg = alg
	b.level = level
	return b
}

// Listener sets the lifecycle callbacks.
func (b *Builder) Listener(l Listener) *Builder {
	b.listener = l
	return b
}

// RowHook is called after each data row is flushed with the number of rows
// written so far. It runs on the writer goroutine without locks held, so it
// may call Pause or Cancel.
func (b *Builder) RowHook(fn func(rows int)) *Builder {
	b.rowHook = fn
	return b
}

// Logger sets the logger. The global logger is used otherwise.
func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// ProgressEvery sets how many rows pass between progress log lines.
func (b *Builder) ProgressEvery(rows int) *Builder {
	b.progress = rows
	return b
}

// Build validates the configuration and returns an idle writer.
func (b *Builder) Build() (*StreamWriter, error) {
	if b.path == "" {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "output path is required")
	}
	if b.source == nil {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "row source is required")
	}
	if !validSeparator(b.separator) {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeValidation, "invalid separator").
			WithDetail("separator", string(b.separator))
	}
	if _, err := compression.ParseAlgorithm(string(b.alg)); err != nil {
		return nil, err
	}

	dir := filepath.Dir(b.path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeFile, "output directory does not exist").
			WithDetail("directory", dir)
	}

	header := b.header
	if b.headerIfAbsent {
		_, err := os.Stat(b.path)
		header = errors.Is(err, fs.ErrNotExist)
	}

	progress := b.progress
	if progress <= 0 {
		progress = DefaultProgressInterval
	}

	w := &StreamWriter{
		path:      b.path,
		target:    filepath.Base(b.path),
		source:    b.source,
		separator: b.separator,
		header:    header,
		alg:       b.alg,
		level:     b.level,
		listener:  b.listener,
		rowHook:   b.rowHook,
		logger:    logger.Or(b.logger).Named("writer"),
		progress:  progress,
	}
	w.cond = sync.NewCond(&w.mu)
	return w, nil
}

func validSeparator(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}
