// Package compression wraps output files in streaming compressors.
//
// Every codec is append-safe: a file written by several saves holds several
// complete compressed streams back to back, and NewReader decodes all of
// them in order.
//
//	w, err := compression.NewWriter(f, compression.Zstd, compression.Default)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
package compression

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/kscrap/kscrap/pkg/kscraperrors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy framed compression
	Snappy Algorithm = "snappy"
	// S2 represents s2 compression
	S2 Algorithm = "s2"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
)

// Level represents compression level
type Level int

const (
	// Fastest compression
	Fastest Level = 1
	// Default compression
	Default Level = 5
	// Better compression
	Better Level = 7
	// Best compression
	Best Level = 9
)

// ParseAlgorithm resolves an algorithm name. The empty string means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return None, nil
	case None, Gzip, Snappy, S2, LZ4, Zstd:
		return a, nil
	default:
		return None, kscraperrors.Newf(kscraperrors.ErrorTypeConfig, "unknown compression algorithm %q", s)
	}
}

// Extension returns the file suffix for the algorithm, or "" for None.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return "gz"
	case Snappy:
		return "sz"
	case S2:
		return "s2"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zst"
	default:
		return ""
	}
}

// Writer is a compressing writer that can push buffered data through to the
// destination.
type Writer interface {
	io.Writer
	Flush() error
	// Close ends the compressed stream. It does not close the destination.
	Close() error
}

// NewWriter wraps dst with a compressor for alg.
func NewWriter(dst io.Writer, alg Algorithm, level Level) (Writer, error) {
	switch alg {
	case None, "":
		return passthrough{dst}, nil
	case Gzip:
		w, err := gzip.NewWriterLevel(dst, mapGzipLevel(level))
		if err != nil {
			return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeConfig, "failed to create gzip writer")
		}
		return w, nil
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case S2:
		return s2.NewWriter(dst, mapS2Level(level)...), nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeConfig, "failed to configure lz4 writer")
		}
		return w, nil
	case Zstd:
		w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeConfig, "failed to create zstd writer")
		}
		return w, nil
	default:
		return nil, kscraperrors.Newf(kscraperrors.ErrorTypeConfig, "unknown compression algorithm %q", alg)
	}
}

// NewReader wraps src with a decompressor for alg.
func NewReader(src io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None, "":
		return io.NopCloser(src), nil
	case Gzip:
		r, err := gzip.NewReader(src)
		if err != nil {
			return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeFile, "failed to create gzip reader")
		}
		return r, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(src)), nil
	case S2:
		return io.NopCloser(s2.NewReader(src)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	case Zstd:
		d, err := zstd.NewReader(src)
		if err != nil {
			return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeFile, "failed to create zstd reader")
		}
		return d.IOReadCloser(), nil
	default:
		return nil, kscraperrors.Newf(kscraperrors.ErrorTypeConfig, "unknown compression algorithm %q", alg)
	}
}

type passthrough struct {
	io.Writer
}

func (passthrough) Flush() error { return nil }
func (passthrough) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapS2Level(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return "unknown"
	}
}
