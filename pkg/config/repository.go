package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/compression"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
	"github.com/kscrap/kscrap/pkg/logger"
)

var baseNamePattern = regexp.MustCompile(`^\w+(-(\w|_)+)*$`)

// PathValidator decides whether a directory can receive output files.
type PathValidator func(dir string) bool

// DirExists is the default PathValidator.
func DirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// DefaultDirectory returns the user's Documents directory when it exists,
// the working directory otherwise.
func DefaultDirectory() string {
	if home, err := os.UserHomeDir(); err == nil {
		docs := filepath.Join(home, "Documents")
		if DirExists(docs) {
			return docs
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// DefaultBaseName returns the generated base name for time t.
func DefaultBaseName(t time.Time) string {
	return DefaultBaseNamePrefix + t.Format(BaseNameTimeLayout)
}

// ValidBaseName reports whether name is accepted as a base name.
func ValidBaseName(name string) bool {
	return baseNamePattern.MatchString(name)
}

// ValidSeparator reports whether sep is a single rune usable as a field separator.
func ValidSeparator(sep string) bool {
	r, size := utf8.DecodeRuneInString(sep)
	if size == 0 || size != len(sep) || r == utf8.RuneError {
		return false
	}
	return r != '"' && r != '\r' && r != '\n'
}

// Normalize replaces every invalid setting with its default. Each replaced
// setting is logged as a warning and returned as a config error.
func (c *RepositoryConfig) Normalize(l *zap.Logger, valid PathValidator) []error {
	log := logger.Or(l)
	if valid == nil {
		valid = DirExists
	}

	var problems []error
	replaced := func(err *kscraperrors.Error, fallback interface{}) {
		err.WithDetail("fallback", fallback)
		log.Warn("invalid repository setting, using default", zap.Error(err))
		problems = append(problems, err)
	}

	if c.Directory == "" || !valid(c.Directory) {
		err := kscraperrors.New(kscraperrors.ErrorTypeConfig, "directory does not exist").
			WithDetail("directory", c.Directory)
		c.Directory = DefaultDirectory()
		replaced(err, c.Directory)
	}

	if !ValidBaseName(c.BaseName) {
		err := kscraperrors.New(kscraperrors.ErrorTypeConfig, "invalid base name").
			WithDetail("base_name", c.BaseName)
		c.BaseName = DefaultBaseName(time.Now())
		replaced(err, c.BaseName)
	}

	if c.Extension == "" {
		c.Extension = ExtensionCSV
	} else if Extension(strings.ToLower(string(c.Extension))) != ExtensionCSV {
		err := kscraperrors.New(kscraperrors.ErrorTypeConfig, "unsupported extension").
			WithDetail("extension", c.Extension)
		c.Extension = ExtensionCSV
		replaced(err, c.Extension)
	} else {
		c.Extension = ExtensionCSV
	}

	if !ValidSeparator(c.Separator) {
		err := kscraperrors.New(kscraperrors.ErrorTypeConfig, "invalid separator").
			WithDetail("separator", c.Separator)
		c.Separator = DefaultSeparator
		replaced(err, c.Separator)
	}

	if alg, parseErr := compression.ParseAlgorithm(c.Compression); parseErr != nil {
		err := kscraperrors.Wrap(parseErr, kscraperrors.ErrorTypeConfig, "invalid compression")
		c.Compression = string(compression.None)
		replaced(err, c.Compression)
	} else {
		c.Compression = string(alg)
	}

	if c.AutoSave.Interval == 0 {
		c.AutoSave.Interval = DefaultAutoSaveInterval
	} else if c.AutoSave.Interval < MinAutoSaveInterval {
		err := kscraperrors.New(kscraperrors.ErrorTypeConfig, "autosave interval below minimum").
			WithDetail("interval", c.AutoSave.Interval.String()).
			WithDetail("minimum", MinAutoSaveInterval.String())
		c.AutoSave.Interval = DefaultAutoSaveInterval
		replaced(err, c.AutoSave.Interval.String())
	}

	return problems
}

// SaveIn sets the output directory when valid accepts it. A trailing path
// separator is dropped.
func (c *RepositoryConfig) SaveIn(dir string, valid PathValidator) bool {
	if valid == nil {
		valid = DirExists
	}
	if len(dir) > 1 {
		dir = strings.TrimRight(dir, "/"+string(os.PathSeparator))
		if dir == "" {
			dir = string(os.PathSeparator)
		}
	}
	if dir == "" || !valid(dir) {
		logger.Warn("output directory is not valid, keeping current one",
			zap.String("directory", dir),
			zap.String("current", c.Directory))
		return false
	}
	c.Directory = dir
	return true
}

// SetBaseName sets the base name when it is valid.
func (c *RepositoryConfig) SetBaseName(name string) bool {
	if !ValidBaseName(name) {
		logger.Warn("base name is not valid, keeping current one",
			zap.String("base_name", name),
			zap.String("current", c.BaseName))
		return false
	}
	c.BaseName = name
	return true
}

// SetFilePath splits a full path such as /data/listings.csv or
// /data/listings.csv.gz into directory, base name, extension and
// compression. Nothing changes unless every part is valid.
func (c *RepositoryConfig) SetFilePath(full string, valid PathValidator) bool {
	if valid == nil {
		valid = DirExists
	}
	dir, file := filepath.Split(full)
	if dir == "" {
		dir = "."
	}
	if len(dir) > 1 {
		dir = filepath.Clean(dir)
	}

	alg := compression.None
	if ext := strings.TrimPrefix(filepath.Ext(file), "."); ext != "" {
		for _, candidate := range []compression.Algorithm{compression.Gzip, compression.Snappy, compression.S2, compression.LZ4, compression.Zstd} {
			if strings.EqualFold(ext, candidate.Extension()) {
				alg = candidate
				file = strings.TrimSuffix(file, filepath.Ext(file))
				break
			}
		}
	}

	ext := Extension(strings.ToLower(strings.TrimPrefix(filepath.Ext(file), ".")))
	name := strings.TrimSuffix(file, filepath.Ext(file))

	if ext != ExtensionCSV || !ValidBaseName(name) || !valid(dir) {
		logger.Warn("file path is not valid, keeping current one",
			zap.String("path", full),
			zap.String("current", c.FilePath()))
		return false
	}

	c.Directory = dir
	c.BaseName = name
	c.Extension = ext
	c.Compression = string(alg)
	return true
}

// SeparatorRune returns the configured separator, or ',' when it is invalid.
func (c *RepositoryConfig) SeparatorRune() rune {
	if !ValidSeparator(c.Separator) {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(c.Separator)
	return r
}

// CompressionAlgorithm returns the configured algorithm, or None when it is invalid.
func (c *RepositoryConfig) CompressionAlgorithm() compression.Algorithm {
	alg, err := compression.ParseAlgorithm(c.Compression)
	if err != nil {
		return compression.None
	}
	return alg
}

// FilePath returns {directory}/{base_name}.{extension}, plus the compression
// suffix when compression is enabled.
func (c *RepositoryConfig) FilePath() string {
	ext := c.Extension
	if ext == "" {
		ext = ExtensionCSV
	}
	name := c.BaseName + "." + string(ext)
	if suffix := c.CompressionAlgorithm().Extension(); suffix != "" {
		name += "." + suffix
	}
	return filepath.Join(c.Directory, name)
}
