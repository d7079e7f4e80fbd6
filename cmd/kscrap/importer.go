package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/config"
	"github.com/kscrap/kscrap/pkg/item"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
	"github.com/kscrap/kscrap/pkg/repository"
)

// maxLineSize bounds one JSON line of input.
const maxLineSize = 4 << 20

// inputLine is one item of JSON lines input:
//
//	{"type": "piso", "fields": {"calle": "Sol", "m2": 90}}
type inputLine struct {
	Type   string                     `json:"type"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// importStats counts what happened to each input line.
type importStats struct {
	Lines    int
	Appended int
	Widened  int
	Rejected int
	Invalid  int
}

func (s importStats) String() string {
	return fmt.Sprintf("lines=%d appended=%d widened=%d rejected=%d invalid=%d",
		s.Lines, s.Appended, s.Widened, s.Rejected, s.Invalid)
}

func newImportCommand(v *viper.Viper) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store JSON lines items and append them to the output file",
		Long: `Read items as JSON lines, one {"type", "fields"} object per line, and store
them in a repository. Item types are declared under "types" in the
configuration file. The first line fixes the stored type.

Example:
  kscrap import --config kscrap.yaml --input listings.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(v)
			if err != nil {
				return err
			}
			defer env.close(context.Background())

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			types, err := declaredTypes(env.cfg.Types)
			if err != nil {
				return err
			}

			repo, err := repository.New(nil, &env.cfg.Repository, env.repositoryOptions()...)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input) //nolint:gosec // path comes from the operator
				if err != nil {
					return kscraperrors.Wrap(err, kscraperrors.ErrorTypeFile, "failed to open input").
						WithDetail("path", input)
				}
				defer f.Close()
				r = f
			}

			stats, err := importItems(ctx, r, types, repo, env.log)
			if err != nil {
				_ = repo.Close(ctx)
				return err
			}
			if err := repo.Save(ctx); err != nil {
				return err
			}
			if err := repo.Close(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", stats, repo.FilePath())
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON lines file to import, - for stdin")
	return cmd
}

// declaredTypes builds the schemas declared in the configuration, by name.
func declaredTypes(decls []config.TypeConfig) (map[string]*item.Schema, error) {
	types := make(map[string]*item.Schema, len(decls))
	for _, decl := range decls {
		if _, dup := types[decl.Name]; dup {
			return nil, kscraperrors.New(kscraperrors.ErrorTypeConfig, "item type declared twice").
				WithDetail("type", decl.Name)
		}
		s, err := decl.Schema()
		if err != nil {
			return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeConfig, "invalid item type").
				WithDetail("type", decl.Name)
		}
		types[decl.Name] = s
	}
	return types, nil
}

// importItems adds every line of r to repo. Lines that are not valid JSON,
// name an undeclared type or carry unparseable values are counted as invalid
// and skipped.
func importItems(ctx context.Context, r io.Reader, types map[string]*item.Schema, repo *repository.Repository, log *zap.Logger) (importStats, error) {
	var stats importStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Lines++

		it, err := decodeItem([]byte(line), types)
		if err != nil {
			stats.Invalid++
			log.Warn("input line skipped", zap.Int("line", stats.Lines), zap.Error(err))
			continue
		}

		switch repo.AddItem(it) {
		case repository.Appended:
			stats.Appended++
		case repository.Widened:
			stats.Widened++
		default:
			stats.Rejected++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, kscraperrors.Wrap(err, kscraperrors.ErrorTypeFile, "failed to read input")
	}
	return stats, nil
}

func decodeItem(line []byte, types map[string]*item.Schema) (item.Item, error) {
	var in inputLine
	if err := json.Unmarshal(line, &in); err != nil {
		return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeData, "invalid JSON")
	}
	schema, ok := types[in.Type]
	if !ok {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeData, "undeclared item type").
			WithDetail("type", in.Type)
	}

	rec := schema.NewRecord()
	for name, raw := range in.Fields {
		value, present, err := rawText(raw)
		if err != nil {
			return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeData, "invalid field value").
				WithDetail("field", name)
		}
		if !present {
			continue
		}
		if err := rec.Set(name, value); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// rawText renders a JSON scalar as the text Item.Set expects. present is
// false for null.
func rawText(raw json.RawMessage) (value string, present bool, err error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "null":
		return "", false, nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return "", false, fmt.Errorf("nested value %s", trimmed)
	default:
		return trimmed, true, nil
	}
}
