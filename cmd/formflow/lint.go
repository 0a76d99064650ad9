package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/internal/loader"
	"github.com/goliatone/go-formflow/pkg/fixture"
	"github.com/goliatone/go-formflow/pkg/schema"
)

type violation struct {
	file    string
	path    string
	message string
}

func newLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [paths or urls...]",
		Short: "Check screen documents for structural problems",
		Long: strings.TrimSpace(`
Decode every screen document and report problems the engine tolerates at
runtime: missing ids, duplicate sections, inverted instance bounds, invalid
regexes and dangling references. Directories are walked for .json, .yaml
and .yml files; a flow.yaml manifest is skipped.
`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := loader.New(loader.WithHTTP(), loader.WithTimeout(a.timeout()))
			violations, err := lintAll(cmd.Context(), l, args)
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d source(s) ok\n", len(args))
				return nil
			}
			report(cmd.ErrOrStderr(), violations)
			return fmt.Errorf("lint: %d problem(s) found", len(violations))
		},
	}
}

func lintAll(ctx context.Context, l *loader.Loader, args []string) ([]violation, error) {
	var out []violation
	for _, arg := range args {
		sources, err := expand(arg)
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			out = append(out, lintSource(ctx, l, src)...)
		}
	}
	return out, nil
}

func lintSource(ctx context.Context, l *loader.Loader, src schema.Source) []violation {
	screen, err := l.LoadScreen(ctx, src)
	if err != nil {
		return []violation{{file: src.Location(), message: err.Error()}}
	}
	res := schema.Lint(screen)
	out := make([]violation, 0, len(res.Issues))
	for _, issue := range res.Issues {
		path := issue.Path
		if path == "" {
			path = issue.Field
		}
		out = append(out, violation{file: src.Location(), path: path, message: issue.Message})
	}
	return out
}

// expand turns an argument into sources: URLs as is, files directly and
// directories by walking them for screen documents.
func expand(arg string) ([]schema.Source, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		src, err := schema.ParseURLSource(arg)
		if err != nil {
			return nil, err
		}
		return []schema.Source{src}, nil
	}

	var out []schema.Source
	err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isScreenDocument(path) {
			return nil
		}
		if path != arg && filepath.Base(path) == fixture.FlowFile {
			return nil
		}
		out = append(out, schema.SourceFromFile(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", arg, err)
	}
	return out, nil
}

func isScreenDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func report(w io.Writer, violations []violation) {
	slices.SortFunc(violations, func(a, b violation) int {
		if c := strings.Compare(a.file, b.file); c != 0 {
			return c
		}
		if c := strings.Compare(a.path, b.path); c != 0 {
			return c
		}
		return strings.Compare(a.message, b.message)
	})
	for _, v := range violations {
		if v.path == "" {
			fmt.Fprintf(w, "%s: %s\n", v.file, v.message)
			continue
		}
		fmt.Fprintf(w, "%s: %s -> %s\n", v.file, v.path, v.message)
	}
}
