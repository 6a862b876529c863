package idsub

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// ErrUnknownID is returned when a referenced identifier has no entry in the
// rename table
var ErrUnknownID = errors.New("identifier not in rename table")

// refPattern matches id="..." and linkend="..." attributes preceded by a
// space. Group 1 is the identifier.
var refPattern = regexp.MustCompile(` (?:id|linkend)="(.*?)"`)

// Table maps old identifiers to new ones
type Table map[string]string

// LoadTable reads a rename table of "old<TAB>new" lines. Empty lines are
// skipped; any other line must hold exactly two tab-separated fields.
func LoadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rename table: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseTable(f)
}

// ParseTable parses a rename table from r
func ParseTable(r io.Reader) (Table, error) {
	table := make(Table)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("rename table line %d: expected 2 tab-separated fields, got %d", lineNo, len(fields))
		}
		table[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// Rewrite replaces every identifier reference in line by its table entry
// and returns the new line and the number of substitutions.
func (t Table) Rewrite(line string) (string, int, error) {
	var missing string
	count := 0
	out := refPattern.ReplaceAllStringFunc(line, func(m string) string {
		id := refPattern.FindStringSubmatch(m)[1]
		to, ok := t[id]
		if !ok {
			if missing == "" {
				missing = id
			}
			return m
		}
		count++
		// Keep everything up to and including the opening quote.
		return m[:len(m)-len(id)-1] + to + `"`
	})
	if missing != "" {
		return line, 0, fmt.Errorf("%w: %q", ErrUnknownID, missing)
	}
	return out, count, nil
}

// Result is the outcome of remapping one file
type Result struct {
	Path    string
	Changes int
	// Diff is the unified diff of the change, filled when requested
	Diff string
}

// Options controls a remapping run
type Options struct {
	// DryRun counts substitutions without modifying any file
	DryRun bool
	// Diff computes a unified diff for every changed file
	Diff bool
}

// Remapper rewrites identifier references in files
type Remapper struct {
	table  Table
	logger *slog.Logger
	opts   Options
}

// NewRemapper creates a remapper for table
func NewRemapper(table Table, logger *slog.Logger, opts Options) *Remapper {
	return &Remapper{
		table:  table,
		logger: logger,
		opts:   opts,
	}
}

// RemapFile rewrites path through a <path>.out scratch copy. The original is
// replaced only when at least one substitution happened; otherwise it is not
// touched and the scratch copy is removed.
func (r *Remapper) RemapFile(path string) (res Result, err error) {
	res.Path = path

	original, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}

	scratch := path + ".out"
	var sink io.Writer = io.Discard
	var out *os.File
	if !r.opts.DryRun {
		out, err = os.Create(scratch)
		if err != nil {
			return res, fmt.Errorf("failed to create scratch file: %w", err)
		}
		sink = out
		defer func() {
			if out != nil {
				_ = out.Close()
			}
			if err != nil || res.Changes == 0 {
				_ = os.Remove(scratch)
			}
		}()
	}

	var rewritten strings.Builder
	w := io.MultiWriter(sink, &rewritten)

	reader := bufio.NewReader(bytes.NewReader(original))
	lineNo := 0
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			lineNo++
			newLine, n, err := r.table.Rewrite(line)
			if err != nil {
				return res, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			res.Changes += n
			if _, err := io.WriteString(w, newLine); err != nil {
				return res, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return res, readErr
		}
	}

	if r.opts.Diff && res.Changes > 0 {
		res.Diff = unifiedDiff(path, string(original), rewritten.String())
	}

	if r.opts.DryRun {
		return res, nil
	}

	if err = out.Close(); err != nil {
		out = nil
		return res, err
	}
	out = nil

	if res.Changes > 0 {
		if err = os.Rename(scratch, path); err != nil {
			return res, fmt.Errorf("failed to replace %s: %w", path, err)
		}
		r.logger.Info("identifiers rewritten", "file", path, "changes", res.Changes)
	} else {
		r.logger.Debug("no identifiers to rewrite", "file", path)
	}
	return res, nil
}

// RemapFiles remaps each file in order, writing "<file> : <n> changes" to w.
// The first error stops the run; files already rewritten stay rewritten.
func (r *Remapper) RemapFiles(w io.Writer, paths []string) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		res, err := r.RemapFile(path)
		if err != nil {
			return results, err
		}
		fmt.Fprintf(w, "%s : %d changes\n", path, res.Changes)
		if res.Diff != "" {
			fmt.Fprint(w, res.Diff)
		}
		results = append(results, res)
	}
	return results, nil
}

func unifiedDiff(path, before, after string) string {
	edits := myers.ComputeEdits(span.URIFromPath(path), before, after)
	return fmt.Sprint(gotextdiff.ToUnified(path, path, before, edits))
}
