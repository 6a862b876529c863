package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/svnbook/booktool/internal/book"
)

// ComputeBands splits the range spanned by revs into three equal thirds.
// With w = (max+1-min)/3 the boundaries are min+w and max+1-w, so a span
// shorter than three revisions collapses into the middle band.
func ComputeBands(revs []int) Bands {
	if len(revs) == 0 {
		return Bands{}
	}

	lo, hi := revs[0], revs[0]
	for _, r := range revs[1:] {
		if r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	upper := hi + 1
	w := (upper - lo) / 3

	return Bands{
		Low:   lo,
		Mid:   lo + w,
		High:  upper - w,
		Upper: upper,
	}
}

// Classify returns the band containing rev. Revisions outside [Low, Upper)
// are clamped to the nearest band.
func (b Bands) Classify(rev int) Band {
	switch {
	case rev >= b.High:
		return BandNewest
	case rev >= b.Mid:
		return BandMiddle
	default:
		return BandOldest
	}
}

// Status builds the read-only sync-status report for every tracked file
func (e *Engine) Status(ctx context.Context) (*Report, error) {
	lines := make([]StatusLine, 0, len(book.TrackedFiles))
	revs := make([]int, 0, len(book.TrackedFiles))

	for _, name := range book.TrackedFiles {
		last, err := e.lastSynced(ctx, name)
		if err != nil {
			return nil, err
		}
		base, err := e.svn.Revision(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read base revision of %s: %w", name, err)
		}
		pct, err := FileTranslationRatio(filepath.Join(e.bookDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		e.logger.Debug("file status", "file", name, "last_synced", last, "base", base, "percent", pct)

		lines = append(lines, StatusLine{
			File:       name,
			LastSynced: last,
			Base:       base,
			Lag:        base - last,
			Percent:    pct,
		})
		revs = append(revs, last)
	}

	bands := ComputeBands(revs)
	for i := range lines {
		lines[i].Band = bands.Classify(lines[i].LastSynced)
	}

	return &Report{Lines: lines, Bands: bands}, nil
}

var bandColors = map[Band]color.Attribute{
	BandOldest: color.FgRed,
	BandMiddle: color.FgYellow,
	BandNewest: color.FgGreen,
}

// RenderText writes one tab-separated line per file (name, last-synced
// revision, percentage, base revision, lag), colored by band when useColor
// is set.
func RenderText(w io.Writer, report *Report, useColor bool) error {
	for _, line := range report.Lines {
		text := fmt.Sprintf("%s\t%d\t%s\t%d\t%d", line.File, line.LastSynced, FormatPercent(line.Percent), line.Base, line.Lag)

		c := color.New(bandColors[line.Band])
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		if _, err := c.Fprintln(w, text); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON writes the report as indented JSON
func RenderJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
