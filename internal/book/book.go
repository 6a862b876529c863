package book

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUntrackedFile is returned when a selection names a file outside the manifest
var ErrUntrackedFile = errors.New("file is not tracked")

// TrackedFiles is the manifest of book sources kept in sync with upstream,
// in report order.
var TrackedFiles = []string{
	"appa.xml",
	"appb.xml",
	"appc.xml",
	"book.xml",
	"ch00.xml",
	"ch01.xml",
	"ch02.xml",
	"ch03.xml",
	"ch04.xml",
	"ch05.xml",
	"ch06.xml",
	"ch07.xml",
	"ch08.xml",
	"ch09.xml",
	"copyright.xml",
	"foreword.xml",
	"styles.css",
}

// PageExtensions are the extensions of generated HTML pages
var PageExtensions = []string{
	".html",
}

// IsTracked returns true if name is in the manifest
func IsTracked(name string) bool {
	for _, f := range TrackedFiles {
		if f == name {
			return true
		}
	}
	return false
}

// ResolveSelection parses a comma-separated list of file names into manifest
// entries. Directory parts are stripped, so "book/ch01.xml" selects ch01.xml.
// Order is preserved; duplicates are dropped.
func ResolveSelection(list string) ([]string, error) {
	var selected []string
	seen := make(map[string]bool)

	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name := filepath.Base(item)
		if !IsTracked(name) {
			return nil, fmt.Errorf("%w: %s", ErrUntrackedFile, item)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, name)
	}

	return selected, nil
}

// IsPage returns true if the file has a generated page extension
func IsPage(path string) bool {
	ext := filepath.Ext(path)
	for _, valid := range PageExtensions {
		if ext == valid {
			return true
		}
	}
	return false
}

// DiscoverPages finds the page files directly inside dir, sorted by name.
// Subdirectories are not descended into.
func DiscoverPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var pages []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPage(entry.Name()) {
			continue
		}
		pages = append(pages, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(pages)
	return pages, nil
}

// ResolveBookDir returns dir if it is an existing directory, otherwise the
// current directory. Status and sync commands work from either the source
// root or the book directory itself.
func ResolveBookDir(dir string) string {
	if dir == "" {
		return "."
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "."
	}
	return dir
}

// DiffPath returns where the diff side file of a tracked file is written:
// next to the book directory, not inside it.
func DiffPath(bookDir, name string) string {
	return filepath.Join(bookDir, "..", name+".diff")
}
