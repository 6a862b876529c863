package svn

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Client provides the Subversion operations used to keep a translation in
// step with its upstream.
type Client interface {
	// PropGet returns the value of a versioned property on a working copy path
	PropGet(ctx context.Context, name, path string) (string, error)
	// PropSet sets a versioned property on a working copy path
	PropSet(ctx context.Context, name, value, path string) error
	// Revision returns the working copy revision of path
	Revision(ctx context.Context, path string) (int, error)
	// Diff returns the unified diff of target between two revisions
	Diff(ctx context.Context, target string, from, to int) (string, error)
	// Log returns the commit log of target between two revisions
	Log(ctx context.Context, target string, from, to int) (string, error)
	// Merge applies the changes of source between two revisions to the
	// working copy path target and returns the client output.
	Merge(ctx context.Context, source string, from, to int, target string, dryRun bool) (string, error)
}

// ShellClient implements Client by shelling out to the svn command
type ShellClient struct {
	binary string
	dir    string
}

// NewShellClient creates a client running binary with dir as working
// directory. An empty binary means "svn"; an empty dir means the current one.
func NewShellClient(binary, dir string) *ShellClient {
	if binary == "" {
		binary = "svn"
	}
	return &ShellClient{
		binary: binary,
		dir:    dir,
	}
}

// PropGet runs svn propget
func (c *ShellClient) PropGet(ctx context.Context, name, path string) (string, error) {
	out, err := c.run(ctx, "propget", name, path)
	if err != nil {
		return "", fmt.Errorf("svn propget %s %s failed: %w", name, path, err)
	}
	return strings.TrimSpace(out), nil
}

// PropSet runs svn propset
func (c *ShellClient) PropSet(ctx context.Context, name, value, path string) error {
	if _, err := c.run(ctx, "propset", name, value, path); err != nil {
		return fmt.Errorf("svn propset %s %s failed: %w", name, path, err)
	}
	return nil
}

// Revision runs svn info and returns the entry revision
func (c *ShellClient) Revision(ctx context.Context, path string) (int, error) {
	out, err := c.run(ctx, "info", "--xml", path)
	if err != nil {
		return 0, fmt.Errorf("svn info %s failed: %w", path, err)
	}
	rev, err := ParseInfoRevision([]byte(out))
	if err != nil {
		return 0, fmt.Errorf("svn info %s: %w", path, err)
	}
	return rev, nil
}

// Diff runs svn diff over a revision range
func (c *ShellClient) Diff(ctx context.Context, target string, from, to int) (string, error) {
	out, err := c.run(ctx, "diff", "-r", revRange(from, to), target)
	if err != nil {
		return "", fmt.Errorf("svn diff %s failed: %w", target, err)
	}
	return out, nil
}

// Log runs svn log over a revision range
func (c *ShellClient) Log(ctx context.Context, target string, from, to int) (string, error) {
	out, err := c.run(ctx, "log", "-r", revRange(from, to), target)
	if err != nil {
		return "", fmt.Errorf("svn log %s failed: %w", target, err)
	}
	return out, nil
}

// Merge runs svn merge over a revision range. Conflicts are left in the
// working copy for the operator; only a non-zero exit is reported.
func (c *ShellClient) Merge(ctx context.Context, source string, from, to int, target string, dryRun bool) (string, error) {
	args := []string{"merge", "-r", revRange(from, to), source, target}
	if dryRun {
		args = append(args, "--dry-run")
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return out, fmt.Errorf("svn merge %s failed: %w", target, err)
	}
	return out, nil
}

// infoDocument is the subset of `svn info --xml` output we read
type infoDocument struct {
	Entries []struct {
		Revision string `xml:"revision,attr"`
		Path     string `xml:"path,attr"`
	} `xml:"entry"`
}

// ParseInfoRevision extracts the revision of the first entry of
// `svn info --xml` output.
func ParseInfoRevision(data []byte) (int, error) {
	var doc infoDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse info output: %w", err)
	}
	if len(doc.Entries) == 0 {
		return 0, fmt.Errorf("no entry in info output")
	}
	rev, err := strconv.Atoi(strings.TrimSpace(doc.Entries[0].Revision))
	if err != nil {
		return 0, fmt.Errorf("invalid revision %q: %w", doc.Entries[0].Revision, err)
	}
	return rev, nil
}

// ParseRevision parses a revision number stored as a property value
func ParseRevision(value string) (int, error) {
	rev, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid revision %q: %w", value, err)
	}
	if rev < 0 {
		return 0, fmt.Errorf("invalid revision %q: negative", value)
	}
	return rev, nil
}

func revRange(from, to int) string {
	return strconv.Itoa(from) + ":" + strconv.Itoa(to)
}

// run executes an svn subcommand non-interactively and returns stdout.
// On failure the error carries stderr.
func (c *ShellClient) run(ctx context.Context, args ...string) (string, error) {
	args = insertFlags(args, "--non-interactive")
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = c.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// insertFlags inserts flags immediately after the subcommand name
// (e.g. "diff", "merge").
func insertFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	result := make([]string, 0, len(args)+len(flags))
	result = append(result, args[0])
	result = append(result, flags...)
	result = append(result, args[1:]...)
	return result
}
