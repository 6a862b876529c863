package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Builder produces book output for a set of build targets
type Builder interface {
	// Available checks that the build tool can be run at all
	Available() error
	// Build runs the clean target followed by targets, installing into destDir
	Build(ctx context.Context, destDir string, targets []string) error
}

// MakeClient implements Builder by shelling out to make (or a compatible tool)
type MakeClient struct {
	command string
	env     []string
	dir     string
	logger  *slog.Logger
}

// NewMakeClient creates a builder running command in dir with extra
// environment variables (KEY=VALUE) added to the inherited environment.
func NewMakeClient(command, dir string, env []string, logger *slog.Logger) *MakeClient {
	return &MakeClient{
		command: command,
		env:     env,
		dir:     dir,
		logger:  logger,
	}
}

// Available checks that the build command is on PATH
func (c *MakeClient) Available() error {
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("build command %q not available: %w", c.command, err)
	}
	return nil
}

// Build runs `<command> clean <targets...>` with DESTDIR=destDir
func (c *MakeClient) Build(ctx context.Context, destDir string, targets []string) error {
	args := append([]string{"clean"}, targets...)
	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(), c.env...)
	cmd.Env = append(cmd.Env, "DESTDIR="+destDir)

	c.logger.Info("running build", "command", c.command, "targets", targets, "destdir", destDir)
	c.logger.Debug("build environment", "env", c.env)

	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		c.logger.Debug("build output", "output", strings.TrimSpace(string(output)))
	}
	if err != nil {
		return fmt.Errorf("%s %s failed: %w: %s", c.command, strings.Join(args, " "), err, lastLines(string(output), 20))
	}
	return nil
}

// lastLines returns at most n trailing lines of s
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
