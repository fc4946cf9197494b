// Package gitsync fast-forwards the knowledge repository from its remote.
package gitsync

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single pull.
const DefaultTimeout = 30 * time.Second

const upToDate = "Already up to date"

// Git pulls a working tree with `git pull --ff-only`.
type Git struct {
	Dir     string
	Timeout time.Duration
	// Binary defaults to "git" on PATH.
	Binary string
}

// New returns a Git puller for dir.
func New(dir string, timeout time.Duration) *Git {
	return &Git{Dir: dir, Timeout: timeout}
}

// Pull fast-forwards the tree. changed is true when the pull succeeded and
// git did not report the tree as already up to date.
func (g *Git) Pull(ctx context.Context) (changed bool, err error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "pull", "--ff-only")
	cmd.Dir = g.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("gitsync: pull: %w", ctx.Err())
		}
		return false, fmt.Errorf("gitsync: pull: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return !strings.Contains(stdout.String(), upToDate), nil
}
