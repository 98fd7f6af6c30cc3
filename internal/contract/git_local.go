package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// LocalGitRepo implements the GitRepo interface by executing the
// local 'git' binary installed on the machine.
type LocalGitRepo struct {
	root    string
	timeout time.Duration
}

var _ GitRepo = &LocalGitRepo{} // Compile-time check

// NewLocalGitRepo creates a git client bound to the working tree at root.
// A non-positive timeout falls back to DefaultGitTimeout.
func NewLocalGitRepo(root string, timeout time.Duration) *LocalGitRepo {
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}
	return &LocalGitRepo{root: root, timeout: timeout}
}

// Root implements the GitRepo interface.
func (c *LocalGitRepo) Root() string {
	return c.root
}

// Run executes a git command and returns its stdout output.
// Each call is bounded by the client timeout.
func (c *LocalGitRepo) Run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fullArgs := append([]string{"-C", c.root}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	out, err := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("git %s timed out after %s: %w", args[0], c.timeout, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, &ExitError{Args: args, Code: exitErr.ExitCode(), Stderr: stderr}
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v. Ensure Git is installed and available on your PATH", ErrGitUnavailable, err)
	}
	return out, nil
}

// ExitError is a git invocation that ran but exited non-zero.
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("git %s exited with %d: %s", strings.Join(e.Args, " "), e.Code, e.Stderr)
}

// isQuietMiss reports whether err is the silent exit 1 that --quiet lookups use for "absent".
func isQuietMiss(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Code == 1 && exitErr.Stderr == ""
}

// CurrentBranch implements the GitRepo interface.
func (c *LocalGitRepo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	if isQuietMiss(err) {
		return "", nil // detached HEAD
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// HeadRevision implements the GitRepo interface.
func (c *LocalGitRepo) HeadRevision(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "rev-parse", "--verify", "--quiet", "HEAD^{commit}")
	if isQuietMiss(err) {
		return "", nil // no commits yet
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// LocalBranchTip implements the GitRepo interface.
func (c *LocalGitRepo) LocalBranchTip(ctx context.Context, branch string) (string, error) {
	out, err := c.Run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch+"^{commit}")
	if isQuietMiss(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// MergeBase implements the GitRepo interface.
func (c *LocalGitRepo) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := c.Run(ctx, "merge-base", a, b)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == 1 {
		return "", nil // unrelated histories
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// CountCommits implements the GitRepo interface.
func (c *LocalGitRepo) CountCommits(ctx context.Context, from, to string) (int, error) {
	out, err := c.Run(ctx, "rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return n, nil
}

// RepoRoot returns the absolute path to the root of the Git repository
// containing the given context path.
func RepoRoot(ctx context.Context, contextPath string, timeout time.Duration) (string, error) {
	out, err := NewLocalGitRepo(contextPath, timeout).Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%q is not inside a Git repository: %w", contextPath, err)
	}
	return strings.TrimSpace(string(out)), nil
}
