// Package vcs wraps the git client for the steps of the sync pipeline.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minios-linux/catsync/command"
)

// ErrNothingToCommit is returned by Commit when the index has no changes.
var ErrNothingToCommit = errors.New("nothing to commit")

// Git runs git in a working tree.
type Git struct {
	Program string
	Dir     string
	Remote  string
	// Branch is passed to pull and push; empty follows the upstream.
	Branch string
	Runner command.Runner
}

// New returns a Git for the working tree in dir.
func New(dir string, runner command.Runner) *Git {
	return &Git{Program: "git", Dir: dir, Remote: "origin", Runner: runner}
}

func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	return g.Runner.Run(ctx, command.Cmd{Dir: g.Dir, Name: g.Program, Args: args})
}

func (g *Git) remoteArgs() []string {
	if g.Branch == "" {
		return nil
	}
	return []string{g.Remote, g.Branch}
}

// Pull rebases local commits onto the remote.
func (g *Git) Pull(ctx context.Context) error {
	if _, err := g.run(ctx, append([]string{"pull", "--rebase"}, g.remoteArgs()...)...); err != nil {
		return fmt.Errorf("git pull: %w", err)
	}
	return nil
}

// Add stages paths; globs are expanded by git.
func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if _, err := g.run(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// Commit records the staged changes. It returns ErrNothingToCommit when
// nothing is staged.
func (g *Git) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return ErrNothingToCommit
	}
	var exitErr *command.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		return fmt.Errorf("git diff: %w", err)
	}

	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// Push pushes the current branch.
func (g *Git) Push(ctx context.Context) error {
	if _, err := g.run(ctx, append([]string{"push"}, g.remoteArgs()...)...); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// Ignored reports whether git ignores path.
func (g *Git) Ignored(ctx context.Context, path string) (bool, error) {
	_, err := g.run(ctx, "check-ignore", "-q", "--", path)
	if err == nil {
		return true, nil
	}
	var exitErr *command.ExitError
	if errors.As(err, &exitErr) && exitErr.Code == 1 {
		return false, nil
	}
	return false, fmt.Errorf("git check-ignore: %w", err)
}

// Changed lists modified, added or untracked files under paths.
func (g *Git) Changed(ctx context.Context, paths ...string) ([]string, error) {
	args := []string{"status", "--porcelain"}
	if len(paths) > 0 {
		args = append(append(args, "--"), paths...)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	return parsePorcelain(string(out)), nil
}

func parsePorcelain(out string) []string {
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		name := line[3:]
		if _, to, ok := strings.Cut(name, " -> "); ok {
			name = to
		}
		files = append(files, strings.Trim(name, `"`))
	}
	return files
}
