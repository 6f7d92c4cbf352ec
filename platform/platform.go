// Package platform drives the translation platform through its command-line
// client (wlc by default). The client owns the API; this package only builds
// invocations.
package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/minios-linux/catsync/command"
)

// DefaultClient is the Weblate command-line client.
const DefaultClient = "wlc"

// Client issues repository operations on the platform.
type Client struct {
	// Program is the client executable.
	Program string
	// URL is the API endpoint; empty uses the client's own configuration.
	URL string
	// Key is the API key; empty uses the client's own configuration.
	Key string
	// Args are appended after the global options.
	Args   []string
	Dir    string
	Runner command.Runner
}

// New returns a client for program using runner.
func New(program string, runner command.Runner) *Client {
	if program == "" {
		program = DefaultClient
	}
	return &Client{Program: program, Runner: runner}
}

// Path builds the object path of a project or component: "weblate" or
// "weblate/application".
func Path(project, component string) string {
	if component == "" {
		return project
	}
	return project + "/" + component
}

func (c *Client) run(ctx context.Context, op, path string) ([]byte, error) {
	var args []string
	if c.URL != "" {
		args = append(args, "--url", strings.TrimRight(c.URL, "/")+"/")
	}
	if c.Key != "" {
		args = append(args, "--key", c.Key)
	}
	args = append(args, c.Args...)
	args = append(args, op)
	if path != "" {
		args = append(args, path)
	}

	out, err := c.Runner.Run(ctx, command.Cmd{Dir: c.Dir, Name: c.Program, Args: args, Secrets: []string{c.Key}})
	if err != nil {
		return out, fmt.Errorf("platform %s %s: %w", op, path, err)
	}
	return out, nil
}

// Lock stops the platform from accepting translations for path.
func (c *Client) Lock(ctx context.Context, path string) error {
	_, err := c.run(ctx, "lock", path)
	return err
}

// Unlock re-enables translating path.
func (c *Client) Unlock(ctx context.Context, path string) error {
	_, err := c.run(ctx, "unlock", path)
	return err
}

// Commit commits pending platform changes into the platform's repository.
func (c *Client) Commit(ctx context.Context, path string) error {
	_, err := c.run(ctx, "commit", path)
	return err
}

// Push pushes the platform's repository to the upstream remote.
func (c *Client) Push(ctx context.Context, path string) error {
	_, err := c.run(ctx, "push", path)
	return err
}

// Pull makes the platform pull upstream changes.
func (c *Client) Pull(ctx context.Context, path string) error {
	_, err := c.run(ctx, "pull", path)
	return err
}

// Stats returns the client's statistics output for path verbatim.
func (c *Client) Stats(ctx context.Context, path string) (string, error) {
	out, err := c.run(ctx, "stats", path)
	return string(out), err
}
