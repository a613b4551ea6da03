// Package llmcli shells out to the host llm binary for the two
// capabilities recall borrows from it: locating the interaction log
// and invoking a model.
package llmcli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client invokes the host llm tool as a subprocess.
type Client struct {
	path          string
	locateTimeout time.Duration
	logger        zerolog.Logger
}

// NewClient creates a client for the llm binary at path.
func NewClient(path string, locateTimeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		path:          path,
		locateTimeout: locateTimeout,
		logger:        logger.With().Str("component", "llmcli").Logger(),
	}
}

// LogsPath resolves the location of llm's interaction log database by
// asking the tool itself. The location is host-owned and varies by
// installation, so recall never assumes a fixed path.
func (c *Client) LogsPath(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.locateTimeout)
	defer cancel()

	out, err := c.run(ctx, "logs", "path")
	if err != nil {
		return "", fmt.Errorf("llm logs path: %w", err)
	}

	path := strings.TrimSpace(out)
	if path == "" {
		return "", fmt.Errorf("llm logs path: empty output")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("log store at %s: %w", path, err)
	}
	return path, nil
}

// Prompt invokes model with prompt and returns the generated text.
// The call is not logged by llm (--no-log) so profile maintenance
// never feeds its own output back into the interaction log.
func (c *Client) Prompt(ctx context.Context, model, prompt string) (string, error) {
	args := []string{"prompt", "--no-log"}
	if model != "" {
		args = append(args, "-m", model)
	}
	args = append(args, prompt)

	out, err := c.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("llm prompt: %w", err)
	}
	return out, nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug().Strs("args", args).Msg("Invoking host tool")

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
