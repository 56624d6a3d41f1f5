package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// stderrTailSize bounds how much FFmpeg stderr we keep for error reporting.
const stderrTailSize = 8 * 1024

// Command is a runnable FFmpeg invocation produced by CommandBuilder.
type Command struct {
	Binary string
	Args   []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stderr *tailBuffer
}

// String returns the command line for logging.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Start launches the command. The process is killed when ctx is
// cancelled.
func (c *Command) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)

	var stderr tailBuffer
	cmd.Stderr = &stderr

	c.mu.Lock()
	c.cmd = cmd
	c.stderr = &stderr
	c.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.Binary, err)
	}
	return nil
}

// Wait waits for a started command to finish. On failure the returned
// error carries the tail of stderr.
func (c *Command) Wait(ctx context.Context) error {
	c.mu.Lock()
	cmd := c.cmd
	stderr := c.stderr
	c.mu.Unlock()

	if cmd == nil {
		return fmt.Errorf("%s: not started", c.Binary)
	}

	err := cmd.Wait()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if tail := stderr.Tail(); tail != "" {
			return fmt.Errorf("%s: %w: %s", c.Binary, err, tail)
		}
		return fmt.Errorf("%s: %w", c.Binary, err)
	}
	return nil
}

// Run executes the command and waits for it to finish.
func (c *Command) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	return c.Wait(ctx)
}

// PID returns the process ID of the running command, or 0 if it has
// not started.
func (c *Command) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Pid
	}
	return 0
}

// Kill terminates the process if it is running.
func (c *Command) Kill() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// tailBuffer keeps only the last stderrTailSize bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if t.buf.Len() > stderrTailSize {
		data := t.buf.Bytes()
		trimmed := make([]byte, stderrTailSize)
		copy(trimmed, data[len(data)-stderrTailSize:])
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) Tail() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
