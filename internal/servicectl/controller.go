// Package servicectl drives the proxy's systemd unit.
package servicectl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
)

const defaultTimeout = 30 * time.Second

// Runner executes name with args and returns captured output. A non-nil
// error with *exec.ExitError means the command ran and failed.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

type Controller struct {
	systemctl string
	unit      string
	timeout   time.Duration
	run       Runner
}

type Option func(*Controller)

func WithRunner(r Runner) Option {
	return func(c *Controller) { c.run = r }
}

func WithSystemctl(path string) Option {
	return func(c *Controller) {
		if path != "" {
			c.systemctl = path
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(unit string, opts ...Option) *Controller {
	c := &Controller{
		systemctl: "systemctl",
		unit:      unit,
		timeout:   defaultTimeout,
		run:       execRunner,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Unit() string { return c.unit }

func (c *Controller) Start(ctx context.Context) domain.ServiceResult {
	return c.Do(ctx, domain.ServiceStart)
}

func (c *Controller) Stop(ctx context.Context) domain.ServiceResult {
	return c.Do(ctx, domain.ServiceStop)
}

func (c *Controller) Restart(ctx context.Context) domain.ServiceResult {
	return c.Do(ctx, domain.ServiceRestart)
}

func (c *Controller) Reload(ctx context.Context) domain.ServiceResult {
	return c.Do(ctx, domain.ServiceReload)
}

func (c *Controller) Status(ctx context.Context) domain.ServiceResult {
	return c.Do(ctx, domain.ServiceStatus)
}

// Do runs `systemctl <action> <unit>`. It never returns an error; a command
// that cannot be started is reported as an unsuccessful result.
func (c *Controller) Do(ctx context.Context, action domain.ServiceAction) domain.ServiceResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger.ExternalServiceCall("systemctl", string(action), "unit", c.unit)
	stdout, stderr, err := c.run(ctx, c.systemctl, string(action), c.unit)

	result := domain.ServiceResult{
		Success: err == nil,
		Stdout:  strings.TrimSpace(string(stdout)),
		Stderr:  strings.TrimSpace(string(stderr)),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.ExternalServiceResult("systemctl", string(action), nil, "unit", c.unit)
	case errors.As(err, &exitErr):
		logger.Warn("systemctl returned non-zero status",
			"action", action, "unit", c.unit, "exit_code", exitErr.ExitCode(), "stderr", result.Stderr)
	default:
		logger.ExternalServiceResult("systemctl", string(action), err, "unit", c.unit)
		if result.Stderr == "" {
			result.Stderr = fmt.Sprintf("failed to run %s: %v", c.systemctl, err)
		}
	}
	return result
}

// FormatResult renders a result for an admin chat message.
func FormatResult(unit string, action domain.ServiceAction, r domain.ServiceResult) string {
	status := "OK"
	if !r.Success {
		status = "FAILED"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s\n", action, unit, status)
	if r.Stdout != "" {
		b.WriteString(r.Stdout)
		b.WriteByte('\n')
	}
	if r.Stderr != "" {
		b.WriteString(r.Stderr)
	}
	return strings.TrimSpace(b.String())
}
