// Package prompt provides resolution UIs: an interactive terminal prompt and
// fixed accept/decline policies for unattended runs.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
)

// Terminal asks the user on a line-oriented reader/writer pair.
type Terminal struct {
	in     *bufio.Reader
	out    io.Writer
	logger *slog.Logger

	mu    sync.Mutex
	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewTerminal creates a prompt reading answers from in and writing questions to out.
func NewTerminal(in io.Reader, out io.Writer, logger *slog.Logger) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, logger: logger, lines: make(chan lineResult)}
}

// readLines is the only reader of in. An answer typed after a prompt was
// cancelled goes to the next prompt.
func (t *Terminal) readLines() {
	for {
		line, err := t.in.ReadString('\n')
		if err != nil && line == "" {
			t.lines <- lineResult{err: err}
			close(t.lines)
			return
		}
		t.lines <- lineResult{line: line}
	}
}

// Launch asks whether to apply token and applies it on yes. Prompts are
// serialized so concurrent requests never interleave on the terminal.
func (t *Terminal) Launch(ctx context.Context, token domain.ResolutionToken) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.once.Do(func() { go t.readLines() })

	if _, err := fmt.Fprintf(t.out, "Location settings need a change: %s\nApply it? [y/N] ", token.Reason); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}

	var res lineResult
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r, ok := <-t.lines:
		if !ok {
			r.err = io.EOF
		}
		res = r
	}

	if res.err != nil {
		if errors.Is(res.err, io.EOF) {
			t.logger.Debug("prompt input closed, declining", "token", token.ID)
			return false, nil
		}
		return false, fmt.Errorf("read answer: %w", res.err)
	}
	if !isYes(res.line) {
		return false, nil
	}
	if err := token.Apply(ctx); err != nil {
		return false, fmt.Errorf("apply settings change: %w", err)
	}
	return true, nil
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Policy answers every resolution the same way without asking anyone.
type Policy struct {
	accept bool
	logger *slog.Logger
}

// Accept returns a Policy that applies every token.
func Accept(logger *slog.Logger) *Policy { return &Policy{accept: true, logger: logger} }

// Decline returns a Policy that rejects every token.
func Decline(logger *slog.Logger) *Policy { return &Policy{accept: false, logger: logger} }

func (p *Policy) Launch(ctx context.Context, token domain.ResolutionToken) (bool, error) {
	if !p.accept {
		p.logger.Info("settings change declined by policy", "reason", token.Reason)
		return false, nil
	}
	if err := token.Apply(ctx); err != nil {
		return false, fmt.Errorf("apply settings change: %w", err)
	}
	p.logger.Info("settings change accepted by policy", "reason", token.Reason)
	return true, nil
}

// New returns the resolution UI for policy: "prompt", "accept" or "decline".
func New(policy string, in io.Reader, out io.Writer, logger *slog.Logger) (domain.ResolutionUI, error) {
	switch policy {
	case "prompt":
		return NewTerminal(in, out, logger), nil
	case "accept":
		return Accept(logger), nil
	case "decline":
		return Decline(logger), nil
	default:
		return nil, fmt.Errorf("unknown resolution policy %q", policy)
	}
}
