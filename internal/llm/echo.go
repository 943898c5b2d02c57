package llm

import (
	"context"
	"strings"
	"time"
)

// Echo answers with the last user message, one word at a time. It needs no
// credentials and is the default for local development.
type Echo struct {
	delay time.Duration
}

func NewEcho(delay time.Duration) *Echo { return &Echo{delay: delay} }

func (e *Echo) Name() string { return "echo" }

func (e *Echo) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Text()
			break
		}
	}
	if last == "" {
		last = "Hello! How can I help?"
	}

	words := strings.Fields(last)
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		if e.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := onDelta(w); err != nil {
			return err
		}
	}
	return nil
}
