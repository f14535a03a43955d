package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ErrInterrupted is the cancel cause of a context ended by a signal.
var ErrInterrupted = errors.New("interrupted")

// InterruptHandler turns the first SIGINT or SIGTERM into a graceful
// cancellation and a second one into an immediate exit.
type InterruptHandler struct {
	out     io.Writer
	message string
	hint    string
	force   func()

	mu      sync.Mutex
	cancel  context.CancelCauseFunc
	signals int
}

// NewInterruptHandler creates a handler that prints message, and hint when
// it is not empty, on the first interrupt.
func NewInterruptHandler(out io.Writer, message, hint string) *InterruptHandler {
	if out == nil {
		out = os.Stdout
	}
	return &InterruptHandler{
		out:     out,
		message: message,
		hint:    hint,
		force:   func() { os.Exit(130) },
	}
}

// HandleInterrupts returns a child of ctx canceled with ErrInterrupted on
// the first signal. Listening stops if ctx ends some other way.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancelCause(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		done := ctx.Done()
		for {
			select {
			case <-sigs:
				if h.interrupt() > 1 {
					h.force()
					return
				}
				// Stay subscribed for the second signal.
				done = nil
			case <-done:
				return
			}
		}
	}()

	return ctx
}

// interrupt records a signal and returns how many have arrived. Only the
// first prints and cancels.
func (h *InterruptHandler) interrupt() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.signals++
	if h.signals > 1 {
		return h.signals
	}

	msg := "\n" + FormatWarning(h.message)
	if h.hint != "" {
		msg += "\n" + FormatInfo(h.hint)
	}
	msg += "\n" + SubtleStyle.Render("Press Ctrl+C again to exit immediately.")
	if _, err := fmt.Fprintln(h.out, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
	if h.cancel != nil {
		h.cancel(ErrInterrupted)
	}
	return h.signals
}

// WasInterrupted reports whether at least one signal arrived.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.signals > 0
}
