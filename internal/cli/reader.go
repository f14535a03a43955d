package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

type inputLine struct {
	text string
	err  error
}

// InputReader reads lines from a terminal without tying up the caller: a
// single pump goroutine owns the underlying reader and hands lines over a
// channel, so a canceled prompt never loses the next line.
type InputReader struct {
	src   *bufio.Reader
	lines chan inputLine
	start sync.Once
}

// NewInputReader wraps src. The pump starts on the first read.
func NewInputReader(src io.Reader) *InputReader {
	if src == nil {
		panic("cli: nil input source")
	}
	return &InputReader{
		src:   bufio.NewReader(src),
		lines: make(chan inputLine),
	}
}

func (r *InputReader) pump() {
	defer close(r.lines)
	for {
		text, err := r.src.ReadString('\n')
		if text != "" {
			r.lines <- inputLine{text: text}
		}
		if err != nil {
			r.lines <- inputLine{err: err}
			return
		}
	}
}

// ReadLine returns the next line with surrounding whitespace removed. It
// returns io.EOF once input is exhausted and ErrInputCancelled if ctx ends
// first.
func (r *InputReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.start.Do(func() { go r.pump() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case line, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		if line.err != nil {
			return "", line.err
		}
		return strings.TrimSpace(line.text), nil
	}
}

// Confirm asks a yes/no question on w. Only y or yes (any case) count as yes;
// end of input is a no.
func Confirm(ctx context.Context, r *InputReader, w io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprint(w, FormatPrompt(question+" [y/N]")); err != nil {
		return false, err
	}

	answer, err := r.ReadLine(ctx)
	switch {
	case errors.Is(err, io.EOF):
		return false, nil
	case err != nil:
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
