package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputReader_ReadLine(t *testing.T) {
	cases := map[string]string{
		"answer\n":      "answer",
		"  padded  \n":  "padded",
		"\n":            "",
		"no newline":    "no newline",
		"crlf line\r\n": "crlf line",
	}

	for input, want := range cases {
		t.Run(strings.TrimSpace(input), func(t *testing.T) {
			got, err := NewInputReader(strings.NewReader(input)).ReadLine(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestInputReader_ContextCancellation(t *testing.T) {
	t.Run("already canceled", func(t *testing.T) {
		nbr := NewInputReader(strings.NewReader("ignored\n"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := nbr.ReadLine(ctx)
		assert.Equal(t, ErrInputCancelled, err)
	})

	t.Run("canceled while waiting", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer func() { _ = pr.Close() }()
		defer func() { _ = pw.Close() }()

		nbr := NewInputReader(pr)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := nbr.ReadLine(ctx)
		assert.Equal(t, ErrInputCancelled, err)
	})
}

func TestInputReader_SequentialLines(t *testing.T) {
	nbr := NewInputReader(strings.NewReader("first\nsecond\n"))
	ctx := context.Background()

	for _, want := range []string{"first", "second"} {
		got, err := nbr.ReadLine(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := nbr.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)

	_, err = nbr.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF, "exhausted reader keeps reporting EOF")
}

func TestInputReader_CanceledPromptKeepsNextLine(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()

	nbr := NewInputReader(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := nbr.ReadLine(ctx)
	require.Equal(t, ErrInputCancelled, err)

	go func() {
		_, _ = pw.Write([]byte("later\n"))
		_ = pw.Close()
	}()

	line, err := nbr.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "later", line)
}

func TestConfirm(t *testing.T) {
	answers := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		" yes ": true,
		"n\n":   false,
		"yep\n": false,
		"\n":    false,
		"":      false,
	}

	for input, want := range answers {
		t.Run(strings.TrimSpace(input), func(t *testing.T) {
			var out bytes.Buffer
			ok, err := Confirm(context.Background(), NewInputReader(strings.NewReader(input)), &out, "Deactivate 2 offers?")
			require.NoError(t, err)
			assert.Equal(t, want, ok)
			assert.Contains(t, out.String(), "Deactivate 2 offers? [y/N]")
		})
	}
}
