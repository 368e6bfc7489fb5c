// ABOUTME: Key sources for the completion gate: channel-fed (RPC) and terminal raw mode (CLI)
// ABOUTME: Terminal bytes are mapped to key names such as "tab", "enter", and "esc"

package gate

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"
)

// KeyChan is a KeySource fed by another goroutine.
type KeyChan chan string

// ReadKey waits for the next key or ctx.
func (c KeyChan) ReadKey(ctx context.Context) (string, error) {
	select {
	case k, ok := <-c:
		if !ok {
			return "", fmt.Errorf("key source closed")
		}
		return k, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// KeyName maps raw terminal input to a key name.
func KeyName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	switch {
	case len(b) == 1 && b[0] == '\t':
		return "tab"
	case len(b) == 1 && (b[0] == '\r' || b[0] == '\n'):
		return "enter"
	case len(b) == 1 && b[0] == 0x1b:
		return "esc"
	case len(b) == 1 && b[0] == 0x7f:
		return "backspace"
	case len(b) == 1 && b[0] == ' ':
		return "space"
	case len(b) == 1 && b[0] < 0x20:
		return "C-" + string(rune('a'+b[0]-1))
	case b[0] == 0x1b:
		return "esc-seq"
	}
	return string(b)
}

// TerminalKeys reads single keys from a terminal in raw mode.
type TerminalKeys struct {
	In *os.File
}

// ReadKey puts the terminal in raw mode for one keypress.
func (t TerminalKeys) ReadKey(ctx context.Context) (string, error) {
	in := t.In
	if in == nil {
		in = os.Stdin
	}
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return "", fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	type read struct {
		key string
		err error
	}
	ch := make(chan read, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := in.Read(buf)
		ch <- read{key: KeyName(buf[:n]), err: err}
	}()
	select {
	case r := <-ch:
		return r.key, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
