// ABOUTME: Pseudo-terminal stdout for back ends that only flush when attached to a TTY
// ABOUTME: The slave side is put in raw mode so output bytes arrive untranslated

package runner

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// startWithPTY starts cmd with stdout on a new pseudo-terminal and returns
// the master side. Stdin and stderr are left as configured.
func startWithPTY(cmd *exec.Cmd) (io.ReadCloser, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	// Raw mode disables newline translation and echo.
	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("raw pty: %w", err)
	}
	cmd.Stdout = tty
	if err := cmd.Start(); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, err
	}
	// The child holds its own copy; closing ours lets reads end with EIO on exit.
	tty.Close()
	return ptmx, nil
}
