// Command ktermd is an example host: it spawns the user's shell behind a
// pty, feeds the pty's output through a kterm Session, and periodically
// prints the session's rendered text to stdout. It exists to exercise
// the library end to end, not as a production terminal emulator.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"

	"github.com/kterm/kterm"
	"github.com/kterm/kterm/internal/klog"
)

func main() {
	shell := flag.String("shell", defaultShell(), "shell to spawn behind the pty")
	cols := flag.Int("cols", 80, "terminal width")
	rows := flag.Int("rows", 24, "terminal height")
	flag.Parse()

	if err := run(*shell, *cols, *rows); err != nil {
		fmt.Fprintln(os.Stderr, "ktermd:", err)
		os.Exit(1)
	}
}

func defaultShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}

func run(shell string, cols, rows int) error {
	cmd := exec.Command(shell)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return fmt.Errorf("starting pty: %w", err)
	}
	defer ptmx.Close()

	cfg := kterm.NewConfig()
	cfg.Cols, cfg.Rows = cols, rows
	cfg.Logger = klog.Stderr(nil)
	term := kterm.NewTerminal(cfg)
	session := term.Active()

	done := make(chan error, 1)
	go pumpPtyIntoSession(ptmx, session, done)

	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			session.Flush()
			renderFrame(session)
		}
	}
}

// pumpPtyIntoSession reads the child's output in a loop and feeds each
// chunk to the session's parser — the host's half of the core's "byte
// stream in" contract (spec.md §6).
func pumpPtyIntoSession(r io.Reader, s *kterm.Session, done chan<- error) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.WriteBytes(buf[:n])
		}
		if err != nil {
			done <- err
			return
		}
	}
}

// renderFrame redraws the terminal by moving the cursor home and
// printing the session's current text snapshot — a minimal stand-in for
// a real renderer, which would instead walk SnapshotDetailFull's cells
// and styles.
func renderFrame(s *kterm.Session) {
	fmt.Print("\x1b[H\x1b[2J")
	snap := s.Snapshot(kterm.SnapshotDetailText)
	for _, line := range snap.Lines {
		fmt.Println(line.Text)
	}
}
