// Package kterm is a headless VT100-through-xterm/Kitty terminal-emulator
// core: a parser, a cell grid, and a Session that turns bytes into grid
// mutations without ever touching a display.
//
// # Quick Start
//
//	s := kterm.NewSession(0, 24, 80, 2000, klog.Nop())
//	s.WriteBytes([]byte("\x1b[31mHello \x1b[32mWorld\x1b[0m!"))
//	s.Flush()
//	snap := s.Snapshot(kterm.SnapshotDetailText)
//	fmt.Println(snap.Lines[0].Text) // "Hello World!"
//
// # Architecture
//
//   - [Session]: processes a byte stream for one terminal, owning its own
//     cursor, modes, primary/alternate grids, and graphics sub-state
//   - [Grid]: a ring-buffer-backed 2D cell store with scrollback
//   - [Cell]: one character cell, colors, attributes, and an optional
//     image/hyperlink reference
//   - [OpQueue] / [Flusher]: batches grid mutations so a resize queued
//     mid-burst is applied atomically with respect to ops around it
//   - [Terminal]: a multiplexer holding up to [MaxSessions] Sessions
//
// # Byte intake
//
// WriteBytes feeds the parser; printable runes and valid UTF-8 become
// glyphs, ESC-introduced sequences are interpreted against the active
// Session:
//
//	s.WriteBytes(ptyOutput)
//	s.Flush()
//
// # Dual buffers
//
// Each Session holds a primary grid (with scrollback) and an alternate
// grid (none), switched by DECSET/DECRST ?1049:
//
//	if s.IsAlternateScreen() {
//	    // full-screen app (vim, htop, ...) is active
//	}
//
// # Providers
//
// Providers are optional host hooks with no-op defaults — see
// [BellProvider], [TitleProvider], [ClipboardProvider], and
// [RecordingProvider].
//
// # Snapshots and persistence
//
// [Session.Snapshot] captures render-ready state at three levels of
// detail (text, styled segments, full per-cell data); [Session.SerializeSession]
// and [Session.RestoreSession] round-trip the full grid through the
// KTERM_SES_V1 binary format.
//
// # Gateway protocol
//
// DCS-framed Gateway commands (SET/GET/RESET/EXT/PIPE/RAWDUMP) extend the
// VT core without inventing new escape sequences; see [GatewayCallback]
// for hooking unregistered extensions.
//
// # Thread safety
//
// A Session is not safe for concurrent use from multiple goroutines;
// callers that need that synchronize externally, the same way the
// Flusher assumes single-threaded access between Flush calls.
package kterm
