package kterm

// Providers are optional host hooks a Session calls out to for events the
// core itself has no opinion on (ring the terminal bell, surface a title
// change, resolve a clipboard). None are required: a Session with no
// providers attached still updates its own internal state (title string,
// clipboard map) correctly, it just has nobody to notify.

// BellProvider handles bell/beep events triggered by BEL (0x07).
type BellProvider interface {
	Ring()
}

// NoopBell ignores all bell events; the default when no provider is set.
type NoopBell struct{}

func (NoopBell) Ring() {}

// TitleProvider is notified of window title changes (OSC 0, 1, 2) in
// addition to the Session's own Title()/titleStack bookkeeping.
type TitleProvider interface {
	SetTitle(title string)
	PushTitle()
	PopTitle()
}

// NoopTitle ignores all title operations.
type NoopTitle struct{}

func (NoopTitle) SetTitle(title string) {}
func (NoopTitle) PushTitle()            {}
func (NoopTitle) PopTitle()             {}

// ClipboardProvider backs OSC 52 clipboard read/write with host storage
// (e.g. the real system clipboard) instead of the Session's in-memory
// map. clipboard is the OSC 52 selector byte ('c' clipboard, 'p' primary).
type ClipboardProvider interface {
	Read(clipboard byte) string
	Write(clipboard byte, data []byte)
}

// NoopClipboard reads every selector as empty and discards writes. Once
// installed it answers OSC 52 queries in place of the Session's internal
// clipboard map (so they read back empty); writes still update that map.
type NoopClipboard struct{}

func (NoopClipboard) Read(clipboard byte) string        { return "" }
func (NoopClipboard) Write(clipboard byte, data []byte) {}

// RecordingProvider captures raw input bytes before parsing, for replay
// or debugging (spec.md §4.7 RAWDUMP mirrors this same raw-byte stream
// into another session rather than to a recorder, but the capture point
// is the same: every byte WriteBytes receives).
type RecordingProvider interface {
	Record(data []byte)
}

// NoopRecording discards all input recordings.
type NoopRecording struct{}

func (NoopRecording) Record([]byte) {}

var (
	_ BellProvider      = NoopBell{}
	_ TitleProvider     = NoopTitle{}
	_ ClipboardProvider = NoopClipboard{}
	_ RecordingProvider = NoopRecording{}
)
