package kterm

import "github.com/kterm/kterm/internal/klog"

// MaxSessions bounds how many sessions a Terminal multiplexer holds
// (spec.md §4.5 "Up to 4 sessions").
const MaxSessions = 4

const (
	defaultCols           = 80
	defaultRows           = 24
	defaultScrollbackRows = 2000
	defaultMaxOpsPerFlush = 256
	defaultMaxCharsPerFrame = 1 << 16
)

// Config configures a Terminal multiplexer at construction time. The zero
// value is not valid on its own; use NewConfig for sane defaults and
// override only what the host cares about (teacher's NewTerminal
// constructor-options pattern, generalized into a plain struct per
// spec.md §6).
type Config struct {
	Cols, Rows     int
	ScrollbackRows int

	// StrictMode is carried on Config but not read when sessions are
	// created: every session's parser keeps its default strict handling of
	// signed parameters (negatives clamp to 0), and malformed sequences do
	// not produce EventError (spec.md §4.3 "Signed parameters").
	StrictMode bool

	MaxSixelWidth       int
	MaxSixelHeight      int
	MaxKittyImagePixels int
	MaxOpsPerFlush      int
	MaxCharsPerFrame    int

	ResponseSink    OutputSink
	ErrorCallback   klog.Callback
	GatewayCallback GatewayCallback

	Logger klog.Logger
}

// NewConfig returns a Config with the spec's default geometry and
// resource budgets, logging disabled until a host opts in.
func NewConfig() Config {
	return Config{
		Cols:                defaultCols,
		Rows:                defaultRows,
		ScrollbackRows:      defaultScrollbackRows,
		MaxSixelWidth:       4096,
		MaxSixelHeight:      4096,
		MaxKittyImagePixels: defaultMaxKittyImagePixels,
		MaxOpsPerFlush:      defaultMaxOpsPerFlush,
		MaxCharsPerFrame:    defaultMaxCharsPerFrame,
		Logger:              klog.Nop(),
	}
}
