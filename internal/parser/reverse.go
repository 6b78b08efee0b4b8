package parser

import "fmt"

// Modifier bits for the reverse (key event → bytes) translator, matching
// the xterm/Kitty modifier encoding spec.md §4.3 names (shift=1, alt=2,
// ctrl=4, super=8 — the packed CSI-u modifier value is these bits plus 1).
const (
	ModShift = 1 << iota
	ModAlt
	ModCtrl
	ModSuper
)

// EncodeMode carries the session state the reverse translator needs:
// DECCKM (application cursor keys), application keypad, and the active
// Kitty keyboard progressive-enhancement flags (0 = legacy mode).
type EncodeMode struct {
	ApplicationCursorKeys bool
	ApplicationKeypad     bool
	KittyFlags            uint8
}

// Named functional-key codes, matching the Kitty keyboard protocol's
// published Unicode Private Use Area assignments (spec.md §4.3 "Reverse
// parser").
const (
	KeyEscape    = 27
	KeyEnter     = 13
	KeyTab       = 9
	KeyBackspace = 127
	KeyInsert    = 57348
	KeyDelete    = 57349
	KeyLeft      = 57350
	KeyRight     = 57351
	KeyUp        = 57352
	KeyDown      = 57353
	KeyPageUp    = 57354
	KeyPageDown  = 57355
	KeyHome      = 57356
	KeyEnd       = 57357
)

// legacyArrowFinal maps the four arrow keycodes to their CSI/SS3 final
// byte in the classic (non-Kitty) xterm encoding.
func legacyArrowFinal(keycode int32) (byte, bool) {
	switch keycode {
	case KeyUp:
		return 'A', true
	case KeyDown:
		return 'B', true
	case KeyRight:
		return 'C', true
	case KeyLeft:
		return 'D', true
	default:
		return 0, false
	}
}

// Encode translates one key event into the bytes the host should write to
// its pty/socket, honoring the session's current cursor-key, keypad, and
// Kitty keyboard mode (spec.md §4.3 "Reverse parser (input translation)").
// keycode is either a plain ASCII/Unicode codepoint for character keys or
// one of the Key* functional constants above. mods is a bitmask of
// ModShift|ModAlt|ModCtrl|ModSuper. text, when non-empty, is the
// pre-decoded UTF-8 the front-end captured for the key (e.g. from an IME).
func Encode(keycode int32, mods uint8, text string, mode EncodeMode) []byte {
	if mode.KittyFlags != 0 {
		return encodeKitty(keycode, mods, text)
	}
	return encodeLegacy(keycode, mods, text, mode)
}

func encodeKitty(keycode int32, mods uint8, text string) []byte {
	modVal := 1 + int(mods)
	if modVal == 1 && text != "" && keycode < 57344 {
		return []byte(text)
	}
	if modVal == 1 {
		return []byte(fmt.Sprintf("\x1b[%du", keycode))
	}
	return []byte(fmt.Sprintf("\x1b[%d;%du", keycode, modVal))
}

func encodeLegacy(keycode int32, mods uint8, text string, mode EncodeMode) []byte {
	if final, ok := legacyArrowFinal(keycode); ok {
		if mods != 0 {
			return []byte(fmt.Sprintf("\x1b[1;%d%c", 1+int(mods), final))
		}
		if mode.ApplicationCursorKeys {
			return []byte{0x1b, 'O', final}
		}
		return []byte{0x1b, '[', final}
	}

	switch keycode {
	case KeyHome:
		return escFinal(mods, 'H')
	case KeyEnd:
		return escFinal(mods, 'F')
	case KeyInsert:
		return escTilde(mods, 2)
	case KeyDelete:
		return escTilde(mods, 3)
	case KeyPageUp:
		return escTilde(mods, 5)
	case KeyPageDown:
		return escTilde(mods, 6)
	case KeyEnter:
		return []byte{'\r'}
	case KeyTab:
		return []byte{'\t'}
	case KeyBackspace:
		return []byte{0x7f}
	case KeyEscape:
		return []byte{0x1b}
	}

	if mods&ModCtrl != 0 && keycode >= 'a' && keycode <= 'z' {
		return []byte{byte(keycode) & 0x1f}
	}
	if mods&ModCtrl != 0 && keycode >= 'A' && keycode <= 'Z' {
		return []byte{byte(keycode) & 0x1f}
	}
	if text != "" {
		return []byte(text)
	}
	if keycode > 0 && keycode < 0x80 {
		return []byte{byte(keycode)}
	}
	return nil
}

func escFinal(mods uint8, final byte) []byte {
	if mods != 0 {
		return []byte(fmt.Sprintf("\x1b[1;%d%c", 1+int(mods), final))
	}
	return []byte{0x1b, '[', final}
}

func escTilde(mods uint8, code int) []byte {
	if mods != 0 {
		return []byte(fmt.Sprintf("\x1b[%d;%d~", code, 1+int(mods)))
	}
	return []byte(fmt.Sprintf("\x1b[%d~", code))
}
