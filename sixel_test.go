package kterm

import "testing"

func TestParseSixel_SimplePixel(t *testing.T) {
	// Single sixel '~' = 63 (all 6 pixels)
	data := []byte("~")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 1 {
		t.Errorf("expected width 1, got %d", img.Width)
	}
	if img.Height != 6 {
		t.Errorf("expected height 6, got %d", img.Height)
	}
}

func TestParseSixel_MultipleColumns(t *testing.T) {
	data := []byte("~~~")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 3 {
		t.Errorf("expected width 3, got %d", img.Width)
	}
	if img.Height != 6 {
		t.Errorf("expected height 6, got %d", img.Height)
	}
}

func TestParseSixel_NewLine(t *testing.T) {
	// Two rows of sixels (each row is 6 pixels high)
	data := []byte("~-~")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 1 {
		t.Errorf("expected width 1, got %d", img.Width)
	}
	if img.Height != 12 {
		t.Errorf("expected height 12, got %d", img.Height)
	}
}

func TestParseSixel_CarriageReturn(t *testing.T) {
	data := []byte("~$~")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 1 {
		t.Errorf("expected width 1, got %d", img.Width)
	}
}

func TestParseSixel_Repeat(t *testing.T) {
	// Repeat 5 times
	data := []byte("!5~")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 5 {
		t.Errorf("expected width 5, got %d", img.Width)
	}
}

func TestParseSixel_ColorRGB(t *testing.T) {
	// Define color 1 as red (RGB: 100,0,0 = full red), select, draw
	data := []byte("#1;2;100;0;0#1~")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 1 || img.Height != 6 {
		t.Errorf("unexpected dimensions: %dx%d", img.Width, img.Height)
	}
	if len(img.Pixels) == 0 {
		t.Fatal("expected decoded pixels")
	}
	px := img.Pixels[0]
	if px.R != 255 || px.G != 0 || px.B != 0 {
		t.Errorf("expected red (255,0,0), got (%d,%d,%d)", px.R, px.G, px.B)
	}
}

func TestParseSixel_ColorHLS(t *testing.T) {
	// A color-select/define sequence with a non-RGB format (ignored) should
	// still parse without error.
	data := []byte("#2;1;120;50;100#2~")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 1 {
		t.Errorf("expected width 1, got %d", img.Width)
	}
}

func TestParseSixel_Transparent(t *testing.T) {
	// P2=1 means transparent background
	params := []int{0, 1, 0}
	data := []byte("~")
	img, err := ParseSixel(newSixelState(), params, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !img.Transparent {
		t.Error("expected transparent background")
	}
}

func TestParseSixel_Empty(t *testing.T) {
	data := []byte("")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 0 || img.Height != 0 {
		t.Errorf("expected 0x0, got %dx%d", img.Width, img.Height)
	}
}

func TestParseSixel_ComplexImage(t *testing.T) {
	data := []byte("#0;2;0;0;0#1;2;100;0;0#0!10~-#1!10~")
	img, err := ParseSixel(newSixelState(), nil, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 10 {
		t.Errorf("expected width 10, got %d", img.Width)
	}
	if img.Height != 12 {
		t.Errorf("expected height 12, got %d", img.Height)
	}
}

func TestParseSixel_SizeCapped(t *testing.T) {
	st := newSixelState()
	st.maxWidth = 2
	// three columns requested, decoder should cap output width at 2
	img, err := ParseSixel(st, nil, []byte("~~~"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 2 {
		t.Errorf("expected width capped to 2, got %d", img.Width)
	}
}
