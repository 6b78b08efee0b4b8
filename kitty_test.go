package kterm

import (
	"encoding/base64"
	"testing"
)

func TestParseKittyGraphics_Basic(t *testing.T) {
	data := []byte("Ga=T,f=32,s=2,v=2;AAAAAAAAAAAAAAAAAAAAAAA=")
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Action != KittyActionTransmitDisplay {
		t.Errorf("expected action T, got %c", cmd.Action)
	}
	if cmd.Format != KittyFormatRGBA {
		t.Errorf("expected format 32, got %d", cmd.Format)
	}
	if cmd.Width != 2 {
		t.Errorf("expected width 2, got %d", cmd.Width)
	}
	if cmd.Height != 2 {
		t.Errorf("expected height 2, got %d", cmd.Height)
	}
}

func TestParseKittyGraphics_Query(t *testing.T) {
	data := []byte("Ga=q,i=1;")
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Action != KittyActionQuery {
		t.Errorf("expected action q, got %c", cmd.Action)
	}
	if cmd.ImageID != 1 {
		t.Errorf("expected image ID 1, got %d", cmd.ImageID)
	}
}

func TestParseKittyGraphics_Delete(t *testing.T) {
	data := []byte("Ga=d,d=a;")
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Action != KittyActionDelete {
		t.Errorf("expected action d, got %c", cmd.Action)
	}
	if cmd.Delete != KittyDeleteAll {
		t.Errorf("expected delete all, got %c", cmd.Delete)
	}
}

func TestParseKittyGraphics_Chunked(t *testing.T) {
	data := []byte("Ga=T,m=1;AAAA")
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cmd.More {
		t.Error("expected more=true")
	}
}

func TestParseKittyGraphics_Placement(t *testing.T) {
	data := []byte("Ga=p,i=1,c=10,r=5;")
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Cols != 10 {
		t.Errorf("expected cols 10, got %d", cmd.Cols)
	}
	if cmd.Rows != 5 {
		t.Errorf("expected rows 5, got %d", cmd.Rows)
	}
}

func TestParseKittyGraphics_Quiet(t *testing.T) {
	data := []byte("Ga=T,q=2;")
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Quiet != 2 {
		t.Errorf("expected quiet=2, got %d", cmd.Quiet)
	}
}

func TestKittyCommand_DecodeRGBA(t *testing.T) {
	rgba := make([]byte, 16)
	for i := range rgba {
		rgba[i] = 255
	}
	payload := base64.StdEncoding.EncodeToString(rgba)

	cmd := &KittyCommand{
		Format:  KittyFormatRGBA,
		Width:   2,
		Height:  2,
		Payload: rgba,
	}

	data, w, h, err := cmd.decodeImageData(1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 2 || h != 2 {
		t.Errorf("expected 2x2, got %dx%d", w, h)
	}
	if len(data) != 16 {
		t.Errorf("expected 16 bytes, got %d", len(data))
	}
	_ = payload
}

func TestKittyCommand_DecodeRGB(t *testing.T) {
	rgb := make([]byte, 12)
	for i := range rgb {
		rgb[i] = 128
	}

	cmd := &KittyCommand{
		Format:  KittyFormatRGB,
		Width:   2,
		Height:  2,
		Payload: rgb,
	}

	data, w, h, err := cmd.decodeImageData(1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 2 || h != 2 {
		t.Errorf("expected 2x2, got %dx%d", w, h)
	}
	if len(data) != 16 {
		t.Errorf("expected 16 bytes RGBA, got %d", len(data))
	}
	if data[3] != 255 {
		t.Errorf("expected alpha 255, got %d", data[3])
	}
}

func TestKittyCommand_DecodeRejectsOversizedImage(t *testing.T) {
	cmd := &KittyCommand{
		Format: KittyFormatRGBA,
		Width:  1000,
		Height: 1000,
	}
	if _, _, _, err := cmd.decodeImageData(100); err == nil {
		t.Error("expected oversized image to be rejected against the pixel budget")
	}
}

func TestFormatKittyResponse(t *testing.T) {
	resp := FormatKittyResponse(42, "", false)
	expected := "\x1b_Gi=42;OK\x1b\\"
	if resp != expected {
		t.Errorf("expected %q, got %q", expected, resp)
	}

	respErr := FormatKittyResponse(0, "ENOENT", true)
	expectedErr := "\x1b_G;ENOENT\x1b\\"
	if respErr != expectedErr {
		t.Errorf("expected %q, got %q", expectedErr, respErr)
	}
}

func TestKittyImageTable_TransmitAndGet(t *testing.T) {
	tbl := newKittyImageTable()
	rgba := make([]byte, 16)
	cmd := &KittyCommand{ImageID: 7, Format: KittyFormatRGBA, Width: 2, Height: 2, Payload: rgba}

	img, err := tbl.Transmit(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.ID != 7 {
		t.Errorf("expected stored image id 7, got %d", img.ID)
	}
	got, ok := tbl.Get(7)
	if !ok || got != img {
		t.Error("expected Get to return the just-transmitted image")
	}
}

func TestKittyImageTable_DeleteAll(t *testing.T) {
	tbl := newKittyImageTable()
	cmd := &KittyCommand{ImageID: 1, Format: KittyFormatRGBA, Width: 1, Height: 1, Payload: make([]byte, 4)}
	if _, err := tbl.Transmit(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tbl.Delete(&KittyCommand{Action: KittyActionDelete, Delete: KittyDeleteAll})
	if _, ok := tbl.Get(1); ok {
		t.Error("expected image to be removed after delete-all")
	}
}

func TestScaleRGBA_NoopWhenSizeMatches(t *testing.T) {
	px := []byte{1, 2, 3, 4}
	got := scaleRGBA(px, 1, 1, 1, 1)
	if &got[0] != &px[0] {
		t.Error("expected scaleRGBA to return the same backing array when target size matches")
	}
}

func TestScaleRGBA_ResamplesToTargetDimensions(t *testing.T) {
	px := make([]byte, 2*2*4)
	for i := range px {
		px[i] = 0xff
	}
	got := scaleRGBA(px, 2, 2, 4, 8)
	if len(got) != 4*8*4 {
		t.Fatalf("expected %d bytes for a 4x8 raster, got %d", 4*8*4, len(got))
	}
	for i, b := range got {
		if b != 0xff {
			t.Fatalf("byte %d = %d, want 0xff (solid source should upscale to a solid fill)", i, b)
		}
	}
}
