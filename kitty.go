package kterm

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"

	"golang.org/x/image/draw"
)

// KittyAction tags which operation a graphics command requests
// (spec.md §4.9, Kitty graphics protocol subset).
type KittyAction byte

const (
	KittyActionTransmit        KittyAction = 't'
	KittyActionTransmitDisplay KittyAction = 'T'
	KittyActionQuery           KittyAction = 'q'
	KittyActionDisplay         KittyAction = 'p'
	KittyActionDelete          KittyAction = 'd'
)

// KittyTransmission is how the payload bytes were carried. Only direct
// (inline base64) transmission is supported: ParseKittyGraphics records
// the t= value without rejecting file/shm forms, nothing else reads it,
// and every payload is decoded as inline data, so a session never opens a
// file or shared-memory segment (spec.md Non-goals).
type KittyTransmission byte

const (
	KittyTransmitDirect    KittyTransmission = 'd'
	KittyTransmitFile      KittyTransmission = 'f'
	KittyTransmitTempFile  KittyTransmission = 't'
	KittyTransmitSharedMem KittyTransmission = 's'
)

// KittyFormat is the pixel encoding of the (possibly compressed) payload.
type KittyFormat uint32

const (
	KittyFormatRGB  KittyFormat = 24
	KittyFormatRGBA KittyFormat = 32
	KittyFormatPNG  KittyFormat = 100
)

// KittyDelete selects what an action='d' command removes.
type KittyDelete byte

const (
	KittyDeleteAll      KittyDelete = 'a'
	KittyDeleteAllData  KittyDelete = 'A'
	KittyDeleteByID     KittyDelete = 'i'
	KittyDeleteByIDData KittyDelete = 'I'
)

// KittyCommand is a parsed Kitty graphics control payload, split from its
// (still base64-decoded) image bytes.
type KittyCommand struct {
	Action       KittyAction
	Transmission KittyTransmission
	Format       KittyFormat
	Compression  byte

	ImageID     uint32
	PlacementID uint32

	Width, Height uint32
	More          bool

	Cols, Rows uint32

	Delete KittyDelete
	Quiet  uint32

	Payload []byte
}

// ParseKittyGraphics parses the control-data/payload pair of an APC `G`
// Kitty graphics command. data is the APC string as delivered by the
// parser's APC dispatch; a leading `G` action byte is skipped if present.
func ParseKittyGraphics(data []byte) (*KittyCommand, error) {
	cmd := &KittyCommand{
		Action:       KittyActionTransmitDisplay,
		Transmission: KittyTransmitDirect,
		Format:       KittyFormatRGBA,
	}
	if len(data) > 0 && data[0] == 'G' {
		data = data[1:]
	}

	sepIdx := bytes.IndexByte(data, ';')
	var controlData, payload []byte
	if sepIdx >= 0 {
		controlData, payload = data[:sepIdx], data[sepIdx+1:]
	} else {
		controlData = data
	}

	for _, pair := range bytes.Split(controlData, []byte(",")) {
		eq := bytes.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}
		key, value := pair[0], pair[eq+1:]
		switch key {
		case 'a':
			if len(value) > 0 {
				cmd.Action = KittyAction(value[0])
			}
		case 't':
			if len(value) > 0 {
				cmd.Transmission = KittyTransmission(value[0])
			}
		case 'f':
			cmd.Format = KittyFormat(parseUint32(value))
		case 'o':
			if len(value) > 0 {
				cmd.Compression = value[0]
			}
		case 'i':
			cmd.ImageID = parseUint32(value)
		case 'p':
			cmd.PlacementID = parseUint32(value)
		case 's':
			cmd.Width = parseUint32(value)
		case 'v':
			cmd.Height = parseUint32(value)
		case 'm':
			cmd.More = parseUint32(value) == 1
		case 'c':
			cmd.Cols = parseUint32(value)
		case 'r':
			cmd.Rows = parseUint32(value)
		case 'd':
			if len(value) > 0 {
				cmd.Delete = KittyDelete(value[0])
			}
		case 'q':
			cmd.Quiet = parseUint32(value)
		}
	}

	if len(payload) > 0 {
		decoded, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(string(payload))
			if err != nil {
				return nil, fmt.Errorf("kitty: decode base64 payload: %w", err)
			}
		}
		cmd.Payload = decoded
	}

	return cmd, nil
}

func parseUint32(b []byte) uint32 {
	n, _ := strconv.ParseUint(string(b), 10, 32)
	return uint32(n)
}

// decodeImageData turns cmd's payload into tightly packed RGBA pixels,
// decompressing and format-converting as needed. maxPixels enforces the
// session's max_kitty_image_pixels budget (spec.md §7 resource exhaustion
// policy); a decode that would exceed it is rejected before allocating.
func (cmd *KittyCommand) decodeImageData(maxPixels int) ([]byte, uint32, uint32, error) {
	data := cmd.Payload
	if cmd.Compression == 'z' && len(data) > 0 {
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("kitty: zlib reader: %w", err)
		}
		defer r.Close()
		decompressed, err := io.ReadAll(io.LimitReader(r, int64(maxPixels)*4+1))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("kitty: zlib decompress: %w", err)
		}
		data = decompressed
	}

	switch cmd.Format {
	case KittyFormatPNG:
		return decodePNG(data, maxPixels)
	case KittyFormatRGB:
		if cmd.Width == 0 || cmd.Height == 0 {
			return nil, 0, 0, fmt.Errorf("kitty: RGB format requires width/height")
		}
		if int(cmd.Width)*int(cmd.Height) > maxPixels {
			return nil, 0, 0, fmt.Errorf("kitty: image exceeds pixel budget")
		}
		expected := int(cmd.Width * cmd.Height * 3)
		if len(data) < expected {
			return nil, 0, 0, fmt.Errorf("kitty: short RGB payload: got %d want %d", len(data), expected)
		}
		rgba := make([]byte, cmd.Width*cmd.Height*4)
		for i := uint32(0); i < cmd.Width*cmd.Height; i++ {
			rgba[i*4+0], rgba[i*4+1], rgba[i*4+2], rgba[i*4+3] = data[i*3], data[i*3+1], data[i*3+2], 255
		}
		return rgba, cmd.Width, cmd.Height, nil
	case KittyFormatRGBA:
		if cmd.Width == 0 || cmd.Height == 0 {
			return nil, 0, 0, fmt.Errorf("kitty: RGBA format requires width/height")
		}
		if int(cmd.Width)*int(cmd.Height) > maxPixels {
			return nil, 0, 0, fmt.Errorf("kitty: image exceeds pixel budget")
		}
		expected := int(cmd.Width * cmd.Height * 4)
		if len(data) < expected {
			return nil, 0, 0, fmt.Errorf("kitty: short RGBA payload: got %d want %d", len(data), expected)
		}
		return data[:expected], cmd.Width, cmd.Height, nil
	default:
		return nil, 0, 0, fmt.Errorf("kitty: unsupported format %d", cmd.Format)
	}
}

// decodePNG decodes PNG bytes into packed RGBA, rejecting images whose
// pixel count would exceed maxPixels before the per-pixel conversion loop
// runs (avoids a decompression-bomb style blowup on a tiny wire payload).
func decodePNG(data []byte, maxPixels int) ([]byte, uint32, uint32, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("kitty: decode PNG header: %w", err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, 0, 0, fmt.Errorf("kitty: image exceeds pixel budget")
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("kitty: decode PNG: %w", err)
	}

	bounds := img.Bounds()
	width, height := uint32(bounds.Dx()), uint32(bounds.Dy())
	rgba := make([]byte, width*height*4)
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := (uint32(y)*width + uint32(x)) * 4
			rgba[off], rgba[off+1], rgba[off+2], rgba[off+3] = uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)
		}
	}
	return rgba, width, height, nil
}

// scaleRGBA resamples packed RGBA pixels from width x height to targetW x
// targetH using a high-quality Catmull-Rom kernel, for placements whose c=/r=
// requests a display size that doesn't match the transmitted raster 1:1
// (spec.md §4.9). Returns pixels unchanged when no resampling is needed.
func scaleRGBA(pixels []byte, width, height, targetW, targetH uint32) []byte {
	if targetW == 0 || targetH == 0 || (targetW == width && targetH == height) {
		return pixels
	}
	src := &image.RGBA{Pix: pixels, Stride: int(width) * 4, Rect: image.Rect(0, 0, int(width), int(height))}
	dst := image.NewRGBA(image.Rect(0, 0, int(targetW), int(targetH)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst.Pix
}

// CellImage is the image payload a Cell may reference when it anchors a
// Kitty graphics placement (spec.md §4.9). A *CellImage is shared by every
// cell the placement spans; none of them own the pixel data.
type CellImage struct {
	ID            uint32
	PlacementID   uint32
	Width, Height uint32
	Pixels        []byte // packed RGBA, len == Width*Height*4
	CellCols      uint32
	CellRows      uint32
}

// kittyImageTable is the per-session store of transmitted images, keyed by
// ID, enforcing the session's max_kitty_image_pixels and max total image
// memory budgets (spec.md §6 config, §7).
type kittyImageTable struct {
	images        map[uint32]*CellImage
	maxPixels     int
	maxTotalBytes int
	totalBytes    int
}

const (
	defaultMaxKittyImagePixels = 16_000_000 // ~4096x4096, matches Sixel default caps
	defaultMaxKittyTotalBytes  = 256 << 20
)

func newKittyImageTable() *kittyImageTable {
	return &kittyImageTable{
		images:        make(map[uint32]*CellImage),
		maxPixels:     defaultMaxKittyImagePixels,
		maxTotalBytes: defaultMaxKittyTotalBytes,
	}
}

func (t *kittyImageTable) reset() {
	maxPixels, maxTotal := t.maxPixels, t.maxTotalBytes
	*t = *newKittyImageTable()
	t.maxPixels, t.maxTotalBytes = maxPixels, maxTotal
}

// Transmit decodes cmd's payload and stores it under cmd.ImageID, evicting
// stored images while admitting it would exceed maxTotalBytes. Eviction
// takes whichever entry map iteration yields first, not the oldest.
func (t *kittyImageTable) Transmit(cmd *KittyCommand) (*CellImage, error) {
	pixels, width, height, err := cmd.decodeImageData(t.maxPixels)
	if err != nil {
		return nil, err
	}
	img := &CellImage{ID: cmd.ImageID, PlacementID: cmd.PlacementID, Width: width, Height: height, Pixels: pixels}

	size := len(pixels)
	for t.totalBytes+size > t.maxTotalBytes && len(t.images) > 0 {
		t.evictOne()
	}
	if old, ok := t.images[cmd.ImageID]; ok {
		t.totalBytes -= len(old.Pixels)
	}
	t.images[cmd.ImageID] = img
	t.totalBytes += size
	return img, nil
}

func (t *kittyImageTable) evictOne() {
	for id, img := range t.images {
		t.totalBytes -= len(img.Pixels)
		delete(t.images, id)
		return
	}
}

func (t *kittyImageTable) Get(id uint32) (*CellImage, bool) {
	img, ok := t.images[id]
	return img, ok
}

// Delete removes image(s) per cmd.Delete (spec.md §4.9 delete actions).
func (t *kittyImageTable) Delete(cmd *KittyCommand) {
	switch cmd.Delete {
	case KittyDeleteAll, KittyDeleteAllData, 0:
		for id, img := range t.images {
			t.totalBytes -= len(img.Pixels)
			delete(t.images, id)
		}
	case KittyDeleteByID, KittyDeleteByIDData:
		if img, ok := t.images[cmd.ImageID]; ok {
			t.totalBytes -= len(img.Pixels)
			delete(t.images, cmd.ImageID)
		}
	}
}

// FormatKittyResponse builds the APC response Kitty graphics commands
// expect unless q= suppresses it (spec.md §4.9).
func FormatKittyResponse(imageID uint32, message string, isError bool) string {
	body := "OK"
	if isError {
		body = message
	}
	if imageID > 0 {
		return fmt.Sprintf("\x1b_Gi=%d;%s\x1b\\", imageID, body)
	}
	return fmt.Sprintf("\x1b_G;%s\x1b\\", body)
}
