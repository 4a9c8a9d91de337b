package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/lucasb-eyer/go-colorful"
)

// Annotation colours for circle centres and labels.
const (
	CenterColorHex = "#00FF00"
	LabelColorHex  = "#FF00FF"
)

// CircleMark is one labeled circle to draw on an annotated raster.
type CircleMark struct {
	X      int
	Y      int
	Radius int
	Label  int
}

// AnnotateCircles renders gray as RGBA and draws each mark on top of it: the
// outline in a per-label palette colour, a filled centre dot of radius 2 and
// the numeric label just below-left of the centre.
func AnnotateCircles(gray image.Image, marks []CircleMark) *image.RGBA {
	bounds := gray.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, gray, bounds.Min, draw.Src)

	centerColor := mustParseHexColor(CenterColorHex)
	labelColor := mustParseHexColor(LabelColorHex)
	palette := colorful.FastHappyPalette(len(marks))

	for i, m := range marks {
		r, g, b := palette[i].RGB255()
		drawCircle(result, m.X, m.Y, m.Radius, color.RGBA{R: r, G: g, B: b, A: 255})
		fillDisk(result, m.X, m.Y, 2, centerColor)
		if m.Label > 0 {
			drawLabel(result, m.X-10, m.Y, strconv.Itoa(m.Label), 2, labelColor)
		}
	}
	return result
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	var alpha uint8 = 255
	switch len(hex) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.RGBA{}, err
		}
		alpha = uint8(a)
		hex = hex[:7]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}, nil
}

func mustParseHexColor(hex string) color.RGBA {
	c, err := parseHexColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}

func setIn(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawCircle draws a one pixel outline using the midpoint algorithm.
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	if radius <= 0 {
		return
	}
	x, y, err := radius, 0, 0
	for x >= y {
		setIn(img, cx+x, cy+y, c)
		setIn(img, cx+y, cy+x, c)
		setIn(img, cx-y, cy+x, c)
		setIn(img, cx-x, cy+y, c)
		setIn(img, cx-x, cy-y, c)
		setIn(img, cx-y, cy-x, c)
		setIn(img, cx+y, cy-x, c)
		setIn(img, cx+x, cy-y, c)

		if err <= 0 {
			y++
			err += 2*y + 1
		}
		if err > 0 {
			x--
			err -= 2*x + 1
		}
	}
}

func fillDisk(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for _, o := range DiskOffsets(radius) {
		setIn(img, cx+o[0], cy+o[1], c)
	}
}

// drawLabel draws digits with a 3x5 pixel font, each font pixel scaled to a
// scale x scale block.
func drawLabel(img *image.RGBA, x, y int, text string, scale int, fg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}
	if scale < 1 {
		scale = 1
	}

	charWidth := 4 * scale
	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				for sy := 0; sy < scale; sy++ {
					for sx := 0; sx < scale; sx++ {
						setIn(img, cx+col*scale+sx, y+row*scale+sy, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}

// EncodedImage is an image encoded as base64 PNG for transport over JSON.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as a base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// SavePNG writes img to path as a PNG file.
func SavePNG(path string, img image.Image) error {
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}
