package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/storageio"
)

const (
	textImageWidth      = 480
	textImageMargin     = 10
	textImageLineHeight = 15
)

// TextImage renders a text prompt onto a PNG and returns the stored
// image path, turning a text probe into a multimodal one. Files land
// under the configured directory with a microsecond-timestamp name.
type TextImage struct {
	store storageio.Storage
	dir   string
	id    prompt.Identifier
}

var _ Converter = (*TextImage)(nil)

// NewTextImage creates the converter writing into dir through store.
func NewTextImage(store storageio.Storage, dir string) (*TextImage, error) {
	if store == nil {
		return nil, fmt.Errorf("textimage: storage required")
	}
	if dir == "" {
		return nil, fmt.Errorf("textimage: output directory required")
	}
	return &TextImage{
		store: store,
		dir:   dir,
		id:    prompt.NewIdentifier(prompt.KindConverter, "text_image", "converter"),
	}, nil
}

func (c *TextImage) Convert(ctx context.Context, value string, dataType prompt.DataType) (Result, error) {
	if !c.InputSupported(dataType) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedInput, dataType)
	}
	if value == "" {
		return Result{}, fmt.Errorf("textimage: empty prompt value")
	}

	data, err := c.render(value)
	if err != nil {
		return Result{}, fmt.Errorf("textimage: render: %w", err)
	}

	if err := c.store.EnsureDirectory(ctx, c.dir); err != nil {
		return Result{}, fmt.Errorf("textimage: ensure directory: %w", err)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("%d.png", time.Now().UnixMicro()))
	if err := c.store.Write(ctx, path, data); err != nil {
		return Result{}, fmt.Errorf("textimage: write image: %w", err)
	}

	return Result{Values: []string{path}, DataType: prompt.DataTypeImagePath}, nil
}

func (c *TextImage) InputSupported(dataType prompt.DataType) bool {
	return dataType == prompt.DataTypeText
}

func (c *TextImage) Identifier() prompt.Identifier {
	return c.id
}

func (c *TextImage) OneToOne() bool {
	return true
}

// render draws the wrapped text in black on a white canvas sized to the
// line count.
func (c *TextImage) render(value string) ([]byte, error) {
	face := basicfont.Face7x13
	maxChars := (textImageWidth - 2*textImageMargin) / face.Advance
	lines := wrapText(value, maxChars)

	height := 2*textImageMargin + len(lines)*textImageLineHeight
	img := image.NewRGBA(image.Rect(0, 0, textImageWidth, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	y := textImageMargin + face.Ascent
	for _, line := range lines {
		drawer.Dot = fixed.P(textImageMargin, y)
		drawer.DrawString(line)
		y += textImageLineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapText packs words into lines of at most limit characters,
// hard-splitting words longer than the limit.
func wrapText(text string, limit int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		for len(word) > limit {
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			lines = append(lines, word[:limit])
			word = word[limit:]
		}
		if word == "" {
			continue
		}
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= limit:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}
