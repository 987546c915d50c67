// internal/imagebuf/codec.go
//
// Decoding uploads and catalog files into fixed-shape images, and encoding
// images back to PNG for the browser.
// Codec rejects anything not already at its shape; ScalingCodec resizes first.

package imagebuf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // registers GIF for image.Decode
	_ "image/jpeg" // registers JPEG for image.Decode
	"image/png"

	"golang.org/x/image/draw"
)

// Codec bridges encoded image bytes and fixed-shape pixel grids.
type Codec struct {
	Shape Shape
}

// NewCodec returns a Codec for shape.
func NewCodec(shape Shape) (Codec, error) {
	if err := shape.Validate(); err != nil {
		return Codec{}, err
	}
	return Codec{Shape: shape}, nil
}

// Load decodes b (PNG, JPEG or GIF) into the codec's shape.
// Images whose bounds differ from the shape are rejected with ErrDecode.
func (c Codec) Load(b []byte) (Image, error) {
	src, err := decode(b)
	if err != nil {
		return Image{}, err
	}
	r := src.Bounds()
	if r.Dx() != c.Shape.Width || r.Dy() != c.Shape.Height {
		return Image{}, fmt.Errorf("%w: got %dx%d, want %dx%d",
			ErrDecode, r.Dy(), r.Dx(), c.Shape.Height, c.Shape.Width)
	}
	return c.sample(src), nil
}

// LoadScaled decodes b and rescales it to the codec's shape when the bounds
// differ. Used by catalogs whose artwork is not already normalized.
func (c Codec) LoadScaled(b []byte) (Image, error) {
	src, err := decode(b)
	if err != nil {
		return Image{}, err
	}
	r := src.Bounds()
	if r.Dx() == c.Shape.Width && r.Dy() == c.Shape.Height {
		return c.sample(src), nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, c.Shape.Width, c.Shape.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, r, draw.Src, nil)
	return c.sample(dst), nil
}

// ScalingCodec is a Codec whose Load rescales instead of rejecting
// mismatched dimensions.
type ScalingCodec struct {
	Codec
}

// Load decodes b and rescales it to the shape when needed.
func (c ScalingCodec) Load(b []byte) (Image, error) { return c.LoadScaled(b) }

// sample converts src into HWC samples. Conversion goes pixel by pixel through
// the non-premultiplied model so NRGBA sources round-trip exactly.
func (c Codec) sample(src image.Image) Image {
	r := src.Bounds()
	ch := c.Shape.Channels
	pix := make([]uint8, c.Shape.Len())
	i := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			px := src.At(x, y)
			if ch == 1 {
				pix[i] = color.GrayModel.Convert(px).(color.Gray).Y
				i++
				continue
			}
			n := color.NRGBAModel.Convert(px).(color.NRGBA)
			pix[i], pix[i+1], pix[i+2] = n.R, n.G, n.B
			if ch == 4 {
				pix[i+3] = n.A
			}
			i += ch
		}
	}
	return Image{Shape: c.Shape, Pix: pix}
}

func decode(b []byte) (image.Image, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	src, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return src, nil
}

// Export encodes im as PNG. PNG is lossless, so Load(Export(im)) == im.
func Export(im Image) ([]byte, error) {
	if err := im.Shape.Validate(); err != nil {
		return nil, err
	}
	if len(im.Pix) != im.Len() {
		return nil, fmt.Errorf("%w: %d samples for %s", ErrShape, len(im.Pix), im.Shape)
	}

	var out image.Image
	rect := image.Rect(0, 0, im.Width, im.Height)
	switch im.Channels {
	case 1:
		g := image.NewGray(rect)
		copy(g.Pix, im.Pix)
		out = g
	case 3:
		n := image.NewNRGBA(rect)
		for p, q := 0, 0; p < len(im.Pix); p, q = p+3, q+4 {
			n.Pix[q], n.Pix[q+1], n.Pix[q+2], n.Pix[q+3] = im.Pix[p], im.Pix[p+1], im.Pix[p+2], 0xff
		}
		out = n
	default:
		n := image.NewNRGBA(rect)
		copy(n.Pix, im.Pix)
		out = n
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("imagebuf: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI embeds PNG bytes in a data: URI for direct use as an <img> src.
func DataURI(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}
