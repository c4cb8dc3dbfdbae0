package media

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ImageReader exposes a still image through the FrameReader contract so the
// video use cases apply unchanged. FPS = 0, TotalFrames = 1.
type ImageReader struct {
	meta  Metadata
	frame *Frame
	done  bool
}

// OpenImageReader decodes a JPEG or PNG file into a single RGB frame.
func OpenImageReader(path string) (*ImageReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}

	frame := frameFromImage(img, 0)
	return &ImageReader{
		meta: Metadata{
			Width:       frame.Width,
			Height:      frame.Height,
			FPS:         0,
			TotalFrames: 1,
			Codec:       strings.TrimPrefix(filepath.Ext(path), "."),
			Path:        path,
		},
		frame: frame,
	}, nil
}

func (r *ImageReader) Metadata() Metadata { return r.meta }

func (r *ImageReader) Next() (*Frame, error) {
	if r.done {
		return nil, io.EOF
	}
	r.done = true
	return r.frame, nil
}

func (r *ImageReader) Close() error { return nil }

// ImageWriter writes a single frame as a JPEG or PNG file, chosen by the
// output extension.
type ImageWriter struct {
	path    string
	written bool
}

func NewImageWriter(path string) *ImageWriter {
	return &ImageWriter{path: path}
}

func (w *ImageWriter) Write(frame *Frame) error {
	if w.written {
		return fmt.Errorf("image writer accepts exactly one frame")
	}
	w.written = true
	return encodeImageFile(w.path, imageFromFrame(frame))
}

func (w *ImageWriter) Close() error {
	if !w.written {
		return fmt.Errorf("image writer closed without a frame")
	}
	return nil
}

// WriteThumbnail crops the region (x, y, w, h) out of the frame, resizes it
// to a size×size square and writes it as PNG for a .png path, JPEG
// otherwise.
func WriteThumbnail(path string, frame *Frame, x, y, w, h, size int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("degenerate thumbnail crop %dx%d", w, h)
	}

	thumb := image.NewRGBA(image.Rect(0, 0, size, size))
	for ty := 0; ty < size; ty++ {
		srcY := y + ty*h/size
		for tx := 0; tx < size; tx++ {
			srcX := x + tx*w/size
			if srcX < 0 || srcX >= frame.Width || srcY < 0 || srcY >= frame.Height {
				continue
			}
			off := frame.At(srcX, srcY)
			thumb.Set(tx, ty, color.RGBA{frame.Pix[off], frame.Pix[off+1], frame.Pix[off+2], 255})
		}
	}
	return encodeImageFile(path, thumb)
}

func frameFromImage(img image.Image, index int) *Frame {
	bounds := img.Bounds()
	frame := NewFrame(bounds.Dx(), bounds.Dy(), index)

	// Fast path for *image.RGBA, generic fallback otherwise.
	if src, ok := img.(*image.RGBA); ok {
		for y := 0; y < frame.Height; y++ {
			for x := 0; x < frame.Width; x++ {
				sOff := src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
				dOff := frame.At(x, y)
				copy(frame.Pix[dOff:dOff+3], src.Pix[sOff:sOff+3])
			}
		}
		return frame
	}
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := frame.At(x, y)
			frame.Pix[off] = byte(r >> 8)
			frame.Pix[off+1] = byte(g >> 8)
			frame.Pix[off+2] = byte(b >> 8)
		}
	}
	return frame
}

func imageFromFrame(frame *Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			sOff := frame.At(x, y)
			dOff := img.PixOffset(x, y)
			img.Pix[dOff] = frame.Pix[sOff]
			img.Pix[dOff+1] = frame.Pix[sOff+1]
			img.Pix[dOff+2] = frame.Pix[sOff+2]
			img.Pix[dOff+3] = 255
		}
	}
	return img
}

func encodeImageFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		if err := png.Encode(f, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 92}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	}
	return nil
}

// replaceFile atomically swaps tmp into place at dst.
func replaceFile(tmp, dst string) error {
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	return nil
}
