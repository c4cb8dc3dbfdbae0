// Package blur applies Gaussian face blur to frames, on the CPU or
// through a wgpu compute shader.
package blur

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/vision"
)

// Shape selects the blur mask. The set is closed.
type Shape int

const (
	ShapeEllipse Shape = iota
	ShapeRect
)

// ParseShape maps the CLI/config spelling to a Shape.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "ellipse", "":
		return ShapeEllipse, nil
	case "rect":
		return ShapeRect, nil
	default:
		return 0, fmt.Errorf("unknown blur shape %q", s)
	}
}

// Blurrer mutates the frame in place within the given regions and leaves
// every other pixel untouched. Degenerate regions are no-ops; an empty
// region list leaves the frame bit-identical. Kernel size is fixed for
// the lifetime of the blurrer. No per-call state bleeds into the next
// call.
type Blurrer interface {
	Blur(frame *media.Frame, regions []vision.Region) error
	Close()
}

// New probes for a GPU adapter and returns the GPU blurrer when one is
// available, the CPU blurrer otherwise. The choice is made once per job.
func New(shape Shape, kernelSize int) (Blurrer, error) {
	if err := validateKernel(kernelSize); err != nil {
		return nil, err
	}
	if g, err := NewGPU(shape, kernelSize); err == nil {
		slog.Info("blur backend selected", "backend", "gpu", "kernel", kernelSize)
		return g, nil
	} else {
		slog.Info("blur backend selected", "backend", "cpu", "kernel", kernelSize, "gpu_probe", err)
	}
	return NewCPU(shape, kernelSize), nil
}

func validateKernel(kernelSize int) error {
	if kernelSize <= 0 || kernelSize%2 == 0 {
		return fmt.Errorf("kernel size must be odd and positive, got %d", kernelSize)
	}
	return nil
}

// gaussianKernel precomputes normalized 1D weights for the separable
// blur. Sigma is derived from the kernel radius.
func gaussianKernel(kernelSize int) []float32 {
	radius := kernelSize / 2
	sigma := kernelSigma(radius)

	weights := make([]float32, kernelSize)
	var sum float64
	for i := 0; i < kernelSize; i++ {
		d := float64(i - radius)
		w := math.Exp(-d * d / (2 * sigma * sigma))
		weights[i] = float32(w)
		sum += w
	}
	for i := range weights {
		weights[i] = float32(float64(weights[i]) / sum)
	}
	return weights
}

func kernelSigma(radius int) float64 {
	sigma := float64(radius) / 3.0
	if sigma < 1 {
		sigma = 1
	}
	return sigma
}
