package blur

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/vision"
)

//go:embed shader.wgsl
var shaderSource string

// uniform buffer layout: 12 x 4 bytes, padded to a 16-byte multiple.
const uniformSize = 48

// gpuContext owns the wgpu device, queue and pipeline. It is created once
// per process and shared across jobs; the mutex is held only while a blur
// is being dispatched.
type gpuContext struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	pipeline *wgpu.ComputePipeline
}

var (
	ctxOnce sync.Once
	ctx     *gpuContext
	ctxErr  error
)

// sharedContext probes for a GPU adapter and builds the compute pipeline.
// The probe runs once; later callers get the cached result.
func sharedContext() (*gpuContext, error) {
	ctxOnce.Do(func() {
		ctx, ctxErr = newGPUContext()
	})
	return ctx, ctxErr
}

func newGPUContext() (*gpuContext, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, fmt.Errorf("create wgpu instance")
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreference_HighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("no gpu adapter: %w", err)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "gaussian-blur",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderSource},
	})
	if err != nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("compile blur shader: %w", err)
	}
	defer module.Release()

	pipeline, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "gaussian-blur",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("create blur pipeline: %w", err)
	}

	return &gpuContext{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
		pipeline: pipeline,
	}, nil
}

// GPU dispatches the separable Gaussian as two compute passes per region.
// Command buffers for all regions of a frame go into a single submission
// to amortize driver overhead; the final poll blocks until the GPU is
// done so frame memory stays bounded.
type GPU struct {
	ctx        *gpuContext
	shape      Shape
	kernelSize int
	sigma      float32
}

// NewGPU returns the GPU blurrer, or an error when no adapter is present.
func NewGPU(shape Shape, kernelSize int) (*GPU, error) {
	c, err := sharedContext()
	if err != nil {
		return nil, err
	}
	return &GPU{
		ctx:        c,
		shape:      shape,
		kernelSize: kernelSize,
		sigma:      float32(kernelSigma(kernelSize / 2)),
	}, nil
}

// regionBuffers holds the per-region GPU resources of one frame dispatch.
type regionBuffers struct {
	x, y, w, h int
	src        *wgpu.Buffer
	mid        *wgpu.Buffer
	dst        *wgpu.Buffer
	staging    *wgpu.Buffer
	uniformH   *wgpu.Buffer
	uniformV   *wgpu.Buffer
	groups     []*wgpu.BindGroup
}

func (rb *regionBuffers) release() {
	for _, g := range rb.groups {
		g.Release()
	}
	for _, b := range []*wgpu.Buffer{rb.src, rb.mid, rb.dst, rb.staging, rb.uniformH, rb.uniformV} {
		if b != nil {
			b.Release()
		}
	}
}

func (g *GPU) Blur(frame *media.Frame, regions []vision.Region) error {
	live := regions[:0:0]
	for _, r := range regions {
		if !r.Empty() {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return nil
	}

	g.ctx.mu.Lock()
	defer g.ctx.mu.Unlock()

	encoder, err := g.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	defer encoder.Release()

	var all []*regionBuffers
	defer func() {
		for _, rb := range all {
			rb.release()
		}
	}()

	for _, r := range live {
		rb, err := g.encodeRegion(encoder, frame, r)
		if err != nil {
			return err
		}
		all = append(all, rb)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish command buffer: %w", err)
	}
	defer cmd.Release()

	g.ctx.queue.Submit(cmd)
	g.ctx.device.Poll(true, nil)

	for _, rb := range all {
		if err := g.readBack(frame, rb); err != nil {
			return err
		}
	}
	return nil
}

// encodeRegion uploads the region ROI and records both blur passes.
func (g *GPU) encodeRegion(encoder *wgpu.CommandEncoder, frame *media.Frame, r vision.Region) (*regionBuffers, error) {
	x0 := int(r.X)
	y0 := int(r.Y)
	w := int(r.W + 0.5)
	h := int(r.H + 0.5)
	if x0+w > frame.Width {
		w = frame.Width - x0
	}
	if y0+h > frame.Height {
		h = frame.Height - y0
	}
	if w <= 0 || h <= 0 {
		return &regionBuffers{}, nil
	}

	packed := packROI(frame, x0, y0, w, h)
	size := uint64(len(packed) * 4)

	device := g.ctx.device
	rb := &regionBuffers{x: x0, y: y0, w: w, h: h}

	var err error
	rb.src, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "blur-src",
		Size:  size,
		Usage: wgpu.BufferUsage_Storage | wgpu.BufferUsage_CopyDst,
	})
	if err == nil {
		rb.mid, err = device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "blur-mid",
			Size:  size,
			Usage: wgpu.BufferUsage_Storage | wgpu.BufferUsage_CopyDst,
		})
	}
	if err == nil {
		rb.dst, err = device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "blur-dst",
			Size:  size,
			Usage: wgpu.BufferUsage_Storage | wgpu.BufferUsage_CopySrc,
		})
	}
	if err == nil {
		rb.staging, err = device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "blur-staging",
			Size:  size,
			Usage: wgpu.BufferUsage_MapRead | wgpu.BufferUsage_CopyDst,
		})
	}
	if err != nil {
		rb.release()
		return nil, fmt.Errorf("create region buffers: %w", err)
	}

	g.ctx.queue.WriteBuffer(rb.src, 0, wgpu.ToBytes(packed))

	cx, cy, a, b := r.Ellipse()
	useEllipse := uint32(0)
	if g.shape == ShapeEllipse && a > 0 && b > 0 {
		useEllipse = 1
	}
	// Ellipse geometry is ROI-local already; no offset needed.
	rb.uniformH, err = g.uniformBuffer(w, h, cx, cy, a, b, useEllipse, 0)
	if err == nil {
		rb.uniformV, err = g.uniformBuffer(w, h, cx, cy, a, b, useEllipse, 1)
	}
	if err != nil {
		rb.release()
		return nil, err
	}

	layout := g.ctx.pipeline.GetBindGroupLayout(0)
	defer layout.Release()

	bindGroup := func(uniform, src, dst *wgpu.Buffer) (*wgpu.BindGroup, error) {
		return device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: layout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: uniform, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: src, Size: wgpu.WholeSize},
				{Binding: 2, Buffer: dst, Size: wgpu.WholeSize},
				{Binding: 3, Buffer: rb.src, Size: wgpu.WholeSize},
			},
		})
	}

	groupH, err := bindGroup(rb.uniformH, rb.src, rb.mid)
	if err != nil {
		rb.release()
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	rb.groups = append(rb.groups, groupH)
	groupV, err := bindGroup(rb.uniformV, rb.mid, rb.dst)
	if err != nil {
		rb.release()
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	rb.groups = append(rb.groups, groupV)

	wgX := uint32((w + 15) / 16)
	wgY := uint32((h + 15) / 16)
	for _, group := range rb.groups {
		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(g.ctx.pipeline)
		pass.SetBindGroup(0, group, nil)
		pass.DispatchWorkgroups(wgX, wgY, 1)
		pass.End()
		pass.Release()
	}
	encoder.CopyBufferToBuffer(rb.dst, 0, rb.staging, 0, size)

	return rb, nil
}

func (g *GPU) uniformBuffer(w, h int, cx, cy, a, b float32, useEllipse, direction uint32) (*wgpu.Buffer, error) {
	buf := make([]byte, uniformSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], uint32(w))
	le.PutUint32(buf[4:], uint32(h))
	le.PutUint32(buf[8:], uint32(g.kernelSize/2))
	le.PutUint32(buf[12:], math.Float32bits(g.sigma))
	le.PutUint32(buf[16:], math.Float32bits(cx))
	le.PutUint32(buf[20:], math.Float32bits(cy))
	le.PutUint32(buf[24:], math.Float32bits(a))
	le.PutUint32(buf[28:], math.Float32bits(b))
	le.PutUint32(buf[32:], useEllipse)
	le.PutUint32(buf[36:], direction)

	ub, err := g.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "blur-params",
		Size:  uniformSize,
		Usage: wgpu.BufferUsage_Uniform | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}
	g.ctx.queue.WriteBuffer(ub, 0, buf)
	return ub, nil
}

// readBack maps the staging buffer and writes blurred pixels into the
// frame.
func (g *GPU) readBack(frame *media.Frame, rb *regionBuffers) error {
	if rb.staging == nil || rb.w <= 0 || rb.h <= 0 {
		return nil
	}
	size := uint64(rb.w * rb.h * 4)

	var mapErr error
	done := false
	err := rb.staging.MapAsync(wgpu.MapMode_Read, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatus_Success {
			mapErr = fmt.Errorf("map staging buffer: status %v", status)
		}
		done = true
	})
	if err != nil {
		return fmt.Errorf("map staging buffer: %w", err)
	}
	for !done {
		g.ctx.device.Poll(true, nil)
	}
	if mapErr != nil {
		return mapErr
	}
	defer rb.staging.Unmap()

	data := rb.staging.GetMappedRange(0, uint(size))
	for y := 0; y < rb.h; y++ {
		for x := 0; x < rb.w; x++ {
			sOff := (y*rb.w + x) * 4
			dOff := frame.At(rb.x+x, rb.y+y)
			frame.Pix[dOff] = data[sOff]
			frame.Pix[dOff+1] = data[sOff+1]
			frame.Pix[dOff+2] = data[sOff+2]
		}
	}
	return nil
}

func (g *GPU) Close() {}

// packROI packs the region's RGB pixels as one RGBA word per pixel.
func packROI(frame *media.Frame, x0, y0, w, h int) []uint32 {
	packed := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := frame.At(x0+x, y0+y)
			packed[y*w+x] = uint32(frame.Pix[off]) |
				uint32(frame.Pix[off+1])<<8 |
				uint32(frame.Pix[off+2])<<16 |
				0xff000000
		}
	}
	return packed
}
