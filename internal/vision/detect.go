package vision

import (
	"fmt"
	"sort"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/neutrinographics/faceguard/internal/media"
)

// Default inference thresholds.
const (
	DefaultConfThreshold = 0.25
	DefaultNMSThreshold  = 0.45

	// keypointConfThreshold hides landmarks the model is unsure about.
	keypointConfThreshold = 0.5

	numKeypoints = 5
	numClasses   = 1
	// letterboxFill is the neutral gray used for letterbox padding.
	letterboxFill = 114.0 / 255.0
)

// Detection is one raw face detection in frame pixel coordinates.
type Detection struct {
	Box          [4]float32 // x1, y1, x2, y2
	Confidence   float32
	Landmarks    Landmarks
	HasLandmarks bool
}

// Detector consumes frames in strict index order and returns blur regions
// with track IDs assigned. Stateful because tracking spans frames: it must
// be invoked exactly once per input frame unless wrapped in SkipDetector.
type Detector interface {
	Detect(frame *media.Frame) ([]Region, error)
	Close()
}

// YOLODetector runs a YOLO pose face model through ONNX Runtime and feeds
// the results through the tracker and region builder.
type YOLODetector struct {
	session     *ort.DynamicAdvancedSession
	inputTensor *ort.Tensor[float32]
	tracker     *Tracker
	builder     *RegionBuilder

	confThreshold float32
	nmsThreshold  float32
	minFaceSize   float32
	inputW        int
	inputH        int
}

// YOLOConfig tunes the detector. Zero values fall back to defaults.
type YOLOConfig struct {
	ConfThreshold float32
	NMSThreshold  float32
	MinFaceSize   float32
}

// NewYOLODetector loads the pose model. opts may be nil (ORT defaults) or
// a pre-configured *ort.SessionOptions.
func NewYOLODetector(modelPath string, cfg YOLOConfig, opts *ort.SessionOptions) (*YOLODetector, error) {
	inputW, inputH := 640, 640

	if cfg.ConfThreshold == 0 {
		cfg.ConfThreshold = DefaultConfThreshold
	}
	if cfg.NMSThreshold == 0 {
		cfg.NMSThreshold = DefaultNMSThreshold
	}

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Output rank and orientation vary between exports; a dynamic session
	// lets ORT allocate the output and report its shape per run.
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"images"},
		[]string{"output0"},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &YOLODetector{
		session:       session,
		inputTensor:   inputTensor,
		tracker:       NewTracker(),
		builder:       NewRegionBuilder(NewSmoother()),
		confThreshold: cfg.ConfThreshold,
		nmsThreshold:  cfg.NMSThreshold,
		minFaceSize:   cfg.MinFaceSize,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Detect runs one frame through inference, tracking and region building.
// Any inference error is fatal to the job.
func (d *YOLODetector) Detect(frame *media.Frame) ([]Region, error) {
	scale, padX, padY := d.letterbox(frame)

	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{d.inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}
	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected detector output type %T", outputs[0])
	}
	defer outTensor.Destroy()

	detections := d.parse(outTensor, scale, padX, padY, frame.Width, frame.Height)
	detections = d.filterSize(detections)
	detections = nms(detections, d.nmsThreshold)

	tracked := d.tracker.Update(detections)

	regions := make([]Region, 0, len(tracked))
	for _, td := range tracked {
		var lm *Landmarks
		if td.HasLandmarks {
			lmCopy := td.Landmarks
			lm = &lmCopy
		}
		regions = append(regions, d.builder.Build(td.Box, lm, frame.Width, frame.Height, td.TrackID))
	}
	return regions, nil
}

// letterbox resizes the frame into the model input preserving aspect
// ratio, pads with neutral gray and normalizes to [0, 1] CHW. Returns the
// scale and padding needed to map detections back to frame coordinates.
func (d *YOLODetector) letterbox(frame *media.Frame) (scale, padX, padY float32) {
	data := d.inputTensor.GetData()
	planeSize := d.inputW * d.inputH
	for i := range data {
		data[i] = letterboxFill
	}

	sx := float32(d.inputW) / float32(frame.Width)
	sy := float32(d.inputH) / float32(frame.Height)
	scale = sx
	if sy < sx {
		scale = sy
	}

	newW := int(float32(frame.Width) * scale)
	newH := int(float32(frame.Height) * scale)
	dx := (d.inputW - newW) / 2
	dy := (d.inputH - newH) / 2

	for y := 0; y < newH; y++ {
		srcY := y * frame.Height / newH
		rowBase := (y + dy) * d.inputW
		for x := 0; x < newW; x++ {
			srcX := x * frame.Width / newW
			off := frame.At(srcX, srcY)
			idx := rowBase + x + dx
			data[idx] = float32(frame.Pix[off]) / 255.0
			data[planeSize+idx] = float32(frame.Pix[off+1]) / 255.0
			data[2*planeSize+idx] = float32(frame.Pix[off+2]) / 255.0
		}
	}

	return scale, float32(dx), float32(dy)
}

// parse decodes the pose head output. Handles both the
// [1, 4+numClasses+15, N] layout and its transpose.
func (d *YOLODetector) parse(out *ort.Tensor[float32], scale, padX, padY float32, frameW, frameH int) []Detection {
	shape := out.GetShape()
	data := out.GetData()

	attrs := 4 + numClasses + numKeypoints*3
	var anchors int
	var attrMajor bool
	switch {
	case len(shape) == 3 && int(shape[1]) == attrs:
		anchors = int(shape[2])
		attrMajor = true
	case len(shape) == 3 && int(shape[2]) == attrs:
		anchors = int(shape[1])
		attrMajor = false
	default:
		return nil
	}

	at := func(a, i int) float32 {
		if attrMajor {
			return data[i*anchors+a]
		}
		return data[a*attrs+i]
	}

	var detections []Detection
	for a := 0; a < anchors; a++ {
		score := at(a, 4)
		for c := 1; c < numClasses; c++ {
			if s := at(a, 4+c); s > score {
				score = s
			}
		}
		if score < d.confThreshold {
			continue
		}

		cx := at(a, 0)
		cy := at(a, 1)
		w := at(a, 2)
		h := at(a, 3)

		unmap := func(v, pad float32) float32 { return (v - pad) / scale }

		x1 := clampF(unmap(cx-w/2, padX), 0, float32(frameW))
		y1 := clampF(unmap(cy-h/2, padY), 0, float32(frameH))
		x2 := clampF(unmap(cx+w/2, padX), 0, float32(frameW))
		y2 := clampF(unmap(cy+h/2, padY), 0, float32(frameH))

		var lm Landmarks
		hasLM := false
		for k := 0; k < numKeypoints; k++ {
			kx := at(a, 4+numClasses+k*3)
			ky := at(a, 4+numClasses+k*3+1)
			kc := at(a, 4+numClasses+k*3+2)
			if kc < keypointConfThreshold {
				continue
			}
			lm[k][0] = unmap(kx, padX)
			lm[k][1] = unmap(ky, padY)
			hasLM = true
		}

		detections = append(detections, Detection{
			Box:          [4]float32{x1, y1, x2, y2},
			Confidence:   score,
			Landmarks:    lm,
			HasLandmarks: hasLM,
		})
	}
	return detections
}

func (d *YOLODetector) filterSize(detections []Detection) []Detection {
	if d.minFaceSize <= 0 {
		return detections
	}
	kept := detections[:0]
	for _, det := range detections {
		w := det.Box[2] - det.Box[0]
		h := det.Box[3] - det.Box[1]
		if w >= d.minFaceSize && h >= d.minFaceSize {
			kept = append(kept, det)
		}
	}
	return kept
}

func (d *YOLODetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
}

// nms performs greedy non-maximum suppression on detections.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if !keep[j] {
				continue
			}
			if boxIoU(detections[i].Box, detections[j].Box) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []Detection
	for i, det := range detections {
		if keep[i] {
			result = append(result, det)
		}
	}
	return result
}

func boxIoU(a, b [4]float32) float32 {
	return IoU(regionFromBox(a), regionFromBox(b))
}
