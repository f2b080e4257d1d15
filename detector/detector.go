// Package detector - SSD object detection on images with a pluggable inference engine.
package detector

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/label-image/images"
	"github.com/nvr-ai/label-image/inference"
	"github.com/nvr-ai/label-image/logger"
	"github.com/nvr-ai/label-image/models"
	"github.com/nvr-ai/label-image/models/postprocess"
	"github.com/nvr-ai/label-image/profiler"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SSD post-processed output tensor order.
const (
	OutputLocations = iota
	OutputClasses
	OutputScores
	OutputNumDetections
	numOutputs
)

// ErrModelShape is returned when a model does not have one input and four SSD outputs.
var ErrModelShape = errors.New("unexpected model inputs or outputs")

// Detection is one detected object.
type Detection struct {
	// Index is the detection slot in the model outputs.
	Index int `json:"index"`
	// Class is the class identifier reported by the model.
	Class int `json:"class"`
	// Label is the class label after the background offset is applied.
	Label string `json:"label"`
	// Score is the model confidence.
	Score float32 `json:"score"`
	// Box is the bounding box in pixels of the source image.
	Box images.Rect `json:"box"`
}

// Result is the outcome of detecting objects in one image.
type Result struct {
	// Detections are the strongest detections, best first.
	Detections []Detection
	// All lists every populated detection slot. Only filled in verbose mode.
	All []Detection
	// NumDetections is the number of populated slots reported by the model.
	NumDetections int
	// AverageInvoke is the mean duration of the timed invocations.
	AverageInvoke time.Duration
}

// Detector runs an SSD model and turns its outputs into labelled detections. It is safe for
// concurrent use, invocations are serialised.
type Detector struct {
	mu       sync.Mutex
	engine   inference.Engine
	settings Settings
	labels   []string
	prof     *profiler.Profiler
}

// New loads the model and labels named in settings. The engine for the model must be
// registered, see inference.Register.
//
// Arguments:
//   - settings: The detection settings.
//
// Returns:
//   - *Detector: The detector, owning the loaded engine.
//   - error: An error if the settings are invalid or the model or labels cannot be loaded.
func New(settings Settings) (*Detector, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	labels, err := models.LoadLabels(settings.Labels)
	if err != nil {
		return nil, err
	}

	engine, err := inference.Open(settings.Backend, settings.Model, settings.EngineOptions())
	if err != nil {
		return nil, err
	}
	logger.Log().Info("loaded model", zap.String("model", settings.Model))

	d, err := NewWithEngine(engine, settings, labels)
	if err != nil {
		engine.Close()
		return nil, err
	}
	return d, nil
}

// NewWithEngine wraps an already loaded engine. The detector takes ownership of engine.
func NewWithEngine(engine inference.Engine, settings Settings, labels []string) (*Detector, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	inputs, outputs := engine.Inputs(), engine.Outputs()
	if len(inputs) != 1 {
		return nil, errors.Wrapf(ErrModelShape, "expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != numOutputs {
		return nil, errors.Wrapf(ErrModelShape, "expected %d outputs, got %d", numOutputs, len(outputs))
	}
	if shape := inputs[0].Shape; len(shape) != 4 {
		return nil, errors.Wrapf(ErrModelShape, "expected NHWC input, got %d dims", len(shape))
	}

	if settings.Verbose {
		for i, t := range inputs {
			logger.Log().Info("input", zap.Int("index", i), zap.Stringer("tensor", t))
		}
		for i, t := range outputs {
			logger.Log().Info("output", zap.Int("index", i), zap.Stringer("tensor", t))
		}
	}

	d := &Detector{engine: engine, settings: settings, labels: labels}
	if settings.Profiling {
		d.prof = profiler.New(settings.MaxProfilingBufferEntries)
	}
	return d, nil
}

// Settings returns the detector settings.
func (d *Detector) Settings() Settings { return d.settings }

// Profiler returns the stage profiler, nil unless profiling is enabled.
func (d *Detector) Profiler() *profiler.Profiler { return d.prof }

// Close releases the engine.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Close()
}

// Detect runs the model on img with the configured result cap and threshold.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	return d.DetectWith(ctx, img, d.settings.NumResults, d.settings.Threshold)
}

// DetectWith runs the model on img and selects up to numResults detections scoring at least
// threshold.
//
// Arguments:
//   - ctx: Cancels between invocations.
//   - img: The source image. Boxes are reported in its pixel space.
//   - numResults: Maximum number of detections.
//   - threshold: Minimum score.
//
// Returns:
//   - *Result: The detections and timing.
//   - error: An error if preprocessing, invocation or decoding fails.
func (d *Detector) DetectWith(ctx context.Context, img image.Image, numResults int, threshold float32) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stop := d.prof.StartOperation("preprocess", "stage", -1)
	err := d.setInput(img)
	stop()
	if err != nil {
		return nil, err
	}

	if d.settings.LoopCount > 1 {
		for i := 0; i < d.settings.WarmupRuns; i++ {
			if err := d.engine.Invoke(ctx); err != nil {
				return nil, errors.Wrap(err, "failed to invoke model during warmup")
			}
		}
	}

	var total time.Duration
	for i := 0; i < d.settings.LoopCount; i++ {
		stop := d.prof.StartOperation("invoke", "stage", -1)
		start := time.Now()
		err := d.engine.Invoke(ctx)
		total += time.Since(start)
		stop()
		if err != nil {
			return nil, errors.Wrap(err, "failed to invoke model")
		}
	}

	stop = d.prof.StartOperation("postprocess", "stage", -1)
	defer stop()

	outputs := make([][]float32, numOutputs)
	for i := range outputs {
		if outputs[i], err = d.engine.Output(i); err != nil {
			return nil, errors.Wrapf(err, "failed to read output %d", i)
		}
	}
	if len(outputs[OutputNumDetections]) == 0 {
		return nil, errors.Wrap(ErrModelShape, "empty num_detections output")
	}

	bounds := img.Bounds()
	decoder := Decoder{
		Labels:     d.labels,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		NumResults: numResults,
		Threshold:  threshold,
		Verbose:    d.settings.Verbose,
	}
	result, err := decoder.Decode(
		outputs[OutputLocations],
		outputs[OutputClasses],
		outputs[OutputScores],
		outputs[OutputNumDetections][0],
	)
	if err != nil {
		return nil, err
	}
	result.AverageInvoke = total / time.Duration(d.settings.LoopCount)
	return result, nil
}

// setInput converts img to the model input layout and type.
func (d *Detector) setInput(img image.Image) error {
	input := d.engine.Inputs()[0]
	bounds := img.Bounds()

	height, width, channels := input.Shape[1], input.Shape[2], input.Shape[3]
	if height <= 0 {
		height = int64(bounds.Dy())
	}
	if width <= 0 {
		width = int64(bounds.Dx())
	}
	if channels <= 0 {
		channels = 3
	}
	shape := []int64{1, height, width, channels}

	var (
		data any
		err  error
	)
	switch input.Type {
	case inference.Float32:
		data, err = images.ToFloat32(img, int(width), int(height), int(channels), d.settings.InputMean, d.settings.InputStd)
	case inference.UInt8:
		data, err = images.ToUint8(img, int(width), int(height), int(channels))
	default:
		return errors.Errorf("cannot handle input type %s yet", input.Type)
	}
	if err != nil {
		return errors.Wrap(err, "failed to prepare input")
	}
	return d.engine.SetInput(0, shape, data)
}

// Decoder maps raw SSD outputs to detections.
type Decoder struct {
	Labels     []string
	Width      int
	Height     int
	NumResults int
	Threshold  float32
	// Verbose fills Result.All.
	Verbose bool
}

// Decode selects the strongest detections. num is the populated slot count reported by the
// model; it is clamped to the data actually present.
func (dec Decoder) Decode(locations, classes, scores []float32, num float32) (*Result, error) {
	available := min(len(scores), len(classes), len(locations)/4)
	n := 0
	switch {
	case math32.IsNaN(num) || num <= 0:
	case num > float32(available):
		logger.Log().Warn("num_detections exceeds output size, clamping",
			zap.Float32("num_detections", num),
			zap.Int("available", available),
		)
		n = available
	default:
		n = int(num)
	}

	candidates, err := postprocess.SelectTopN(scores, classes, n, dec.NumResults, dec.Threshold)
	if err != nil {
		return nil, err
	}

	result := &Result{NumDetections: n, Detections: make([]Detection, len(candidates))}
	for i, c := range candidates {
		result.Detections[i] = dec.detection(locations, c)
	}
	if dec.Verbose {
		result.All = make([]Detection, n)
		for i := 0; i < n; i++ {
			result.All[i] = dec.detection(locations, postprocess.Candidate{
				Score: scores[i],
				Class: postprocess.ClassIndex(classes[i]),
				Index: i,
			})
		}
	}
	return result, nil
}

func (dec Decoder) detection(locations []float32, c postprocess.Candidate) Detection {
	loc := locations[4*c.Index : 4*c.Index+4]
	return Detection{
		Index: c.Index,
		Class: c.Class,
		Label: models.Label(dec.Labels, c.Class),
		Score: c.Score,
		Box:   images.RectFromNormalized(loc[0], loc[1], loc[2], loc[3], dec.Width, dec.Height),
	}
}
