package detector

import (
	"os"

	"github.com/nvr-ai/label-image/inference"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings configures a detection run.
type Settings struct {
	Verbose   bool `yaml:"verbose"`
	Profiling bool `yaml:"profiling"`
	AllowFP16 bool `yaml:"allow_fp16"`
	// LoopCount is the number of timed invocations per image.
	LoopCount int     `yaml:"loop_count"`
	InputMean float32 `yaml:"input_mean"`
	InputStd  float32 `yaml:"input_std"`
	// Model is the path to a .tflite or .onnx SSD model.
	Model string `yaml:"model"`
	// Image is a .bmp file or a directory of them.
	Image string `yaml:"image"`
	// Labels is the labels file. Empty uses the built-in COCO labels.
	Labels string `yaml:"labels"`
	// Threads is the number of runtime threads.
	Threads int `yaml:"threads"`
	// NumResults caps the number of reported detections.
	NumResults int `yaml:"num_results"`
	// Threshold is the minimum score of a reported detection.
	Threshold                 float32 `yaml:"threshold"`
	MaxProfilingBufferEntries int     `yaml:"max_profiling_buffer_entries"`
	// WarmupRuns are untimed invocations done when LoopCount > 1.
	WarmupRuns int `yaml:"warmup_runs"`
	// Output enables writing the annotated image.
	Output bool `yaml:"output"`
	// OutputFile overrides the annotated image path for single image runs.
	OutputFile string `yaml:"output_file"`
	// Backend selects the engine. Empty picks one from the model extension.
	Backend inference.EngineType `yaml:"backend"`
	// Delegates names accelerators, for example xnnpack, cuda or coreml.
	Delegates []string `yaml:"delegates"`
	// SharedLibrary overrides the onnxruntime shared library path.
	SharedLibrary string `yaml:"shared_library"`
}

// DefaultSettings returns the settings used when no flag or file overrides them.
func DefaultSettings() Settings {
	return Settings{
		LoopCount:                 1,
		InputMean:                 127.5,
		InputStd:                  127.5,
		Model:                     "./detect.tflite",
		Image:                     "./grace_hopper.bmp",
		Labels:                    "./coco_labels.txt",
		Threads:                   4,
		NumResults:                5,
		Threshold:                 0.5,
		MaxProfilingBufferEntries: 1024,
		WarmupRuns:                2,
	}
}

// LoadSettings reads a YAML file over the defaults. Keys missing from the file keep their
// default values.
//
// Arguments:
//   - path: Path to the YAML file.
//
// Returns:
//   - Settings: The merged settings.
//   - error: An error if the file cannot be read or parsed.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return s, nil
}

// Validate checks the settings for values the pipeline cannot run with.
func (s Settings) Validate() error {
	switch {
	case s.Model == "":
		return errors.New("model path is required")
	case s.LoopCount < 1:
		return errors.Errorf("loop_count must be at least 1, got %d", s.LoopCount)
	case s.WarmupRuns < 0:
		return errors.Errorf("warmup_runs must not be negative, got %d", s.WarmupRuns)
	case s.NumResults < 0:
		return errors.Errorf("num_results must not be negative, got %d", s.NumResults)
	case s.Threads < 0:
		return errors.Errorf("threads must not be negative, got %d", s.Threads)
	case s.InputStd == 0:
		return errors.New("input_std must not be zero")
	case s.MaxProfilingBufferEntries < 0:
		return errors.Errorf("max_profiling_buffer_entries must not be negative, got %d", s.MaxProfilingBufferEntries)
	}

	switch s.Backend {
	case "", inference.EngineONNX, inference.EngineTFLite:
	default:
		return errors.Wrapf(inference.ErrUnknownEngine, "backend %q", s.Backend)
	}
	return nil
}

// EngineOptions converts the settings to inference engine options.
func (s Settings) EngineOptions() inference.Options {
	return inference.Options{
		Threads:       s.Threads,
		Precision:     inference.PrecisionFor(s.AllowFP16),
		Delegates:     s.Delegates,
		SharedLibrary: s.SharedLibrary,
		Verbose:       s.Verbose,
	}
}
