package providers

import (
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type, for example CPU, GPU or NPU.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// Supported precisions for HW {CPU:FP32, GPU:[FP32, FP16, ACCURACY], NPU:FP16}.
	Precision string `json:"precision" yaml:"precision"`
	// Overrides the accelerator default number of threads. Zero leaves the default.
	NumOfThreads int `json:"num_of_threads" yaml:"num_of_threads"`
	// Directory for compiled blobs. Caching is enabled when set.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
}

// ToMap converts the options to the key/value form ONNX Runtime expects. Unset values are
// omitted.
func (o OpenVINOOptions) ToMap() map[string]string {
	m := map[string]string{}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.CacheDir != "" {
		m["cache_dir"] = o.CacheDir
	}
	return m
}

// OpenVINOProvider implements the ExecutionProvider interface.
type OpenVINOProvider struct {
	options OpenVINOOptions
}

// NewOpenVINOProvider creates a new OpenVINO provider.
func NewOpenVINOProvider(options OpenVINOOptions) *OpenVINOProvider {
	return &OpenVINOProvider{options: options}
}

// Backend returns the backend of the OpenVINO provider.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Options returns the options of the OpenVINO provider.
func (p *OpenVINOProvider) Options() OpenVINOOptions {
	return p.options
}

// Append registers OpenVINO on the session options.
func (p *OpenVINOProvider) Append(options *ort.SessionOptions) error {
	return options.AppendExecutionProviderOpenVINO(p.options.ToMap())
}
