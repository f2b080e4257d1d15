package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// TensorRTProviderBackend uses NVIDIA TensorRT for optimized inference.
	TensorRTProviderBackend ProviderBackend = "tensorrt"
)

// TensorRTOptions contains arguments for the TensorRT provider.
// See: https://onnxruntime.ai/docs/execution-providers/TensorRT-ExecutionProvider.html
type TensorRTOptions struct {
	// The device ID.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// Build engines with FP16 kernels where the hardware supports them.
	FP16Enable bool `json:"trt_fp16_enable" yaml:"trt_fp16_enable"`
	// Directory for serialized engines. Caching is enabled when set.
	EngineCachePath string `json:"trt_engine_cache_path" yaml:"trt_engine_cache_path"`
	// Workspace size limit in bytes. Zero leaves the runtime default.
	MaxWorkspaceSize int64 `json:"trt_max_workspace_size" yaml:"trt_max_workspace_size"`
}

// ToMap converts the options to the key/value form ONNX Runtime expects.
func (o TensorRTOptions) ToMap() map[string]string {
	m := map[string]string{
		"device_id":       strconv.Itoa(o.DeviceID),
		"trt_fp16_enable": boolFlag(o.FP16Enable),
	}
	if o.EngineCachePath != "" {
		m["trt_engine_cache_enable"] = "1"
		m["trt_engine_cache_path"] = o.EngineCachePath
	}
	if o.MaxWorkspaceSize > 0 {
		m["trt_max_workspace_size"] = strconv.FormatInt(o.MaxWorkspaceSize, 10)
	}
	return m
}

// TensorRTProvider implements the ExecutionProvider interface.
type TensorRTProvider struct {
	options TensorRTOptions
}

// NewTensorRTProvider creates a new TensorRT provider.
func NewTensorRTProvider(options TensorRTOptions) *TensorRTProvider {
	return &TensorRTProvider{options: options}
}

// Backend returns the backend of the TensorRT provider.
func (p *TensorRTProvider) Backend() ProviderBackend {
	return TensorRTProviderBackend
}

// Options returns the options of the TensorRT provider.
func (p *TensorRTProvider) Options() TensorRTOptions {
	return p.options
}

// Append registers TensorRT on the session options.
func (p *TensorRTProvider) Append(options *ort.SessionOptions) error {
	native, err := ort.NewTensorRTProviderOptions()
	if err != nil {
		return errors.Wrap(err, "failed to create TensorRT provider options")
	}
	defer native.Destroy()

	if err := native.Update(p.options.ToMap()); err != nil {
		return errors.Wrap(err, "failed to update TensorRT provider options")
	}
	return options.AppendExecutionProviderTensorRT(native)
}
