// Package providers - ONNX Runtime execution providers.
package providers

import (
	"strconv"
	"strings"

	"github.com/nvr-ai/label-image/inference"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

// ErrUnsupportedProvider is returned for provider names this package does not know.
var ErrUnsupportedProvider = errors.New("unsupported execution provider")

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend identifies the provider.
	Backend() ProviderBackend
	// Append registers the provider on the session options.
	Append(options *ort.SessionOptions) error
}

// NewProvider creates a provider with default options for the backend.
//
// Arguments:
//   - backend: The provider backend.
//   - device: The accelerator device index.
//   - precision: The requested compute precision.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the backend is unknown.
func NewProvider(backend ProviderBackend, device int, precision inference.Precision) (ExecutionProvider, error) {
	fp16 := precision == inference.PrecisionFP16

	switch backend {
	case CPUProviderBackend:
		return NewCPUProvider(), nil
	case CUDAProviderBackend:
		return NewCUDAProvider(CUDAOptions{DeviceID: device, DoCopyInDefaultStream: true}), nil
	case TensorRTProviderBackend:
		return NewTensorRTProvider(TensorRTOptions{DeviceID: device, FP16Enable: fp16}), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(CoreMLOptions{}), nil
	case OpenVINOProviderBackend:
		opts := OpenVINOOptions{DeviceType: "CPU", Precision: "FP32"}
		if fp16 {
			opts.DeviceType, opts.Precision = "GPU", "FP16"
		}
		return NewOpenVINOProvider(opts), nil
	case DirectMLProviderBackend:
		return NewDirectMLProvider(device), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedProvider, "%q", backend)
	}
}

// Parse builds providers from names of the form "backend" or "backend:device", for example
// "cuda:1". Names are case insensitive.
func Parse(names []string, precision inference.Precision) ([]ExecutionProvider, error) {
	list := make([]ExecutionProvider, 0, len(names))
	for _, name := range names {
		backend, deviceStr, hasDevice := strings.Cut(strings.ToLower(strings.TrimSpace(name)), ":")
		device := 0
		if hasDevice {
			d, err := strconv.Atoi(deviceStr)
			if err != nil || d < 0 {
				return nil, errors.Errorf("invalid device in provider %q", name)
			}
			device = d
		}

		p, err := NewProvider(ProviderBackend(backend), device, precision)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, nil
}

// Apply appends providers to options in the given order, so earlier providers take
// precedence. The CPU provider is always available as a fallback and needs no registration.
func Apply(options *ort.SessionOptions, list []ExecutionProvider) error {
	for _, p := range list {
		if err := p.Append(options); err != nil {
			return errors.Wrapf(err, "failed to apply %s provider", p.Backend())
		}
	}
	return nil
}
