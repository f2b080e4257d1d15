package providers

import ort "github.com/yalue/onnxruntime_go"

const (
	// CPUProviderBackend is the default ONNX Runtime CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// CPUProvider implements the ExecutionProvider interface.
type CPUProvider struct{}

// NewCPUProvider creates a new CPU provider.
func NewCPUProvider() *CPUProvider {
	return &CPUProvider{}
}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Append is a no-op, the runtime always registers the CPU provider last.
func (p *CPUProvider) Append(*ort.SessionOptions) error {
	return nil
}
