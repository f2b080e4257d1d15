package providers

import ort "github.com/yalue/onnxruntime_go"

const (
	// DirectMLProviderBackend uses DirectX 12 devices on Windows.
	DirectMLProviderBackend ProviderBackend = "directml"
)

// DirectMLProvider implements the ExecutionProvider interface.
type DirectMLProvider struct {
	deviceID int
}

// NewDirectMLProvider creates a new DirectML provider for the given adapter index.
func NewDirectMLProvider(deviceID int) *DirectMLProvider {
	return &DirectMLProvider{deviceID: deviceID}
}

// Backend returns the backend of the DirectML provider.
func (p *DirectMLProvider) Backend() ProviderBackend {
	return DirectMLProviderBackend
}

// Append registers DirectML on the session options.
func (p *DirectMLProvider) Append(options *ort.SessionOptions) error {
	return options.AppendExecutionProviderDirectML(p.deviceID)
}
