package providers

import ort "github.com/yalue/onnxruntime_go"

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML provider flags, matching COREML_FLAG_* in the ONNX Runtime C API.
const (
	coreMLUseCPUOnly              uint32 = 0x001
	coreMLEnableOnSubgraph        uint32 = 0x002
	coreMLOnlyEnableDeviceWithANE uint32 = 0x004
	coreMLOnlyStaticInputShapes   uint32 = 0x008
	coreMLCreateMLProgram         uint32 = 0x010
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `json:"cpu_only" yaml:"cpu_only"`
	// Enable CoreML on subgraphs in the body of control flow operators.
	EnableOnSubgraphs bool `json:"enable_on_subgraphs" yaml:"enable_on_subgraphs"`
	// Only enable CoreML on devices with an Apple Neural Engine.
	OnlyEnableDeviceWithANE bool `json:"only_enable_device_with_ane" yaml:"only_enable_device_with_ane"`
	// Only take nodes whose inputs have static shapes.
	RequireStaticInputShapes bool `json:"require_static_input_shapes" yaml:"require_static_input_shapes"`
	// Create an MLProgram format model instead of a NeuralNetwork.
	MLProgram bool `json:"ml_program" yaml:"ml_program"`
}

// Flags packs the options into the CoreML provider bit set.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coreMLUseCPUOnly
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLEnableOnSubgraph
	}
	if o.OnlyEnableDeviceWithANE {
		flags |= coreMLOnlyEnableDeviceWithANE
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLOnlyStaticInputShapes
	}
	if o.MLProgram {
		flags |= coreMLCreateMLProgram
	}
	return flags
}

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(options CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{options: options}
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Options returns the options of the CoreML provider.
func (p *CoreMLProvider) Options() CoreMLOptions {
	return p.options
}

// Append registers CoreML on the session options.
func (p *CoreMLProvider) Append(options *ort.SessionOptions) error {
	return options.AppendExecutionProviderCoreML(p.options.Flags())
}
