package inference

// Precision represents the compute precision requested from an accelerator.
type Precision string

// Precision constants are the supported precisions for inference.
const (
	PrecisionFP16 Precision = "FP16"
	PrecisionFP32 Precision = "FP32"
)

// PrecisionFor maps the allow_fp16 setting to a precision.
func PrecisionFor(allowFP16 bool) Precision {
	if allowFP16 {
		return PrecisionFP16
	}
	return PrecisionFP32
}
