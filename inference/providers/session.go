package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// SessionConfig contains the ONNX Runtime session settings.
type SessionConfig struct {
	// IntraOpNumThreads sets threads for parallelizing ops. Zero leaves the runtime default.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`
	// InterOpNumThreads sets threads for parallelizing independent ops.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
	// GraphOptimizationLevel controls the level of graph optimization.
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" yaml:"graph_optimization_level"`
	// ExecutionMode controls sequential vs parallel execution.
	ExecutionMode ort.ExecutionMode `json:"execution_mode" yaml:"execution_mode"`
	// Providers are appended in order, earlier entries take precedence.
	Providers []ExecutionProvider `json:"-" yaml:"-"`
}

// DefaultSessionConfig returns extended graph optimisation with the given op thread count.
func DefaultSessionConfig(threads int) SessionConfig {
	return SessionConfig{
		IntraOpNumThreads:      threads,
		InterOpNumThreads:      1,
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		ExecutionMode:          ort.ExecutionModeSequential,
	}
}

// NewSessionOptions creates session options from config. The caller owns the returned
// options and must Destroy them.
//
// Arguments:
//   - config: Session configuration to apply.
//
// Returns:
//   - *ort.SessionOptions: Configured session options.
//   - error: Configuration error if any.
func NewSessionOptions(config SessionConfig) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	if err := configure(options, config); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func configure(options *ort.SessionOptions, config SessionConfig) error {
	if err := options.SetGraphOptimizationLevel(config.GraphOptimizationLevel); err != nil {
		return errors.Wrap(err, "failed to set graph optimization level")
	}
	if err := options.SetExecutionMode(config.ExecutionMode); err != nil {
		return errors.Wrap(err, "failed to set execution mode")
	}
	if config.IntraOpNumThreads > 0 {
		if err := options.SetIntraOpNumThreads(config.IntraOpNumThreads); err != nil {
			return errors.Wrap(err, "failed to set intra op threads")
		}
	}
	if config.InterOpNumThreads > 0 {
		if err := options.SetInterOpNumThreads(config.InterOpNumThreads); err != nil {
			return errors.Wrap(err, "failed to set inter op threads")
		}
	}
	return Apply(options, config.Providers)
}
