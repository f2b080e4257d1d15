package inference

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// EngineType is the type of the engine
type EngineType string

const (
	// EngineONNX is the ONNX engine that uses the onnxruntime library
	EngineONNX EngineType = "onnx"
	// EngineTFLite is the TensorFlow Lite engine that uses the tflite C library
	EngineTFLite EngineType = "tflite"
)

// ErrUnknownEngine is returned when no engine is registered for a type or model file.
var ErrUnknownEngine = errors.New("unknown engine")

// OpenFunc loads the model at path.
type OpenFunc func(path string, opts Options) (Engine, error)

var (
	enginesMu sync.RWMutex
	engines   = make(map[EngineType]OpenFunc)
)

// Register makes an engine available to Open. It panics if the type is registered twice.
func Register(t EngineType, open OpenFunc) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if open == nil {
		panic("inference: Register open func is nil")
	}
	if _, dup := engines[t]; dup {
		panic("inference: Register called twice for engine " + string(t))
	}
	engines[t] = open
}

// Engines returns the registered engine types in sorted order.
func Engines() []EngineType {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	list := make([]EngineType, 0, len(engines))
	for t := range engines {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// EngineForModel picks the engine type from the model file extension.
func EngineForModel(path string) (EngineType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx", ".ort":
		return EngineONNX, nil
	case ".tflite", ".lite":
		return EngineTFLite, nil
	default:
		return "", errors.Wrapf(ErrUnknownEngine, "no engine for model %s", path)
	}
}

// Open loads path with the engine of type t. An empty type is inferred from the file
// extension.
//
// Arguments:
//   - t: The engine type, or "".
//   - path: Path to the model file.
//   - opts: Engine options.
//
// Returns:
//   - Engine: The loaded engine.
//   - error: An error if no engine is registered or the model fails to load.
func Open(t EngineType, path string, opts Options) (Engine, error) {
	if t == "" {
		var err error
		if t, err = EngineForModel(path); err != nil {
			return nil, err
		}
	}

	enginesMu.RLock()
	open, ok := engines[t]
	enginesMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEngine, "engine %q is not registered", t)
	}

	engine, err := open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s model %s", t, path)
	}
	return engine, nil
}
