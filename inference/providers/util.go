package providers

import (
	"os"
	"runtime"
)

// SharedLibraryEnv names the environment variable that overrides the onnxruntime library path.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the onnxruntime shared library.
//
// Arguments:
//   - override: Explicit path. Used when not empty.
//
// Returns:
//   - string: The override, the SharedLibraryEnv value, or the platform default in
//     ./third_party.
func GetSharedLibPath(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(SharedLibraryEnv); env != "" {
		return env
	}

	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}
