package providers

import (
	"os"
	"runtime"
)

// SharedLibraryEnv names the variable that overrides the ONNX Runtime library location.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// ThreadsEnv names the variable that sets the intra-op thread count.
const ThreadsEnv = "ORT_NUM_THREADS"

// GetSharedLibPath returns the path to the ONNX Runtime shared library.
//
// The SharedLibraryEnv variable wins when set; otherwise the conventional library name for the
// current platform is returned and left to the dynamic loader to find.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath() string {
	if p := os.Getenv(SharedLibraryEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
