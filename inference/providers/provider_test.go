package providers

import (
	"testing"

	"github.com/nvr-ai/label-image/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	list, err := Parse([]string{"CUDA:1", "tensorrt", "coreml", "openvino", "cpu", "directml:2"}, inference.PrecisionFP16)
	require.NoError(t, err)
	require.Len(t, list, 6)

	backends := make([]ProviderBackend, len(list))
	for i, p := range list {
		backends[i] = p.Backend()
	}
	assert.Equal(t, []ProviderBackend{
		CUDAProviderBackend, TensorRTProviderBackend, CoreMLProviderBackend,
		OpenVINOProviderBackend, CPUProviderBackend, DirectMLProviderBackend,
	}, backends)

	cuda := list[0].(*CUDAProvider)
	assert.Equal(t, 1, cuda.Options().DeviceID)

	trt := list[1].(*TensorRTProvider)
	assert.True(t, trt.Options().FP16Enable, "fp16 precision enables TensorRT fp16")

	ov := list[3].(*OpenVINOProvider)
	assert.Equal(t, "FP16", ov.Options().Precision)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]string{"qpu"}, inference.PrecisionFP32)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = Parse([]string{"cuda:x"}, inference.PrecisionFP32)
	assert.Error(t, err)

	_, err = Parse([]string{"cuda:-1"}, inference.PrecisionFP32)
	assert.Error(t, err)
}

func TestOptionMaps(t *testing.T) {
	assert.Equal(t, map[string]string{
		"device_id":                 "0",
		"do_copy_in_default_stream": "1",
		"gpu_mem_limit":             "2147483648",
	}, CUDAOptions{DoCopyInDefaultStream: true, GPUMemLimit: 2147483648}.ToMap())

	assert.Equal(t, map[string]string{
		"device_id":               "2",
		"trt_fp16_enable":         "0",
		"trt_engine_cache_enable": "1",
		"trt_engine_cache_path":   "/tmp/trt",
	}, TensorRTOptions{DeviceID: 2, EngineCachePath: "/tmp/trt"}.ToMap())

	assert.Equal(t, map[string]string{"device_type": "NPU"}, OpenVINOOptions{DeviceType: "NPU"}.ToMap())

	assert.Equal(t, uint32(0x011), CoreMLOptions{CPUOnly: true, MLProgram: true}.Flags())
}

func TestGetSharedLibPath(t *testing.T) {
	assert.Equal(t, "/opt/ort.so", GetSharedLibPath("/opt/ort.so"))

	t.Setenv(SharedLibraryEnv, "/env/ort.so")
	assert.Equal(t, "/env/ort.so", GetSharedLibPath(""))

	t.Setenv(SharedLibraryEnv, "")
	assert.NotEmpty(t, GetSharedLibPath(""))
}
