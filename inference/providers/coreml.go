package providers

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `json:"cpu_only" yaml:"cpu_only"`
	// Enable CoreML EP to run on a subgraph in the body of a control flow operator.
	EnableOnSubgraph bool `json:"enable_on_subgraph" yaml:"enable_on_subgraph"`
	// Only enable CoreML EP for Apple devices with a compatible Apple Neural Engine.
	OnlyANE bool `json:"only_ane" yaml:"only_ane"`
	// Only allow nodes with static input shapes.
	RequireStaticInputShapes bool `json:"require_static_input_shapes" yaml:"require_static_input_shapes"`
	// Create an MLProgram format model instead of a NeuralNetwork.
	MLProgram bool `json:"ml_program" yaml:"ml_program"`
}

// CoreML flag bits, as defined by coreml_provider_factory.h.
const (
	coreMLUseCPUOnly              uint32 = 0x001
	coreMLEnableOnSubgraph        uint32 = 0x002
	coreMLOnlyEnableDeviceWithANE uint32 = 0x004
	coreMLOnlyStaticInputShapes   uint32 = 0x008
	coreMLCreateMLProgram         uint32 = 0x010
)

// Flags packs the options into the legacy CoreML flag word.
func (o CoreMLOptions) Flags() uint32 {
	var f uint32
	if o.CPUOnly {
		f |= coreMLUseCPUOnly
	}
	if o.EnableOnSubgraph {
		f |= coreMLEnableOnSubgraph
	}
	if o.OnlyANE {
		f |= coreMLOnlyEnableDeviceWithANE
	}
	if o.RequireStaticInputShapes {
		f |= coreMLOnlyStaticInputShapes
	}
	if o.MLProgram {
		f |= coreMLCreateMLProgram
	}
	return f
}
