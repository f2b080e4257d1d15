// Command label_image detects objects in BMP images with an SSD model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/nvr-ai/label-image/detector"
	"github.com/nvr-ai/label-image/inference"
	_ "github.com/nvr-ai/label-image/inference/onnx"
	_ "github.com/nvr-ai/label-image/inference/tflite"
	"github.com/nvr-ai/label-image/logger"
	"github.com/nvr-ai/label-image/render"
	"github.com/nvr-ai/label-image/util"
	"go.uber.org/zap"
)

func main() {
	settings, err := parseSettings(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(settings.Verbose); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := detector.Run(ctx, settings, render.DetectionAnnotator(2)); err != nil {
		logger.Log().Error("label_image failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// parseSettings layers the command line over the config file named by --config, which is
// layered over the defaults.
func parseSettings(args []string) (detector.Settings, error) {
	s := detector.DefaultSettings()
	if path := util.FlagValue(args, "C", "config"); path != "" {
		var err error
		if s, err = detector.LoadSettings(path); err != nil {
			return s, err
		}
	}

	parser := argparse.NewParser("label_image", "Detect objects in BMP images with an SSD model")
	parser.String("C", "config", &argparse.Options{Help: "YAML settings file, overridden by flags"})
	count := parser.Int("c", "count", &argparse.Options{Help: "loop interpreter->Invoke() for certain times", Default: s.LoopCount})
	allowFP16 := parser.Flag("f", "allow_fp16", &argparse.Options{Help: "allow running fp32 models with fp16"})
	imagePath := parser.String("i", "image", &argparse.Options{Help: "image .bmp file or directory of them", Default: s.Image})
	labels := parser.String("l", "labels", &argparse.Options{Help: "labels for the model, empty for COCO", Default: s.Labels})
	model := parser.String("m", "model", &argparse.Options{Help: "model .tflite or .onnx file", Default: s.Model})
	output := parser.Flag("o", "output", &argparse.Options{Help: "write annotated images next to the inputs"})
	outputFile := parser.String("", "output_file", &argparse.Options{Help: "annotated image path for a single input", Default: s.OutputFile})
	profiling := parser.Flag("p", "profiling", &argparse.Options{Help: "log per stage timings"})
	maxEntries := parser.Int("e", "max_profiling_buffer_entries", &argparse.Options{Help: "max profiling buffer entries", Default: s.MaxProfilingBufferEntries})
	numResults := parser.Int("r", "num_results", &argparse.Options{Help: "number of results to show", Default: s.NumResults})
	threshold := parser.Float("", "threshold", &argparse.Options{Help: "minimum score of a reported detection", Default: float64(s.Threshold)})
	threads := parser.Int("t", "threads", &argparse.Options{Help: "number of threads", Default: s.Threads})
	inputMean := parser.Float("b", "input_mean", &argparse.Options{Help: "input mean", Default: float64(s.InputMean)})
	inputStd := parser.Float("s", "input_std", &argparse.Options{Help: "input standard deviation", Default: float64(s.InputStd)})
	warmups := parser.Int("w", "warmup_runs", &argparse.Options{Help: "number of warmup runs", Default: s.WarmupRuns})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "print more information"})
	delegates := parser.StringList("d", "delegate", &argparse.Options{Help: "accelerator, repeatable: xnnpack, cuda[:device], tensorrt[:device], coreml, openvino[:device], directml[:device]"})
	backend := parser.String("", "backend", &argparse.Options{Help: "inference engine, onnx or tflite; picked from the model extension when empty", Default: string(s.Backend)})
	sharedLibrary := parser.String("", "shared_library", &argparse.Options{Help: "onnxruntime shared library path", Default: s.SharedLibrary})

	if err := parser.Parse(args); err != nil {
		return s, fmt.Errorf("%s", parser.Usage(err))
	}

	s.LoopCount = *count
	s.AllowFP16 = s.AllowFP16 || *allowFP16
	s.Image = *imagePath
	s.Labels = *labels
	s.Model = *model
	s.Output = s.Output || *output || *outputFile != ""
	s.OutputFile = *outputFile
	s.Profiling = s.Profiling || *profiling
	s.MaxProfilingBufferEntries = *maxEntries
	s.NumResults = *numResults
	s.Threshold = float32(*threshold)
	s.Threads = *threads
	s.InputMean = float32(*inputMean)
	s.InputStd = float32(*inputStd)
	s.WarmupRuns = *warmups
	s.Verbose = s.Verbose || *verbose
	if len(*delegates) > 0 {
		s.Delegates = *delegates
	}
	s.Backend = inference.EngineType(*backend)
	s.SharedLibrary = *sharedLibrary

	return s, s.Validate()
}
