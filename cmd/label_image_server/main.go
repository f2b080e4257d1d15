// Command label_image_server serves SSD object detection over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/nvr-ai/label-image/detector"
	_ "github.com/nvr-ai/label-image/inference/onnx"
	_ "github.com/nvr-ai/label-image/inference/tflite"
	"github.com/nvr-ai/label-image/logger"
	"github.com/nvr-ai/label-image/render"
	"github.com/nvr-ai/label-image/server"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	parser := argparse.NewParser("label_image_server", "Serve SSD object detection over HTTP")
	config := parser.String("C", "config", &argparse.Options{Help: "YAML settings file"})
	listen := parser.String("", "listen", &argparse.Options{Help: "listen address", Default: ":8080"})
	model := parser.String("m", "model", &argparse.Options{Help: "model file, overrides the config"})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "print more information"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if err := run(*config, *listen, *model, *verbose); err != nil {
		logger.Log().Error("label_image_server failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(config, listen, model string, verbose bool) error {
	settings := detector.DefaultSettings()
	if config != "" {
		var err error
		if settings, err = detector.LoadSettings(config); err != nil {
			return err
		}
	}
	if model != "" {
		settings.Model = model
	}
	settings.Verbose = settings.Verbose || verbose
	// Every request is a single timed invocation.
	settings.LoopCount = 1

	if err := logger.Init(settings.Verbose); err != nil {
		return errors.Wrap(err, "failed to init logger")
	}
	defer logger.Sync()

	d, err := detector.New(settings)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(d, render.DetectionAnnotator(2)).ListenAndServe(ctx, listen)
}
