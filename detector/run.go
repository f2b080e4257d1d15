package detector

import (
	"context"
	"image"
	"path/filepath"

	"github.com/nvr-ai/label-image/images"
	"github.com/nvr-ai/label-image/logger"
	"github.com/nvr-ai/label-image/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Annotator draws detections onto a copy of img.
type Annotator func(img image.Image, detections []Detection) (image.Image, error)

// Run is the command line flow: detect objects in every image named by settings.Image, log
// them, and write annotated copies when settings.Output is set.
//
// Arguments:
//   - ctx: Cancels between images and invocations.
//   - settings: The run settings.
//   - annotate: Draws the detections. Nil writes the images unannotated.
//
// Returns:
//   - error: The first error encountered.
func Run(ctx context.Context, settings Settings, annotate Annotator) error {
	files, err := util.LoadImageFiles(settings.Image)
	if err != nil {
		return err
	}
	if settings.OutputFile != "" && len(files) > 1 {
		return errors.Errorf("output_file requires a single image, %s holds %d", settings.Image, len(files))
	}

	d, err := New(settings)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Process(ctx, files, annotate)
}

// Process runs detection over files with an opened detector.
func (d *Detector) Process(ctx context.Context, files []util.ImageFile, annotate Annotator) error {
	log := logger.Log()

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := images.ReadBMP(file.Path)
		if err != nil {
			return err
		}
		bounds := img.Bounds()
		log.Info("read image",
			zap.String("path", file.Path),
			zap.Int("width", bounds.Dx()),
			zap.Int("height", bounds.Dy()),
		)

		result, err := d.Detect(ctx, img)
		if err != nil {
			return errors.Wrapf(err, "image %s", file.Path)
		}
		d.logResult(result)

		if !d.settings.Output {
			continue
		}
		path := d.settings.OutputFile
		if path == "" {
			path = file.OutputPath("")
		}
		if err := writeAnnotated(path, img, result.Detections, annotate); err != nil {
			return err
		}
		log.Info("wrote annotated image", zap.String("path", filepath.Clean(path)))
	}

	if d.settings.Profiling {
		d.prof.Report(log)
	}
	return nil
}

func (d *Detector) logResult(result *Result) {
	s := logger.S()

	if d.settings.Verbose {
		s.Infof("------ all detections (%d) ------", result.NumDetections)
		for _, det := range result.All {
			s.Infof("slot [%d] = %s @ %f box %v", det.Index, det.Label, det.Score, det.Box)
		}
	}

	s.Infof("average time: %.3f ms", float64(result.AverageInvoke.Microseconds())/1000)
	s.Info("------ detections > threshold ------")
	for i, det := range result.Detections {
		s.Infof("object [%d] = %s @ %f", i, det.Label, det.Score)
	}
}

func writeAnnotated(path string, img image.Image, detections []Detection, annotate Annotator) error {
	out := img
	if annotate != nil {
		var err error
		if out, err = annotate(img, detections); err != nil {
			return errors.Wrap(err, "failed to annotate image")
		}
	}
	return images.WriteBMP(path, out)
}
