package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"texswap/internal/pipeline"
)

// Report is the JSON summary written next to each output image.
type Report struct {
	Kitchen  string            `json:"kitchen,omitempty"`
	Material string            `json:"material"`
	Output   string            `json:"output"`
	Metadata pipeline.Metadata `json:"metadata"`
	Quality  pipeline.Quality  `json:"quality"`
}

// OutputOptions controls what is written for each result.
type OutputOptions struct {
	Dir    string
	Debug  bool // also write mask, texture, warped, lighting and pre-blend images
	Report bool // write a <name>.json report
}

// FailedImage is the payload of EventImageFailed.
type FailedImage struct {
	Path string
	Err  error
}

// ReplaceFile runs one replacement and writes the result into out.Dir, named
// after the kitchen image.
func (a *App) ReplaceFile(ctx context.Context, kitchenPath, materialPath string, out OutputOptions) (*Report, error) {
	kitchen, err := os.ReadFile(kitchenPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read kitchen image")
	}
	material, err := os.ReadFile(materialPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read material sample")
	}
	a.Emit(EventImageLoaded, kitchenPath)

	res, err := a.Engine.Replace(ctx, kitchen, material, a.Config.Options)
	if err != nil {
		a.Emit(EventImageFailed, FailedImage{Path: kitchenPath, Err: err})
		return nil, err
	}
	a.Emit(EventImageReplaced, kitchenPath)

	report := &Report{Kitchen: kitchenPath, Material: materialPath}
	if err := a.write(res, baseName(kitchenPath), report, out); err != nil {
		return nil, err
	}
	return report, nil
}

// BatchFiles applies one material to every kitchen image. Each output is named
// after its kitchen image. Images that fail are logged and skipped; the
// reports of the successes are returned in order.
func (a *App) BatchFiles(ctx context.Context, kitchenPaths []string, materialPath string, out OutputOptions) ([]*Report, error) {
	material, err := os.ReadFile(materialPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read material sample")
	}

	kitchens := make([][]byte, 0, len(kitchenPaths))
	for _, p := range kitchenPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			// An empty entry keeps indices aligned; the engine logs it as failed.
			a.Logger.WithError(err).WithField("path", p).Warn("Failed to read kitchen image")
			a.Emit(EventImageFailed, FailedImage{Path: p, Err: err})
		} else {
			a.Emit(EventImageLoaded, p)
		}
		kitchens = append(kitchens, data)
	}

	results := a.Engine.Batch(ctx, kitchens, material, a.Config.Options)
	reports := make([]*Report, 0, len(results))
	for _, item := range results {
		path := kitchenPaths[item.Index]
		a.Emit(EventImageReplaced, path)
		report := &Report{Kitchen: path, Material: materialPath}
		if err := a.write(item.Result, baseName(path), report, out); err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}

	a.Emit(EventBatchComplete, reports)
	return reports, nil
}

func (a *App) write(res *pipeline.Result, name string, report *Report, out OutputOptions) error {
	dir := out.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	files := map[string][]byte{name + ".jpg": res.FinalImage}
	if out.Debug {
		files[name+"_mask.jpg"] = res.Debug.OriginalMask
		files[name+"_texture.jpg"] = res.Debug.ProcessedTexture
		files[name+"_warped.jpg"] = res.Debug.WarpedTexture
		files[name+"_before_blending.jpg"] = res.Debug.BeforeBlending
		if len(res.Debug.Lighting) > 0 {
			files[name+"_lighting.jpg"] = res.Debug.Lighting
		}
	}

	report.Output = filepath.Join(dir, name+".jpg")
	report.Metadata = res.Metadata
	report.Quality = a.Engine.AssessQuality(res.Metadata)
	if out.Report {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode report")
		}
		files[name+".json"] = data
	}

	for file, data := range files {
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
		a.Emit(EventOutputWritten, path)
	}

	a.Logger.WithFields(logrus.Fields{
		"output":  report.Output,
		"quality": report.Quality.OverallScore,
	}).Info("Result written")
	return nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
