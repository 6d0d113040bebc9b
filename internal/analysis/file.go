package analysis

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/datastore"
	"github.com/tphakala/imageclassifier-go/internal/imageops"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// sourceCLI tags history rows written by the file command.
const sourceCLI = "cli"

// imageExtensions are the file types picked up when walking a directory.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// FileOptions controls FileAnalysis.
type FileOptions struct {
	Orientation int
	AutoOrient  bool
	Format      string
	Output      io.Writer
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path         string                   `json:"path"`
	Recognitions []classifier.Recognition `json:"recognitions,omitempty"`
	Duration     time.Duration            `json:"duration_ns"`
	Err          error                    `json:"-"`
}

// FileAnalysis classifies the image files and directories in paths and
// writes the results in opts.Format. Per-file failures are reported in the
// output; the returned error covers setup and output failures.
func FileAnalysis(ctx context.Context, settings *conf.Settings, paths []string, opts FileOptions) error {
	format, err := ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	files, err := CollectImages(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no image files found in %s", strings.Join(paths, ", "))
	}

	provider, err := NewProvider(settings, nil)
	if err != nil {
		return err
	}
	defer provider.Close()

	return classifyAndWrite(ctx, settings, provider, files, format, opts)
}

// classifyAndWrite runs files through a scheduler backed by provider, saves
// history when a datastore is configured and writes the results.
func classifyAndWrite(ctx context.Context, settings *conf.Settings, provider *classifier.Provider, files []string, format Format, opts FileOptions) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	scheduler := classifier.NewScheduler(provider, settings.Classifier.Workers, settings.Classifier.QueueSize)
	defer scheduler.Stop()

	results, err := ClassifyFiles(ctx, scheduler, files, settings.Classifier.QueueSize, opts)
	if err != nil {
		return err
	}

	if ds := datastore.New(settings, nil); ds != nil {
		saveHistory(ds, settings, results, opts.Orientation)
	}

	return WriteResults(opts.Output, format, results)
}

// ClassifyFiles decodes and classifies files with at most limit requests in
// flight. Results keep the order of files.
func ClassifyFiles(ctx context.Context, rec classifier.Recognizer, files []string, limit int, opts FileOptions) ([]FileResult, error) {
	results := make([]FileResult, len(files))
	log := GetLogger()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, limit))

	for i, path := range files {
		g.Go(func() error {
			start := time.Now()
			results[i].Path = path

			img, err := imageops.DecodeFile(path, imageops.DecodeOptions{AutoOrient: opts.AutoOrient})
			if err == nil {
				results[i].Recognitions, err = rec.RecognizeContext(gctx, img, opts.Orientation)
			}
			results[i].Duration = time.Since(start)
			results[i].Err = err

			if err != nil {
				log.Warn("failed to classify file", logger.String("file", path), logger.Error(err))
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// CollectImages expands directories in paths into the image files they
// contain, recursively and in lexical order. Explicit file arguments are kept
// whatever their extension.
func CollectImages(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isImageFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking %s: %w", p, err)
		}
	}
	return files, nil
}

func isImageFile(path string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path)))
}

// saveHistory stores successful results. Failures are logged only.
func saveHistory(ds datastore.Interface, settings *conf.Settings, results []FileResult, orientation int) {
	log := GetLogger()
	if err := ds.Open(); err != nil {
		log.Warn("history disabled, failed to open datastore", logger.Error(err))
		return
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Debug("failed to close datastore", logger.Error(err))
		}
	}()

	model := conf.ExpandPath(settings.Classifier.ModelPath)
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			continue
		}
		capture, rows := datastore.NewCapture(newRequestID(), sourceCLI, filepath.Base(r.Path), model, orientation, r.Recognitions, r.Duration)
		if err := ds.Save(capture, rows); err != nil {
			log.Warn("failed to save history", logger.String("file", r.Path), logger.Error(err))
		}
	}
}
