// ABOUTME: Batch importer for sample files
// ABOUTME: Decodes files concurrently, converts them to the master rate and adds them to a library
package library

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
	"github.com/sampledeck/sampledeck-go/pkg/audio/decode"
	"github.com/sampledeck/sampledeck-go/pkg/audio/resample"
	"golang.org/x/sync/errgroup"
)

// Config holds importer configuration
type Config struct {
	Workers int  // concurrent decodes, <= 0 means 1
	Debug   bool
}

// File is one input to an import
type File struct {
	Name string
	Data []byte
}

// Result reports the outcome of importing one file
type Result struct {
	Index  int
	Name   string
	Sample *Sample // nil when Err is set
	Err    error
}

// Progress is reported after each file finishes
type Progress struct {
	Done   int
	Total  int
	Result Result
}

// Importer converts files and adds them to a library
type Importer struct {
	config     Config
	library    *Library
	onProgress func(Progress)
}

// NewImporter creates an importer that stores into lib
func NewImporter(config Config, lib *Library) *Importer {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Importer{
		config:  config,
		library: lib,
	}
}

// OnProgress registers a callback invoked once per finished file. It may be
// called from several goroutines but never concurrently.
func (imp *Importer) OnProgress(fn func(Progress)) {
	imp.onProgress = fn
}

// ImportAll imports every file and returns one result per file in input
// order. Per-file failures are reported in the results; the returned
// error is only set when ctx is cancelled. Every file is reported to the
// progress callback, including files skipped after cancellation.
func (imp *Importer) ImportAll(ctx context.Context, files []File) ([]Result, error) {
	results := make([]Result, len(files))
	progress := make(chan Result)
	reported := make(chan struct{})

	go func() {
		defer close(reported)
		done := 0
		for r := range progress {
			done++
			if imp.onProgress != nil {
				imp.onProgress(Progress{Done: done, Total: len(files), Result: r})
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.config.Workers)

	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				r := Result{Index: i, Name: f.Name, Err: err}
				results[i] = r
				progress <- r
				return err
			}

			start := time.Now()
			sample, err := imp.Import(f)
			r := Result{Index: i, Name: f.Name, Sample: sample, Err: err}
			results[i] = r

			if err != nil {
				log.Printf("Import failed: %s: %v", f.Name, err)
			} else if imp.config.Debug {
				log.Printf("[DEBUG] Imported %s (%s, %d frames) in %v",
					f.Name, sample.Kind, sample.Frames(), time.Since(start))
			}

			progress <- r
			return nil
		})
	}

	err := g.Wait()
	close(progress)
	<-reported

	if err != nil {
		return results, fmt.Errorf("import cancelled: %w", err)
	}
	return results, nil
}

// Import converts a single file and adds it to the library
func (imp *Importer) Import(f File) (*Sample, error) {
	sample, err := Convert(f)
	if err != nil {
		return nil, err
	}
	imp.library.Add(sample)
	return sample, nil
}

// Convert decodes a file and resamples it to audio.MasterSampleRate.
// SDS dumps arrive already at the master rate and pass through unchanged.
func Convert(f File) (*Sample, error) {
	d, err := decode.Decode(f.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.Name, err)
	}

	buf, err := resample.ResampleBuffer(d.Buffer, audio.MasterSampleRate)
	if err != nil {
		return nil, fmt.Errorf("resampling %s: %w", f.Name, err)
	}

	return &Sample{
		Name:       sampleName(f.Name),
		Kind:       d.Kind,
		NativeRate: d.Format.SampleRate,
		Buffer:     buf,
		Loop:       d.Loop,
	}, nil
}

// sampleName strips directories and extension from a file name
func sampleName(path string) string {
	base := filepath.Base(path)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}
	return base
}
