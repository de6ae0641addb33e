// ABOUTME: Sample export
// ABOUTME: Encodes library samples to WAV or AIFF files and writes them to disk
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sampledeck/sampledeck-go/pkg/audio/encode"
)

// ExportOptions control how a sample is written
type ExportOptions struct {
	Container string // "wav" or "aiff"
	Encode    encode.Options
}

// Export encodes a sample and returns the file bytes and extension.
// AIFF exports carry the sample's loop as a sustain loop.
func Export(s *Sample, opts ExportOptions) ([]byte, string, error) {
	encOpts := opts.Encode
	if s.Loop != nil && encOpts.Loop == nil {
		encOpts.Loop = &encode.Loop{Start: s.Loop.Start, End: s.Loop.End}
	}

	enc, err := encode.New(opts.Container, encOpts)
	if err != nil {
		return nil, "", err
	}

	data, err := enc.Encode(s.Buffer)
	if err != nil {
		return nil, "", fmt.Errorf("encoding %s: %w", s.Name, err)
	}
	return data, enc.Extension(), nil
}

// maxNameAttempts bounds the numbered suffixes tried by WriteUnique
const maxNameAttempts = 10000

// ExportToDir writes a sample into dir and returns the file path. An
// existing file is never replaced: name-1, name-2, ... are tried instead.
func ExportToDir(s *Sample, dir string, opts ExportOptions) (string, error) {
	data, ext, err := Export(s, opts)
	if err != nil {
		return "", err
	}
	return WriteUnique(dir, s.Name, ext, data)
}

// WriteUnique creates dir/name+ext, or the first free dir/name-N+ext, and
// writes data into it
func WriteUnique(dir, name, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	for i := 0; i < maxNameAttempts; i++ {
		path := filepath.Join(dir, name+ext)
		if i > 0 {
			path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", name, i, ext))
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", path, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s%s in %s", name, ext, dir)
}
