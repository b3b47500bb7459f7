// Package template fetches PDF templates from the local template directory,
// from HTTP(S) URLs, or from memory.
package template

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/security"
)

// Source returns the raw bytes of a template reference. The returned slice
// belongs to the caller.
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FileSource reads templates from a directory on an afero filesystem
type FileSource struct {
	fs          afero.Fs
	validator   *security.PathValidator
	maxFileSize int64
}

// NewFileSource creates a source rooted at dir. References may be absolute
// or relative to dir, but must stay inside it.
func NewFileSource(fs afero.Fs, dir string, maxFileSize int64) (*FileSource, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	validator, err := security.NewPathValidator(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	return &FileSource{
		fs:          fs,
		validator:   validator,
		maxFileSize: maxFileSize,
	}, nil
}

// Directory returns the directory templates are read from
func (s *FileSource) Directory() string {
	return s.validator.GetConfiguredDirectory()
}

// Fetch reads a template file after checking its location, extension and size
func (s *FileSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.validator.SanitizePath(ref)
	if err != nil {
		return nil, err
	}

	if err := s.checkFile(path); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeSourceUnavailable, err).WithSource(ref)
	}
	return data, nil
}

func (s *FileSource) checkFile(path string) error {
	fileInfo, err := s.fs.Stat(path)
	if os.IsNotExist(err) {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "file does not exist").WithSource(path)
	}
	if err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeSourceUnavailable, err).
			WithContext("cannot access file").WithSource(path)
	}

	if fileInfo.IsDir() {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "path is a directory, not a file").WithSource(path)
	}

	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "file is not a PDF").WithSource(path)
	}

	if fileInfo.Size() == 0 {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "file is empty").WithSource(path)
	}

	if s.maxFileSize > 0 && fileInfo.Size() > s.maxFileSize {
		return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeFileTooLarge,
			fmt.Sprintf("file too large: %d bytes", fileInfo.Size()),
			fmt.Sprintf("max: %d bytes", s.maxFileSize)).WithSource(path)
	}

	return nil
}

// BytesSource serves templates held in memory, keyed by reference
type BytesSource map[string][]byte

// Fetch returns a copy of the template stored under ref
func (s BytesSource) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := s[ref]
	if !ok {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "template not found").WithSource(ref)
	}
	return append([]byte(nil), data...), nil
}

// Static always returns the same template regardless of the reference, for
// uploads that arrive together with their field map
func Static(data []byte) Source {
	return staticSource(data)
}

type staticSource []byte

func (s staticSource) Fetch(context.Context, string) ([]byte, error) {
	if len(s) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "template is empty")
	}
	return append([]byte(nil), s...), nil
}
