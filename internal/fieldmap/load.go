package fieldmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

// Format identifies the encoding of a field map or form data document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension, defaulting to JSON
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes a field map document. Unknown keys are ignored so that
// exports from newer mapping tools still load.
func Parse(data []byte, format Format) (*FieldMap, error) {
	if err := checkSchema(data, format); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidFieldMap, err)
	}
	var fm FieldMap
	if err := decode(data, format, &fm); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidFieldMap, err)
	}
	if fm.Fields == nil {
		fm.Fields = []FieldDefinition{}
	}
	return &fm, nil
}

// LoadFile reads and parses a field map from fs
func LoadFile(fs afero.Fs, path string) (*FieldMap, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeSourceUnavailable, err).WithSource(path)
	}
	fm, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("load field map %s: %w", path, err)
	}
	return fm, nil
}

// ParseFormData decodes a flat answer document
func ParseFormData(data []byte, format Format) (FormData, error) {
	fd := FormData{}
	if err := decode(data, format, &fd); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidFormData, err)
	}
	return fd, nil
}

// LoadFormData reads and parses form data from fs
func LoadFormData(fs afero.Fs, path string) (FormData, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeSourceUnavailable, err).WithSource(path)
	}
	fd, err := ParseFormData(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("load form data %s: %w", path, err)
	}
	return fd, nil
}

// Marshal encodes a field map in the exchange format
func Marshal(fm *FieldMap, format Format) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(fm)
	}
	return json.MarshalIndent(fm, "", "  ")
}

func decode(data []byte, format Format, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("empty document")
	}
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, out)
	case FormatJSON, "":
		return json.Unmarshal(data, out)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
