package schema

import (
	"bytes"
	"errors"
	"path"
	"strings"
)

// Format identifies the encoding of a screen document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document wraps a raw screen payload and its origin.
type Document struct {
	source Source
	raw    []byte
}

// NewDocument constructs a Document wrapper while validating the inputs.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is required")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, ErrEmptyPayload
	}

	clone := append([]byte(nil), raw...)
	return Document{source: src, raw: clone}, nil
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte) Document {
	doc, err := NewDocument(src, raw)
	if err != nil {
		panic(err)
	}
	return doc
}

// Source returns the origin metadata for the document.
func (d Document) Source() Source {
	return d.source
}

// Raw returns a copy of the payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// Location returns the string identifier for the origin.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

// Format guesses the encoding from the location extension, then from the
// first significant byte.
func (d Document) Format() Format {
	switch strings.ToLower(path.Ext(d.Location())) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	trimmed := bytes.TrimSpace(d.raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// JSON returns the payload as JSON, converting YAML documents.
func (d Document) JSON() ([]byte, error) {
	if d.Format() == FormatJSON {
		return d.Raw(), nil
	}
	return YAMLToJSON(d.raw)
}

// Screen decodes the document into a screen.
func (d Document) Screen() (*Screen, error) {
	payload, err := d.JSON()
	if err != nil {
		return nil, err
	}
	return Decode(payload)
}
