package schema

import (
	"fmt"
	"net/url"
	"path/filepath"
)

// Source identifies where a screen document came from: a file, an fs.FS
// entry, a URL or a runtime next-screen response.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the document origins.
type SourceKind string

const (
	SourceKindFile    SourceKind = "file"
	SourceKindFS      SourceKind = "fs"
	SourceKindURL     SourceKind = "url"
	SourceKindRuntime SourceKind = "runtime"
)

type source struct {
	kind     SourceKind
	location string
}

func (s source) Kind() SourceKind { return s.kind }

func (s source) Location() string { return s.location }

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return source{kind: SourceKindFile, location: filepath.Clean(path)}
}

// SourceFromFS returns a Source identifying a resource inside an fs.FS.
func SourceFromFS(name string) Source {
	return source{kind: SourceKindFS, location: name}
}

// SourceFromRuntime identifies a screen delivered by the next-screen call.
func SourceFromRuntime(screenID string) Source {
	return source{kind: SourceKindRuntime, location: screenID}
}

// ParseURLSource validates raw and returns a URL Source.
func ParseURLSource(raw string) (Source, error) {
	if raw == "" {
		return nil, fmt.Errorf("schema: empty URL source")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return nil, fmt.Errorf("schema: invalid URL %q: %w", raw, err)
	}
	return source{kind: SourceKindURL, location: raw}, nil
}
