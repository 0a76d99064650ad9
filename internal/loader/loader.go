// Package loader reads screen documents from files, an fs.FS or HTTP.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Loader resolves a schema.Source into a schema.Document by delegating to
// the file, fs.FS or HTTP strategy.
type Loader struct {
	fs        fs.FS
	http      *http.Client
	allowHTTP bool
	timeout   time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithFS serves SourceKindFS documents from files.
func WithFS(files fs.FS) Option {
	return func(l *Loader) {
		l.fs = files
	}
}

// WithHTTPClient enables URL sources through client. The client is cloned
// so the request timeout does not leak into the caller's client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		if client == nil {
			return
		}
		clone := *client
		l.http = &clone
		l.allowHTTP = true
	}
}

// WithHTTP enables URL sources with a default client.
func WithHTTP() Option {
	return func(l *Loader) {
		if l.http == nil {
			l.http = &http.Client{}
		}
		l.allowHTTP = true
	}
}

// WithTimeout bounds each HTTP fetch.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Loader) {
		l.timeout = timeout
	}
}

// New constructs a Loader. HTTP sources are rejected unless enabled.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load fetches the document behind src.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, errors.New("loader: source is nil")
	}

	var (
		data []byte
		err  error
	)

	switch src.Kind() {
	case schema.SourceKindFile:
		data, err = loadFile(ctx, src.Location())
	case schema.SourceKindFS:
		data, err = loadFromFS(ctx, l.fs, src.Location())
	case schema.SourceKindURL:
		if !l.allowHTTP {
			return schema.Document{}, errors.New("loader: http support disabled")
		}
		data, err = l.fetch(ctx, src.Location())
	default:
		err = errors.New("loader: unsupported source kind " + string(src.Kind()))
	}
	if err != nil {
		return schema.Document{}, err
	}

	return schema.NewDocument(src, data)
}

// LoadScreen loads and decodes a screen.
func (l *Loader) LoadScreen(ctx context.Context, src schema.Source) (*schema.Screen, error) {
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return doc.Screen()
}
