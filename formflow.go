// Package formflow is the entry point for driving backend delivered form
// flows. It re-exports the engine and its collaborators so callers can wire
// a flow from a single import.
package formflow

import (
	"context"

	internalloader "github.com/goliatone/go-formflow/internal/loader"
	"github.com/goliatone/go-formflow/pkg/client"
	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// Engine aliases engine.Engine.
type Engine = engine.Engine

// FlowContext identifies the flow an engine walks.
type FlowContext = engine.FlowContext

// View is the read model of the current screen.
type View = engine.View

// Screen is a decoded screen configuration.
type Screen = schema.Screen

// Loader reads screen documents from files, an fs.FS or HTTP.
type Loader interface {
	Load(ctx context.Context, src schema.Source) (schema.Document, error)
	LoadScreen(ctx context.Context, src schema.Source) (*schema.Screen, error)
}

// New constructs an engine talking to backend.
func New(backend engine.Backend, options ...engine.Option) *Engine {
	return engine.New(backend, options...)
}

// NewRemote constructs an engine whose every collaborator is the runtime
// HTTP API at baseURL.
func NewRemote(baseURL string, clientOptions []client.Option, options ...engine.Option) (*Engine, error) {
	c, err := client.New(baseURL, clientOptions...)
	if err != nil {
		return nil, err
	}
	opts := append([]engine.Option{
		engine.WithVerifier(c),
		engine.WithOptionLoader(c),
		engine.WithMasterData(c),
	}, options...)
	return engine.New(c, opts...), nil
}

// LoaderOption configures NewLoader.
type LoaderOption = internalloader.Option

// Loader options.
var (
	LoaderWithFS         = internalloader.WithFS
	LoaderWithHTTP       = internalloader.WithHTTP
	LoaderWithHTTPClient = internalloader.WithHTTPClient
	LoaderWithTimeout    = internalloader.WithTimeout
)

// NewLoader constructs a document loader while keeping the concrete type
// hidden from consumers.
func NewLoader(options ...LoaderOption) Loader {
	return internalloader.New(options...)
}

// DecodeScreen parses a JSON screen configuration.
func DecodeScreen(data []byte) (*Screen, error) {
	return schema.Decode(data)
}

// Lint reports structural problems of a decoded screen.
func Lint(screen *Screen) schema.LintResult {
	return schema.Lint(screen)
}
