package fixture

import (
	"embed"
	"io/fs"
)

//go:embed flows
var embeddedFlows embed.FS

// SampleFlow is the name of the bundled personal loan flow.
const SampleFlow = "personal_loan"

// EmbeddedFS returns the bundled flow directory called name. Pass the result
// to LoadFS.
func EmbeddedFS(name string) (fs.FS, error) {
	return fs.Sub(embeddedFlows, "flows/"+name)
}

// Sample loads the bundled personal loan flow.
func Sample() (*Flow, error) {
	fsys, err := EmbeddedFS(SampleFlow)
	if err != nil {
		return nil, err
	}
	return LoadFS(fsys)
}
