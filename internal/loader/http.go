package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-formflow/pkg/client"
)

const acceptDocuments = "application/json, application/yaml"

// fetch reads a screen document through the runtime client so transport
// failures share its request ids and *client.StatusError.
func (l *Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	if location == "" {
		return nil, errors.New("loader: url is required")
	}
	opts := []client.Option{
		client.WithHTTPClient(l.http),
		client.WithHeader("Accept", acceptDocuments),
	}
	if l.timeout > 0 {
		opts = append(opts, client.WithTimeout(l.timeout))
	}
	c, err := client.New(location, opts...)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	data, err := c.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", location, err)
	}
	return data, nil
}
