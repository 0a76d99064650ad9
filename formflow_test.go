package formflow

import (
	"context"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formflow/pkg/fixture"
	"github.com/goliatone/go-formflow/pkg/schema"
)

func TestNewLoaderReadsFS(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"contact.json": {Data: []byte(`{"screenId":"contact","sections":[]}`)}}
	screen, err := NewLoader(LoaderWithFS(files)).LoadScreen(context.Background(), schema.SourceFromFS("contact.json"))
	if err != nil {
		t.Fatalf("LoadScreen: %v", err)
	}
	if res := Lint(screen); !res.Valid {
		t.Fatalf("expected clean screen, got %+v", res.Issues)
	}
}

func TestNewRemoteStartsFlow(t *testing.T) {
	t.Parallel()

	flow, err := fixture.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	srv := httptest.NewServer(fixture.Handler(fixture.NewBackend(flow)))
	t.Cleanup(srv.Close)

	e, err := NewRemote(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}
	if err := e.Start(context.Background(), FlowContext{FlowID: flow.ID}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := e.View().ScreenID; got != flow.Start {
		t.Fatalf("expected first screen %q, got %q", flow.Start, got)
	}
}

func TestNewRemoteRejectsRelativeURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRemote("/relative", nil); err == nil {
		t.Fatalf("expected relative base URL to be rejected")
	}
}
