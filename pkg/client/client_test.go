package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/schema"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, WithHeader("X-Partner", "P1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsRelativeBase(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatalf("expected empty base URL to fail")
	}
	if _, err := New("api/v1"); err == nil {
		t.Fatalf("expected relative base URL to fail")
	}
}

func TestNextScreenRoundTrip(t *testing.T) {
	t.Parallel()

	var got map[string]any
	var headers http.Header
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/runtime/next-screen", func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, `{
			"nextScreenId": "applicant",
			"screenConfig": {
				"screenId": "applicant",
				"flowId": "LOAN",
				"sections": [{"sectionId": "s1", "fields": [{"id": "name", "type": "TEXT", "label": "Name"}]}]
			}
		}`)
	})
	c := newTestClient(t, mux)

	resp, err := c.NextScreen(context.Background(), engine.NextScreenRequest{
		Flow: engine.FlowContext{ApplicationID: "a1", FlowID: "LOAN", PartnerCode: "DEFAULT"},
	})
	if err != nil {
		t.Fatalf("NextScreen: %v", err)
	}
	if resp.NextScreenID != "applicant" || resp.Screen == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Screen.FlowID != "LOAN" || len(resp.Screen.Sections) != 1 {
		t.Fatalf("screen not decoded: %+v", resp.Screen)
	}

	want := map[string]any{
		"applicationId":   "a1",
		"currentScreenId": nil,
		"flowId":          "LOAN",
		"partnerCode":     "DEFAULT",
		"branchCode":      nil,
		"formData":        map[string]any{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request body mismatch (-want +got):\n%s", diff)
	}
	if headers.Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
	if headers.Get("X-Partner") != "P1" {
		t.Fatalf("expected configured header, got %q", headers.Get("X-Partner"))
	}
}

func TestNextScreenStatusError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/runtime/next-screen", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"message":"flow engine down"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.NextScreen(context.Background(), engine.NextScreenRequest{Flow: engine.FlowContext{FlowID: "LOAN"}})
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("expected 502 status error, got %v", err)
	}
}

func TestFetchReturnsRawBody(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /screens/contact.yaml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "screenId: contact\n")
	})
	mux.HandleFunc("GET /screens/gone.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = io.WriteString(w, `{"message": "retired"}`)
	})
	c := newTestClient(t, mux)

	data, err := c.Fetch(context.Background(), "/screens/contact.yaml")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "screenId: contact\n" {
		t.Fatalf("unexpected body %q", data)
	}

	_, err = c.Fetch(context.Background(), c.BaseURL()+"screens/gone.yaml")
	if !IsStatus(err, http.StatusGone) {
		t.Fatalf("expected a gone status error, got %v", err)
	}
}

func TestLookupFetchesOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/master-data", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"GENDER":["Male","Female"],"STATE":["KA","TN"]}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	gender, err := c.Lookup(ctx, "GENDER")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if diff := cmp.Diff([]string{"Male", "Female"}, gender); diff != "" {
		t.Fatalf("gender mismatch (-want +got):\n%s", diff)
	}
	missing, err := c.Lookup(ctx, "UNKNOWN")
	if err != nil {
		t.Fatalf("Lookup unknown: %v", err)
	}
	if missing == nil || len(missing) != 0 {
		t.Fatalf("expected empty list for unknown key, got %#v", missing)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single master-data fetch, got %d", hits.Load())
	}

	c.RefreshMasterData()
	if _, err := c.Lookup(ctx, "STATE"); err != nil {
		t.Fatalf("Lookup after refresh: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected refresh to refetch, got %d", hits.Load())
	}
}

func TestCodeEndpoints(t *testing.T) {
	t.Parallel()

	var sent map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/otp/send", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &sent)
		_, _ = io.WriteString(w, `{"status":"SENT"}`)
	})
	mux.HandleFunc("GET /api/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("otp") != "1234" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid OTP"}`)
			return
		}
		_, _ = io.WriteString(w, `{"verified":true}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	res, err := c.SendCode(ctx, engine.CodeRequest{
		Endpoint: schema.Endpoint{URL: "/api/otp/send"},
		FieldID:  "mobile",
		Target:   "9876543210",
		Channel:  "SMS",
	})
	if err != nil || !res.OK {
		t.Fatalf("SendCode: %+v %v", res, err)
	}
	wantSent := map[string]any{"fieldId": "mobile", "value": "9876543210", "channel": "SMS"}
	if diff := cmp.Diff(wantSent, sent); diff != "" {
		t.Fatalf("send body mismatch (-want +got):\n%s", diff)
	}

	verify := schema.Endpoint{URL: "api/otp/verify", Method: "get"}
	res, err = c.VerifyCode(ctx, engine.CodeRequest{Endpoint: verify, FieldID: "mobile", Target: "9876543210", Code: "0000"})
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if res.OK || res.Message != "Invalid OTP" {
		t.Fatalf("expected rejected code with message, got %+v", res)
	}
	res, err = c.VerifyCode(ctx, engine.CodeRequest{Endpoint: verify, FieldID: "mobile", Target: "9876543210", Code: "1234"})
	if err != nil || !res.OK {
		t.Fatalf("expected accepted code, got %+v %v", res, err)
	}

	if _, err := c.SendCode(ctx, engine.CodeRequest{FieldID: "mobile"}); err == nil {
		t.Fatalf("expected missing endpoint to fail")
	}
}

func TestCallSendsRenderedBody(t *testing.T) {
	t.Parallel()

	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/verify/pan", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = string(body)
		_, _ = io.WriteString(w, `{"data":{"status":"VALID"}}`)
	})
	mux.HandleFunc("GET /api/verify/ifsc", func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("ifsc")
		_, _ = io.WriteString(w, `{}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	res, err := c.Call(ctx, engine.CallRequest{
		Endpoint: schema.Endpoint{URL: "/api/verify/pan"},
		FieldID:  "pan",
		Value:    "ABCDE1234F",
		Body:     `{"pan":"ABCDE1234F"}`,
	})
	if err != nil || !res.OK {
		t.Fatalf("Call: %+v %v", res, err)
	}
	if got != `{"pan":"ABCDE1234F"}` {
		t.Fatalf("unexpected body %q", got)
	}
	if string(res.Body) != `{"data":{"status":"VALID"}}` {
		t.Fatalf("expected raw body to be returned, got %q", res.Body)
	}

	if _, err := c.Call(ctx, engine.CallRequest{
		Endpoint: schema.Endpoint{URL: "/api/verify/ifsc", Method: "GET"},
		FieldID:  "ifsc",
		Value:    "HDFC0000001",
	}); err != nil {
		t.Fatalf("GET call: %v", err)
	}
	if got != "HDFC0000001" {
		t.Fatalf("expected value as query parameter, got %q", got)
	}
}

func TestCallTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Call(context.Background(), engine.CallRequest{Endpoint: schema.Endpoint{URL: "/api/verify/pan"}})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if res.OK || res.Message == "" {
		t.Fatalf("expected failed result with transport message, got %+v", res)
	}
}

func TestLoadOptions(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/branches", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("state") {
		case "KA":
			_, _ = io.WriteString(w, `["Bengaluru","Mysuru"]`)
		default:
			_, _ = io.WriteString(w, `{"options":[{"label":"Chennai","value":"CHN"}]}`)
		}
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	tests := []struct {
		name  string
		param string
		want  []string
	}{
		{name: "bare array", param: "KA", want: []string{"Bengaluru", "Mysuru"}},
		{name: "wrapped objects", param: "TN", want: []string{"Chennai"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.LoadOptions(ctx, engine.OptionRequest{
				FieldID:    "branch",
				Endpoint:   "/api/branches",
				ParamKey:   "state",
				ParamValue: tc.param,
			})
			if err != nil {
				t.Fatalf("LoadOptions: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
