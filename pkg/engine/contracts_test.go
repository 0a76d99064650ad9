package engine

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNextScreenRequestWireShape(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(NextScreenRequest{Flow: FlowContext{ApplicationID: "a1", FlowID: "LOAN", PartnerCode: "DEFAULT"}})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	want := `{"applicationId":"a1","currentScreenId":null,"flowId":"LOAN","partnerCode":"DEFAULT","branchCode":null,"formData":{}}`
	if string(raw) != want {
		t.Fatalf("unexpected wire shape:\n got %s\nwant %s", raw, want)
	}

	var back NextScreenRequest
	in := `{"currentScreenId":"s1","flowId":"LOAN","productCode":"PL","branchCode":"B1","formData":{"a":"x"}}`
	if err := json.Unmarshal([]byte(in), &back); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	wantReq := NextScreenRequest{
		CurrentScreenID: "s1",
		Flow:            FlowContext{FlowID: "LOAN", ProductCode: "PL", BranchCode: "B1"},
		FormData:        map[string]any{"a": "x"},
	}
	if diff := cmp.Diff(wantReq, back); diff != "" {
		t.Fatalf("decoded request mismatch (-want +got):\n%s", diff)
	}
}

func TestFlowContextMergeKeepsKnownValues(t *testing.T) {
	t.Parallel()

	known := FlowContext{FlowID: "LOAN", ProductCode: "PL", BranchCode: "B1"}
	got := known.Merge(FlowContext{PartnerCode: "P9"})
	want := FlowContext{FlowID: "LOAN", ProductCode: "PL", PartnerCode: "P9", BranchCode: "B1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged context mismatch (-want +got):\n%s", diff)
	}
}
