package ai

import "testing"

func TestExtractJSONObject(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":            `{"a":1}`,
		"Here you go: {\"a\":1} hope it helps": `{"a":1}`,
		`{"a":1}`:                              `{"a":1}`,
		"no json here":                         "",
	}
	for in, want := range cases {
		if got := ExtractJSONObject(in); got != want {
			t.Errorf("ExtractJSONObject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeJSONObjectRepairsTrailingComma(t *testing.T) {
	var v struct {
		Fixes []struct {
			IssueID string `json:"issueId"`
		} `json:"fixes"`
	}
	repaired, err := DecodeJSONObject(`{"fixes": [{"issueId": "i1",},]}`, &v)
	if err != nil {
		t.Fatalf("DecodeJSONObject: %v", err)
	}
	if !repaired {
		t.Fatal("expected the repair pass to run")
	}
	if len(v.Fixes) != 1 || v.Fixes[0].IssueID != "i1" {
		t.Fatalf("decoded = %+v", v)
	}
}
