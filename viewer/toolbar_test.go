package viewer

import (
	"encoding/json"
	"testing"
)

func TestToolbarMarshal(t *testing.T) {
	tests := []struct {
		item ToolbarItem
		want string
	}{
		{BuiltinItem("sidebar-thumbnails"), `{"type":"sidebar-thumbnails"}`},
		{BuiltinItem("annotate"), `{"type":"annotate"}`},
		{CustomItem("save-state", "Save"), `{"type":"custom","id":"save-state","title":"Save"}`},
		{SpacerItem(), `{"type":"spacer"}`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.item)
		if err != nil {
			t.Fatalf("marshal %v: %v", tt.item.Kind, err)
		}
		if string(data) != tt.want {
			t.Errorf("marshal %v = %s, want %s", tt.item.Kind, data, tt.want)
		}
	}
}

func TestToolbarMarshalRejectsInvalid(t *testing.T) {
	if _, err := json.Marshal(ToolbarItem{Kind: ToolbarBuiltin}); err == nil {
		t.Fatal("builtin without name marshalled")
	}
	if _, err := json.Marshal(ToolbarItem{Kind: ToolbarCustom, ID: "x"}); err == nil {
		t.Fatal("custom without title marshalled")
	}
	if _, err := json.Marshal(ToolbarItem{Kind: ToolbarKind(9)}); err == nil {
		t.Fatal("unknown kind marshalled")
	}
}

func TestToolbarUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want ToolbarItem
	}{
		{`{"type":"export-pdf"}`, BuiltinItem("export-pdf")},
		{`{"type":"custom","id":"cmp","title":"Compare"}`, CustomItem("cmp", "Compare")},
		{`{"type":"spacer"}`, SpacerItem()},
	}
	for _, tt := range tests {
		var got ToolbarItem
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("unmarshal %s = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestToolbarUnmarshalRejects(t *testing.T) {
	for _, in := range []string{
		`{"id":"no-type"}`,
		`{"type":"custom","id":"missing-title"}`,
		`not json`,
	} {
		var item ToolbarItem
		if err := json.Unmarshal([]byte(in), &item); err == nil {
			t.Errorf("unmarshal %s succeeded, want error", in)
		}
	}
}

func TestToolbarRoundTrip(t *testing.T) {
	bar := []ToolbarItem{
		BuiltinItem("sidebar-thumbnails"),
		SpacerItem(),
		CustomItem("save-state", "Save annotations"),
	}
	data, err := json.Marshal(bar)
	if err != nil {
		t.Fatal(err)
	}
	var back []ToolbarItem
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if len(back) != len(bar) {
		t.Fatalf("len = %d", len(back))
	}
	for i := range bar {
		if back[i] != bar[i] {
			t.Fatalf("item %d = %+v, want %+v", i, back[i], bar[i])
		}
	}
}
