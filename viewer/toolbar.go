package viewer

import (
	"encoding/json"
	"fmt"
)

// ToolbarKind discriminates toolbar item variants. The SDK wire format uses
// a "type" string; on the Go side each variant carries only the fields that
// belong to it, and marshalling is exhaustive over kinds so an unhandled
// variant is an error instead of a silently misshapen item.
type ToolbarKind int

const (
	// ToolbarBuiltin is one of the SDK's own items, named by its SDK type
	// string ("sidebar-thumbnails", "annotate", "export-pdf", ...).
	ToolbarBuiltin ToolbarKind = iota
	// ToolbarCustom is a gallery-defined button with an ID and title.
	ToolbarCustom
	// ToolbarSpacer pushes following items to the far side of the bar.
	ToolbarSpacer
)

// String returns the kind's name for logs and errors.
func (k ToolbarKind) String() string {
	switch k {
	case ToolbarBuiltin:
		return "builtin"
	case ToolbarCustom:
		return "custom"
	case ToolbarSpacer:
		return "spacer"
	default:
		return fmt.Sprintf("ToolbarKind(%d)", int(k))
	}
}

// ToolbarItem is one entry of a viewer toolbar.
type ToolbarItem struct {
	Kind ToolbarKind

	// Builtin names the SDK item when Kind is ToolbarBuiltin.
	Builtin string

	// ID and Title describe the item when Kind is ToolbarCustom.
	ID    string
	Title string
}

// BuiltinItem returns a builtin toolbar item.
func BuiltinItem(name string) ToolbarItem {
	return ToolbarItem{Kind: ToolbarBuiltin, Builtin: name}
}

// CustomItem returns a custom toolbar item.
func CustomItem(id, title string) ToolbarItem {
	return ToolbarItem{Kind: ToolbarCustom, ID: id, Title: title}
}

// SpacerItem returns a spacer toolbar item.
func SpacerItem() ToolbarItem {
	return ToolbarItem{Kind: ToolbarSpacer}
}

// Validate checks that the item's fields agree with its kind.
func (t ToolbarItem) Validate() error {
	switch t.Kind {
	case ToolbarBuiltin:
		if t.Builtin == "" {
			return fmt.Errorf("viewer: builtin toolbar item needs a name")
		}
		return nil
	case ToolbarCustom:
		if t.ID == "" || t.Title == "" {
			return fmt.Errorf("viewer: custom toolbar item %q needs id and title", t.ID)
		}
		return nil
	case ToolbarSpacer:
		return nil
	default:
		return fmt.Errorf("viewer: unknown toolbar kind %v", t.Kind)
	}
}

// MarshalJSON emits the SDK wire shape for the item.
func (t ToolbarItem) MarshalJSON() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch t.Kind {
	case ToolbarBuiltin:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: t.Builtin})
	case ToolbarCustom:
		return json.Marshal(struct {
			Type  string `json:"type"`
			ID    string `json:"id"`
			Title string `json:"title"`
		}{Type: "custom", ID: t.ID, Title: t.Title})
	case ToolbarSpacer:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: "spacer"})
	default:
		return nil, fmt.Errorf("viewer: unknown toolbar kind %v", t.Kind)
	}
}

// UnmarshalJSON parses the SDK wire shape back into a tagged variant.
func (t *ToolbarItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  string `json:"type"`
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("viewer: toolbar item: %w", err)
	}
	switch raw.Type {
	case "":
		return fmt.Errorf("viewer: toolbar item missing type")
	case "custom":
		*t = ToolbarItem{Kind: ToolbarCustom, ID: raw.ID, Title: raw.Title}
	case "spacer":
		*t = ToolbarItem{Kind: ToolbarSpacer}
	default:
		*t = ToolbarItem{Kind: ToolbarBuiltin, Builtin: raw.Type}
	}
	return t.Validate()
}
