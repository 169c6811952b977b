package ocrparse

import "encoding/json"

// PageLayoutInfo is the read-only per-page layout projection returned in rich
// mode: the prunedResult structure with detected regions, bounding boxes,
// classifications and confidences. The payload is kept opaque.
type PageLayoutInfo struct {
	PrunedResult json.RawMessage `json:"pruned_result"`
}

// Result bundles the merged markdown text with, in rich mode, the ordered
// per-page layout metadata from layout parsing. PagesLayout is nil unless
// Config.ReturnLayoutInfo is set. The JSON shape is stable and free of any
// embedded base64 image payloads.
type Result struct {
	Markdown    string           `json:"markdown"`
	PagesLayout []PageLayoutInfo `json:"pages_layout,omitempty"`
}
