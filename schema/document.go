package schema

// Document represents a text record with optional identifier and metadata.
// ID may be empty on insert; the store assigns a surrogate. Numeric 64-bit
// identifiers are carried in their decimal string form.
type Document struct {
	ID          string                 `json:"id,omitempty"`
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	// Score is optional and populated by similarity search.
	Score float32 `json:"score,omitempty"`
}
