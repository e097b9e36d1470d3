package service

// AddRequest defines inputs for adding documents to a collection.
type AddRequest struct {
	Collection string
	Documents  []string
	// Metadata, when present, aligns 1:1 by position with Documents.
	Metadata []map[string]interface{}
	// IDs, when present, aligns 1:1 by position with Documents; empty
	// entries get generated surrogates.
	IDs  []string
	Logf func(format string, args ...any)
}

// SearchRequest defines inputs for a similarity search.
type SearchRequest struct {
	Collection string
	Query      string
	TopK       int
	Offset     int
	MinScore   float32
	// HasMinScore enables MinScore filtering; scores may be negative, so
	// zero is a meaningful threshold.
	HasMinScore bool
	// Include/Exclude filter results by metadata patterns.
	Include     []string
	Exclude     []string
	MetadataKey string
	Logf        func(format string, args ...any)
}

// SearchResult is a single ranked match.
type SearchResult struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RemoveRequest defines inputs for deleting documents from a collection.
type RemoveRequest struct {
	Collection string
	IDs        []string
	Logf       func(format string, args ...any)
}
