package matching

import (
	"strings"
	"testing"

	"github.com/viant/textvec/matching/option"
	"github.com/viant/textvec/schema"
)

func TestManager_IsExcluded_Table(t *testing.T) {
	tests := []struct {
		name     string
		doc      schema.Document
		options  []option.Option
		excluded bool
	}{
		{
			name:     "excluded by suffix glob",
			doc:      schema.Document{Metadata: map[string]interface{}{"path": "dir/foo_test.go"}},
			options:  []option.Option{option.WithExclusionPatterns("**/*_test.go")},
			excluded: true,
		},
		{
			name:     "included by suffix glob",
			doc:      schema.Document{Metadata: map[string]interface{}{"path": "dir/foo.go"}},
			options:  []option.Option{option.WithExclusionPatterns("**/*_test.go")},
			excluded: false,
		},
		{
			name: "inclusion restricts",
			doc:  schema.Document{Metadata: map[string]interface{}{"path": "notes/todo.md"}},
			options: []option.Option{
				option.WithInclusionPatterns("**/*.go"),
			},
			excluded: true,
		},
		{
			name: "custom metadata key",
			doc:  schema.Document{Metadata: map[string]interface{}{"source": "wiki/page"}},
			options: []option.Option{
				option.WithMetadataKey("source"),
				option.WithExclusionPatterns("wiki"),
			},
			excluded: true,
		},
		{
			name:     "oversized content",
			doc:      schema.Document{PageContent: strings.Repeat("x", 100)},
			options:  []option.Option{option.WithMaxContentSize(10)},
			excluded: true,
		},
		{
			name:     "missing key not excluded",
			doc:      schema.Document{Metadata: map[string]interface{}{}},
			options:  []option.Option{option.WithExclusionPatterns("secret")},
			excluded: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			manager := New(tc.options...)
			if got := manager.IsExcluded(&tc.doc); got != tc.excluded {
				t.Fatalf("IsExcluded = %v, want %v", got, tc.excluded)
			}
			if got := manager.Match(&tc.doc); got != !tc.excluded {
				t.Fatalf("Match = %v, want %v", got, !tc.excluded)
			}
		})
	}
}
