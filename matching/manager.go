package matching

import (
	"path/filepath"
	"strings"

	"github.com/viant/textvec/matching/option"
	"github.com/viant/textvec/schema"
)

// Manager filters search results by metadata value patterns and content size.
// It implements vectorstores.Filter.
type Manager struct {
	options *option.Options
}

// New creates a new filter manager with the given options.
func New(opts ...option.Option) *Manager {
	return &Manager{options: option.NewOptions(opts...)}
}

// Match reports whether the document passes the filter.
func (m *Manager) Match(doc *schema.Document) bool {
	return !m.IsExcluded(doc)
}

// IsExcluded checks if a document should be excluded based on the patterns.
func (m *Manager) IsExcluded(doc *schema.Document) bool {
	if m.options.MaxContentSize > 0 && len(doc.PageContent) > m.options.MaxContentSize {
		return true
	}
	value := metadataString(doc.Metadata, m.options.Key)

	if len(m.options.Inclusions) > 0 {
		if !m.isIncluded(value) {
			return true
		}
	}
	for _, pattern := range m.options.Exclusions {
		pattern = strings.TrimSpace(pattern)
		// Skip comments or empty lines
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if matches(value, pattern) {
			return true
		}
	}
	return false
}

func (m *Manager) isIncluded(value string) bool {
	for _, pattern := range m.options.Inclusions {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if matches(value, pattern) {
			return true
		}
	}
	return false
}

func matches(value, pattern string) bool {
	if value == "" {
		return false
	}
	// Direct substring match (common case for directory-like values)
	if strings.Contains(value, pattern) {
		return true
	}
	cleanPattern := strings.TrimPrefix(pattern, "/")
	if matched, _ := filepath.Match(cleanPattern, value); matched {
		return true
	}
	if matched, _ := filepath.Match("*/"+cleanPattern, value); matched {
		return true
	}
	// Suffix glob such as **/*.go
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if matched, _ := filepath.Match(suffix, filepath.Base(value)); matched {
			return true
		}
	}
	return false
}

func metadataString(metadata map[string]interface{}, key string) string {
	if value, ok := metadata[key]; ok {
		text, _ := value.(string)
		return text
	}
	return ""
}
