package option

// Options holds metadata filtering configuration.
type Options struct {
	// Key is the metadata key patterns are matched against.
	Key string
	// Inclusions, when non-empty, restrict results to matching values.
	Inclusions []string
	// Exclusions drop results with matching values.
	Exclusions []string
	// MaxContentSize drops results whose page content exceeds the limit.
	MaxContentSize int
}

// Option defines a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates options with the supplied settings.
func NewOptions(opts ...Option) *Options {
	ret := &Options{Key: "path"}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// WithMetadataKey sets the metadata key to match patterns against.
func WithMetadataKey(key string) Option {
	return func(o *Options) {
		if key != "" {
			o.Key = key
		}
	}
}

// WithInclusionPatterns appends inclusion patterns.
func WithInclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Inclusions = append(o.Inclusions, patterns...)
	}
}

// WithExclusionPatterns appends exclusion patterns.
func WithExclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Exclusions = append(o.Exclusions, patterns...)
	}
}

// WithMaxContentSize caps result page content size in bytes.
func WithMaxContentSize(size int) Option {
	return func(o *Options) {
		o.MaxContentSize = size
	}
}
