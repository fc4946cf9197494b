package kb

import (
	"log/slog"
	"time"

	"github.com/starford/memex/internal/search"
)

// Option configures a KB.
type Option func(*KB)

// WithKnowledgeDir sets the directory, relative to the storage root, that
// holds knowledge documents. Defaults to DefaultKnowledgeDir.
func WithKnowledgeDir(dir string) Option {
	return func(k *KB) { k.dir = dir }
}

// WithSemantic enables embedding search in front of the primary backend.
func WithSemantic(b search.Backend) Option {
	return func(k *KB) { k.semantic = b }
}

// WithPuller enables auto-pull: queries pull the remote at most once per
// interval before answering.
func WithPuller(p Puller, interval time.Duration) Option {
	return func(k *KB) {
		k.puller = p
		k.pullInterval = interval
	}
}

// WithClock overrides the clock used for pull rate limiting.
func WithClock(now func() time.Time) Option {
	return func(k *KB) { k.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *KB) { k.logger = l }
}

// WithOnChange registers fn to run after every refresh that created,
// updated or deleted entries. fn runs on the refreshing goroutine.
func WithOnChange(fn func(Change)) Option {
	return func(k *KB) { k.onChange = fn }
}
