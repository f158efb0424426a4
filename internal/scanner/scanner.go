package scanner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"ScholarshipScanner/internal/domain"
)

// ErrUnknownScanner is returned when a site names a layout nobody registered.
var ErrUnknownScanner = errors.New("scanner is not registered")

// Request carries all parameters required to execute a scan.
type Request struct {
	// Since filters out listings published on or before it; nil keeps everything.
	Since    *time.Time
	SiteName string
	BaseURL  string
	// Pages bounds how many listing pages are walked; zero means the scanner default.
	Pages   int
	Options map[string]string
}

// Option returns the named option or fallback.
func (r Request) Option(name, fallback string) string {
	if v, ok := r.Options[name]; ok && v != "" {
		return v
	}
	return fallback
}

// Scanner captures a single portal layout implementation.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Listing, error)
}

// Registry maps layout names to scanners.
type Registry struct {
	scanners map[string]Scanner
}

func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(s Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[s.Name()] = s
}

func (r *Registry) Resolve(name string) (Scanner, error) {
	if s, ok := r.scanners[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownScanner, name, r.Names())
}

// Names lists the registered layouts in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
