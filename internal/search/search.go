// Package search selects the search engine layers are indexed into and
// searched from.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/search/document"
	"github.com/MrSnakeDoc/georegistry/internal/search/elastic"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
	"github.com/MrSnakeDoc/georegistry/internal/search/solr"
)

// Engine names.
const (
	EngineSolr    = "solr"
	EngineElastic = "elasticsearch"
)

// ErrUnknownEngine is returned for engine names that are not configured.
var ErrUnknownEngine = errors.New("unknown search engine")

// Engine is a search backend.
type Engine interface {
	Name() string
	EnsureCatalog(ctx context.Context, catalog string) error
	IndexLayer(ctx context.Context, p *document.Prepared) error
	IndexLayers(ctx context.Context, ps []*document.Prepared) error
	Clear(ctx context.Context, catalog string) error
	Search(ctx context.Context, req *searchapi.Request) (*searchapi.Response, error)
	Ping(ctx context.Context) error
}

var (
	_ Engine = (*solr.Client)(nil)
	_ Engine = (*elastic.Client)(nil)
)

// Options selects and configures the engines. An engine whose URL is
// empty is not built.
type Options struct {
	Default string
	Solr    solr.Options
	Elastic elastic.Options
}

// Set holds the configured engines and the default one.
type Set struct {
	engines map[string]Engine
	def     Engine
}

// New builds the default engine only.
func New(opts Options, log logger.Logger) (Engine, error) {
	switch canonical(opts.Default) {
	case EngineSolr:
		if opts.Solr.URL == "" {
			return nil, errors.New("solr url is required")
		}
		return solr.New(opts.Solr, log), nil
	case EngineElastic:
		if opts.Elastic.URL == "" {
			return nil, errors.New("elasticsearch url is required")
		}
		return elastic.New(opts.Elastic, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, opts.Default)
	}
}

// NewSet builds every engine with a URL. The default must be among them.
func NewSet(opts Options, log logger.Logger) (*Set, error) {
	def, err := New(opts, log)
	if err != nil {
		return nil, err
	}
	s := &Set{engines: map[string]Engine{def.Name(): def}, def: def}
	if opts.Solr.URL != "" && def.Name() != EngineSolr {
		s.engines[EngineSolr] = solr.New(opts.Solr, log)
	}
	if opts.Elastic.URL != "" && def.Name() != EngineElastic {
		s.engines[EngineElastic] = elastic.New(opts.Elastic, log)
	}
	return s, nil
}

// NewSetOf wraps already built engines; the first is the default.
func NewSetOf(def Engine, others ...Engine) *Set {
	s := &Set{engines: map[string]Engine{def.Name(): def}, def: def}
	for _, e := range others {
		s.engines[e.Name()] = e
	}
	return s
}

// Default is the engine layers are indexed into.
func (s *Set) Default() Engine { return s.def }

// Pick returns the engine named by the search_engine parameter, or the
// default when name is empty. Unknown names are a 400.
func (s *Set) Pick(name string) (Engine, error) {
	if name == "" {
		return s.def, nil
	}
	if e, ok := s.engines[canonical(name)]; ok {
		return e, nil
	}
	return nil, searchapi.BadRequest("search_engine %q is not configured (have %s)", name, strings.Join(s.Names(), ", "))
}

// Names lists the configured engines.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.engines))
	for n := range s.engines {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// All returns every configured engine.
func (s *Set) All() []Engine {
	out := make([]Engine, 0, len(s.engines))
	for _, n := range s.Names() {
		out = append(out, s.engines[n])
	}
	return out
}

func canonical(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "solr":
		return EngineSolr
	case "elasticsearch", "elastic", "es":
		return EngineElastic
	default:
		return strings.ToLower(name)
	}
}
