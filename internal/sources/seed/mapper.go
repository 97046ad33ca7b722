package seed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
)

// Registration is a validated service entry.
type Registration struct {
	URL     string
	Type    domain.ServiceType // empty when it must be detected
	Catalog string
}

// Mapper converts a seed File into domain values.
type Mapper struct {
	defaultCatalog string
}

// NewMapper creates a mapper; entries without a catalog go to defaultCatalog.
func NewMapper(defaultCatalog string) *Mapper {
	if defaultCatalog == "" {
		defaultCatalog = domain.DefaultCatalogSlug
	}
	return &Mapper{defaultCatalog: defaultCatalog}
}

// MapCatalogs returns the declared catalogs, always including the default one.
func (m *Mapper) MapCatalogs(f *File) []domain.Catalog {
	seen := map[string]bool{}
	var out []domain.Catalog
	for _, c := range f.Catalogs {
		slug := strings.TrimSpace(c.Slug)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, domain.Catalog{Slug: slug, Name: c.Name, URL: c.URL})
	}
	if !seen[m.defaultCatalog] {
		out = append(out, domain.Catalog{Slug: m.defaultCatalog, Name: m.defaultCatalog})
	}
	return out
}

// MapServices validates service entries. Invalid entries are skipped and
// reported in the returned error; valid ones are still returned.
func (m *Mapper) MapServices(f *File) ([]Registration, error) {
	var (
		out  []Registration
		errs []error
		seen = map[string]bool{}
	)
	for i, s := range f.Services {
		raw := strings.TrimSpace(s.URL)
		if raw == "" {
			errs = append(errs, fmt.Errorf("service #%d: missing url", i))
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("service #%d: invalid url %q", i, raw))
			continue
		}

		var typ domain.ServiceType
		if s.Type != "" {
			typ, err = domain.ParseServiceType(s.Type)
			if err != nil {
				errs = append(errs, fmt.Errorf("service #%d: %w", i, err))
				continue
			}
		}

		catalog := strings.TrimSpace(s.Catalog)
		if catalog == "" {
			catalog = m.defaultCatalog
		}
		key := catalog + "|" + raw
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Registration{URL: raw, Type: typ, Catalog: catalog})
	}

	return out, errors.Join(errs...)
}
