package seed

// File is the top-level structure of a seed file.
type File struct {
	Catalogs []CatalogEntry `yaml:"catalogs" toml:"catalogs"`
	Services []ServiceEntry `yaml:"services" toml:"services"`
}

// CatalogEntry declares a catalog to create.
type CatalogEntry struct {
	Slug string `yaml:"slug" toml:"slug"`
	Name string `yaml:"name,omitempty" toml:"name,omitempty"`
	URL  string `yaml:"url,omitempty" toml:"url,omitempty"`
}

// ServiceEntry declares a remote service to register. An empty Type is
// detected at registration; an empty Catalog means the default catalog.
type ServiceEntry struct {
	URL     string `yaml:"url" toml:"url"`
	Type    string `yaml:"type,omitempty" toml:"type,omitempty"`
	Catalog string `yaml:"catalog,omitempty" toml:"catalog,omitempty"`
}
