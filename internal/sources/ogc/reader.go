package ogc

import (
	"context"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/sources/fetch"
)

// HTTPReader is the Reader backed by the shared fetch client.
type HTTPReader struct {
	client *fetch.Client
}

var _ Reader = (*HTTPReader)(nil)

// NewHTTPReader creates a new HTTPReader.
func NewHTTPReader(client *fetch.Client) *HTTPReader {
	return &HTTPReader{client: client}
}

// WMS fetches a GetCapabilities document and parses it.
func (r *HTTPReader) WMS(ctx context.Context, endpoint string) (*Capabilities, error) {
	data, err := r.client.GetBytes(ctx, CapabilitiesURL(endpoint, "WMS"))
	if err != nil {
		return nil, err
	}
	return ParseWMS(data)
}

// WMTS fetches a GetCapabilities document (or a static
// WMTSCapabilities.xml) and parses it.
func (r *HTTPReader) WMTS(ctx context.Context, endpoint string) (*Capabilities, error) {
	u := endpoint
	if !strings.HasSuffix(strings.ToLower(stripQuery(endpoint)), ".xml") {
		u = CapabilitiesURL(endpoint, "WMTS")
	}
	data, err := r.client.GetBytes(ctx, u)
	if err != nil {
		return nil, err
	}
	return ParseWMTS(data)
}

// CSW fetches a GetCapabilities document and parses the identification.
func (r *HTTPReader) CSW(ctx context.Context, endpoint string) (*Capabilities, error) {
	data, err := r.client.GetBytes(ctx, CapabilitiesURL(endpoint, "CSW"))
	if err != nil {
		return nil, err
	}
	return ParseCSW(data)
}

// TMS fetches the TileMapService root and every TileMap it lists.
// A tile map that cannot be read yields a layer without bbox.
func (r *HTTPReader) TMS(ctx context.Context, endpoint string) (*Capabilities, error) {
	data, err := r.client.GetBytes(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	root, err := ParseTileMapService(data)
	if err != nil {
		return nil, err
	}

	caps := &Capabilities{
		Version:  root.Version,
		Title:    strings.TrimSpace(root.Title),
		Abstract: strings.TrimSpace(root.Abstract),
	}
	for _, ref := range root.TileMaps {
		fallback := Layer{
			Name:   ref.Name(),
			Title:  strings.TrimSpace(ref.Title),
			CRS:    mergeCRS(nil, []string{ref.SRS}),
			Native: true,
			URL:    ref.Href,
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, err := r.client.GetBytes(ctx, resolve(endpoint, ref.Href))
		if err != nil {
			caps.Layers = append(caps.Layers, fallback)
			continue
		}
		l, err := ParseTileMap(fallback.Name, body)
		if err != nil {
			caps.Layers = append(caps.Layers, fallback)
			continue
		}
		if l.Title == "" {
			l.Title = fallback.Title
		}
		if len(l.CRS) == 0 {
			l.CRS = fallback.CRS
		}
		l.URL = ref.Href
		caps.Layers = append(caps.Layers, l)
	}

	if len(caps.Layers) == 0 {
		return caps, ErrNoLayers
	}
	return caps, nil
}

// CapabilitiesURL adds SERVICE and REQUEST parameters to endpoint unless
// it already carries a REQUEST.
func CapabilitiesURL(endpoint, service string) string {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return endpoint
	}
	q := u.Query()
	for k := range q {
		if strings.EqualFold(k, "request") {
			return u.String()
		}
	}
	q.Set("SERVICE", service)
	q.Set("REQUEST", "GetCapabilities")
	u.RawQuery = q.Encode()
	return u.String()
}

func stripQuery(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
