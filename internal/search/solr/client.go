package solr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/search/document"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
	"github.com/MrSnakeDoc/georegistry/internal/sources/fetch"
)

// Options configures a Client.
type Options struct {
	URL          string // e.g. http://localhost:8983/solr
	Core         string
	QueryTimeout time.Duration
	IndexTimeout time.Duration
}

// Client talks to one Solr core. All catalogs share it; documents carry
// their catalog slug.
type Client struct {
	query *fetch.Client
	index *fetch.Client
	base  string
	log   logger.Logger

	schemaMu    sync.Mutex
	schemaReady bool
}

// New creates a Client.
func New(opts Options, log logger.Logger) *Client {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 20 * time.Second
	}
	if opts.IndexTimeout <= 0 {
		opts.IndexTimeout = 30 * time.Second
	}
	q := fetch.New(fetch.Options{Timeout: opts.QueryTimeout})
	return &Client{
		query: q,
		index: q.WithTimeout(opts.IndexTimeout),
		base:  strings.TrimRight(opts.URL, "/") + "/" + opts.Core,
		log:   log,
	}
}

func (c *Client) Name() string { return "solr" }

// Ping checks the core answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.query.Send(ctx, http.MethodGet, c.base+"/admin/ping?wt=json", "", nil)
	return err
}

// EnsureCatalog makes sure the schema has the layer fields. The core is
// shared, so the slug itself needs no setup.
func (c *Client) EnsureCatalog(ctx context.Context, _ string) error {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	if c.schemaReady {
		return nil
	}
	if err := c.UpdateSchema(ctx); err != nil {
		return err
	}
	c.schemaReady = true
	return nil
}

// UpdateSchema adds the missing field types and fields through the
// Schema API. Existing definitions are left alone.
func (c *Client) UpdateSchema(ctx context.Context) error {
	var types struct {
		FieldTypes []struct {
			Name string `json:"name"`
		} `json:"fieldTypes"`
	}
	if err := c.query.GetJSON(ctx, c.base+"/schema/fieldtypes?wt=json", &types); err != nil {
		return fmt.Errorf("list solr field types: %w", err)
	}
	var fields struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := c.query.GetJSON(ctx, c.base+"/schema/fields?wt=json", &fields); err != nil {
		return fmt.Errorf("list solr fields: %w", err)
	}

	haveType := map[string]bool{}
	for _, t := range types.FieldTypes {
		haveType[t.Name] = true
	}
	haveField := map[string]bool{}
	for _, f := range fields.Fields {
		haveField[f.Name] = true
	}

	cmd := map[string]any{}
	var addTypes []map[string]any
	for _, t := range FieldTypes {
		if name, _ := t["name"].(string); !haveType[name] {
			addTypes = append(addTypes, t)
		}
	}
	var addFields []Field
	for _, f := range Fields {
		if !haveField[f.Name] {
			addFields = append(addFields, f)
		}
	}
	if len(addTypes) == 0 && len(addFields) == 0 {
		return nil
	}
	if len(addTypes) > 0 {
		cmd["add-field-type"] = addTypes
	}
	if len(addFields) > 0 {
		cmd["add-field"] = addFields
	}

	if err := c.post(ctx, c.base+"/schema?wt=json", cmd); err != nil {
		return fmt.Errorf("update solr schema: %w", err)
	}
	c.log.Info("solr schema updated",
		logger.Int("field_types", len(addTypes)),
		logger.Int("fields", len(addFields)))
	return nil
}

// IndexLayer writes one prepared layer.
func (c *Client) IndexLayer(ctx context.Context, p *document.Prepared) error {
	return c.IndexMany(ctx, []Document{BuildDocument(p)})
}

// IndexLayers writes prepared layers in one update request.
func (c *Client) IndexLayers(ctx context.Context, ps []*document.Prepared) error {
	docs := make([]Document, 0, len(ps))
	for _, p := range ps {
		docs = append(docs, BuildDocument(p))
	}
	return c.IndexMany(ctx, docs)
}

// Index writes one document and commits.
func (c *Client) Index(ctx context.Context, doc Document) error {
	return c.IndexMany(ctx, []Document{doc})
}

// IndexMany writes documents and commits.
func (c *Client) IndexMany(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := c.post(ctx, c.base+"/update?commit=true&wt=json", docs); err != nil {
		return fmt.Errorf("solr index: %w", err)
	}
	return nil
}

// Clear deletes the documents of catalog, or every document when catalog
// is empty.
func (c *Client) Clear(ctx context.Context, catalog string) error {
	q := "*:*"
	if catalog != "" {
		q = FieldCatalog + ":" + quote(catalog)
	}
	body := map[string]any{"delete": map[string]string{"query": q}}
	if err := c.post(ctx, c.base+"/update?commit=true&wt=json", body); err != nil {
		return fmt.Errorf("solr clear: %w", err)
	}
	return nil
}

// Search runs req. A time facet over an open range is bound to the
// indexed date extremes first.
func (c *Client) Search(ctx context.Context, req *searchapi.Request) (*searchapi.Response, error) {
	if req.NeedsFacetBounds() {
		if err := c.bindFacetBounds(ctx, req); err != nil {
			return nil, err
		}
	}

	params, err := TranslateRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := c.query.Send(ctx, http.MethodPost, c.base+"/select",
		"application/x-www-form-urlencoded", []byte(params.Encode()))
	if err != nil {
		return nil, upstream(body, err)
	}
	return NormalizeResponse(body, req)
}

// bindFacetBounds reads the indexed date extremes for a time facet over
// an open or missing range.
func (c *Client) bindFacetBounds(ctx context.Context, req *searchapi.Request) error {
	q := "stats=true&stats.field=" + FieldDate + "&rows=0&q=*:*&wt=json"
	var resp struct {
		Stats struct {
			StatsFields map[string]*struct {
				Min string `json:"min"`
				Max string `json:"max"`
			} `json:"stats_fields"`
		} `json:"stats"`
	}
	body, err := c.query.Send(ctx, http.MethodPost, c.base+"/select", "application/x-www-form-urlencoded", []byte(q))
	if err != nil {
		return upstream(body, err)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return searchapi.Upstream(502, fmt.Errorf("malformed solr stats: %w", err))
	}
	st := resp.Stats.StatsFields[FieldDate]
	if st == nil || st.Min == "" || st.Max == "" {
		return searchapi.BadRequest("no dates indexed to bound the time facet")
	}
	return req.BindFacetBounds(st.Min, st.Max)
}

func (c *Client) post(ctx context.Context, url string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	body, err := c.index.Send(ctx, http.MethodPost, url, "application/json", payload)
	if err != nil {
		return upstream(body, err)
	}
	return nil
}

// upstream turns a failed call into a searchapi.Error, preferring the
// message Solr put in the body.
func upstream(body []byte, err error) error {
	var se *fetch.StatusError
	if !errors.As(err, &se) {
		return searchapi.Upstream(0, err)
	}
	var e struct {
		Error struct {
			Msg string `json:"msg"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Msg != "" {
		return searchapi.Upstream(se.Code, fmt.Errorf("solr: %s", e.Error.Msg))
	}
	return searchapi.Upstream(se.Code, err)
}
