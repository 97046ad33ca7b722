package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/search/document"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
	"github.com/MrSnakeDoc/georegistry/internal/sources/fetch"
)

// Options configures a Client.
type Options struct {
	URL          string // e.g. http://localhost:9200
	Precision    string // geo_shape precision, DefaultPrecision when empty
	BulkSize     int
	QueryTimeout time.Duration
	IndexTimeout time.Duration
}

// Client talks to an Elasticsearch cluster. Each catalog has its own
// index named after its slug.
type Client struct {
	query     *fetch.Client
	index     *fetch.Client
	base      string
	precision string
	bulkSize  int
	log       logger.Logger

	mu      sync.Mutex
	created map[string]bool
}

// New creates a Client.
func New(opts Options, log logger.Logger) *Client {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 20 * time.Second
	}
	if opts.IndexTimeout <= 0 {
		opts.IndexTimeout = 30 * time.Second
	}
	if opts.Precision == "" {
		opts.Precision = DefaultPrecision
	}
	q := fetch.New(fetch.Options{Timeout: opts.QueryTimeout})
	return &Client{
		query:     q,
		index:     q.WithTimeout(opts.IndexTimeout),
		base:      strings.TrimRight(opts.URL, "/"),
		precision: opts.Precision,
		bulkSize:  opts.BulkSize,
		log:       log,
		created:   map[string]bool{},
	}
}

func (c *Client) Name() string { return "elasticsearch" }

// Ping checks the cluster answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.query.Send(ctx, http.MethodGet, c.base+"/", "", nil)
	return err
}

// EnsureCatalog creates the catalog index once per process.
func (c *Client) EnsureCatalog(ctx context.Context, catalog string) error {
	name := indexName(catalog)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.created[name] {
		return nil
	}
	if err := c.CreateIndex(ctx, name); err != nil {
		return err
	}
	c.created[name] = true
	return nil
}

// CreateIndex creates index with the layer mapping. An index that exists
// already is left as is.
func (c *Client) CreateIndex(ctx context.Context, index string) error {
	payload, err := json.Marshal(Mapping(c.precision))
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	body, err := c.index.Send(ctx, http.MethodPut, c.base+"/"+url.PathEscape(index), "application/json", payload)
	if err != nil {
		if ignorable(err, http.StatusBadRequest, http.StatusNotFound) {
			c.log.Debug("elasticsearch index kept", logger.String("index", index))
			return nil
		}
		return fmt.Errorf("create index %s: %w", index, upstream(body, err))
	}
	c.log.Info("elasticsearch index created",
		logger.String("index", index),
		logger.String("precision", c.precision))
	return nil
}

// IndexLayer writes one prepared layer into its catalog index.
func (c *Client) IndexLayer(ctx context.Context, p *document.Prepared) error {
	return c.Index(ctx, indexName(p.Service.Catalog), BuildDocument(p))
}

// IndexLayers writes prepared layers through the bulk API. A failed chunk
// does not stop the next one; the layers that were not stored come back
// in a *document.PartialError.
func (c *Client) IndexLayers(ctx context.Context, ps []*document.Prepared) error {
	failed := &document.PartialError{Total: len(ps)}
	buf := NewBulkBuffer(c.bulkSize)
	flush := func() {
		envs := buf.Take()
		err := c.Bulk(ctx, envs)
		if err == nil {
			return
		}
		if pe, ok := document.AsPartial(err); ok {
			for id, e := range pe.Failed {
				failed.Fail(id, e)
			}
			return
		}
		for _, e := range envs {
			failed.Fail(e.Source.ID, err)
		}
	}
	for _, p := range ps {
		if buf.Add(NewEnvelope(indexName(p.Service.Catalog), BuildDocument(p))) {
			flush()
		}
	}
	if buf.Len() > 0 {
		flush()
	}
	return failed.OrNil()
}

// Index writes one document.
func (c *Client) Index(ctx context.Context, index string, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %d: %w", doc.ID, err)
	}
	u := fmt.Sprintf("%s/%s/%s/%d", c.base, url.PathEscape(index), DocType, doc.ID)
	if body, err := c.index.Send(ctx, http.MethodPut, u, "application/json", payload); err != nil {
		return fmt.Errorf("elasticsearch index: %w", upstream(body, err))
	}
	return nil
}

// Bulk sends envelopes in one _bulk request. Rejected items are reported
// by layer id in a *document.PartialError; the others were stored.
func (c *Client) Bulk(ctx context.Context, envs []Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	payload, err := EncodeBulk(envs)
	if err != nil {
		return err
	}
	body, err := c.index.Send(ctx, http.MethodPost, c.base+"/_bulk", "application/x-ndjson", payload)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", upstream(body, err))
	}

	var resp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string          `json:"_id"`
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("malformed bulk response: %w", err)
	}
	if !resp.Errors {
		return nil
	}
	// Items come back in request order; the position covers an _id
	// that does not parse.
	failed := &document.PartialError{Total: len(envs)}
	for i, item := range resp.Items {
		for _, r := range item {
			if r.Status < 300 {
				continue
			}
			id, perr := strconv.ParseInt(r.ID, 10, 64)
			if perr != nil && i < len(envs) {
				id = envs[i].Source.ID
			}
			failed.Fail(id, fmt.Errorf("status %d: %s", r.Status, errorReason(r.Error)))
		}
	}
	if err := failed.OrNil(); err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", err)
	}
	return nil
}

// Clear drops the catalog index. The next EnsureCatalog recreates it.
func (c *Client) Clear(ctx context.Context, catalog string) error {
	name := indexName(catalog)
	body, err := c.index.Send(ctx, http.MethodDelete, c.base+"/"+url.PathEscape(name), "", nil)
	if err != nil && !ignorable(err, http.StatusNotFound) {
		return fmt.Errorf("elasticsearch clear %s: %w", name, upstream(body, err))
	}
	c.mu.Lock()
	delete(c.created, name)
	c.mu.Unlock()
	return nil
}

// Search runs req against the catalog index. A time facet over an open
// range is bound to the indexed date extremes first.
func (c *Client) Search(ctx context.Context, req *searchapi.Request) (*searchapi.Response, error) {
	index := indexName(req.Catalog)
	if req.NeedsFacetBounds() {
		if err := c.bindFacetBounds(ctx, index, req); err != nil {
			return nil, err
		}
	}

	query, err := TranslateRequest(req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	body, err := c.query.Send(ctx, http.MethodPost, c.base+"/"+url.PathEscape(index)+"/_search", "application/json", payload)
	if err != nil {
		return nil, upstream(body, err)
	}
	return NormalizeResponse(body, req)
}

// bindFacetBounds reads the indexed date extremes with min and max
// aggregations.
func (c *Client) bindFacetBounds(ctx context.Context, index string, req *searchapi.Request) error {
	query := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"min_date": map[string]any{"min": map[string]any{"field": FieldDate}},
			"max_date": map[string]any{"max": map[string]any{"field": FieldDate}},
		},
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("encode stats query: %w", err)
	}
	body, err := c.query.Send(ctx, http.MethodPost, c.base+"/"+url.PathEscape(index)+"/_search", "application/json", payload)
	if err != nil {
		return upstream(body, err)
	}

	type stat struct {
		Value *float64 `json:"value"`
	}
	var resp struct {
		Aggregations struct {
			Min stat `json:"min_date"`
			Max stat `json:"max_date"`
		} `json:"aggregations"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return searchapi.Upstream(502, fmt.Errorf("malformed elasticsearch stats: %w", err))
	}
	lo, hi := resp.Aggregations.Min.Value, resp.Aggregations.Max.Value
	if lo == nil || hi == nil {
		return searchapi.BadRequest("no dates indexed to bound the time facet")
	}
	return req.BindFacetBounds(epochDate(*lo), epochDate(*hi))
}

// epochDate renders epoch milliseconds in the signed form the documents
// were indexed with.
func epochDate(ms float64) string {
	t := time.UnixMilli(int64(ms)).UTC()
	if t.Year() <= 0 {
		return fmt.Sprintf("-%04d-01-01T00:00:00Z", -t.Year())
	}
	return t.Format(searchapi.SolrTimeLayout)
}

// indexName is the index of catalog.
func indexName(catalog string) string {
	if catalog == "" {
		return domain.DefaultCatalogSlug
	}
	return strings.ToLower(catalog)
}

func ignorable(err error, codes ...int) bool {
	var se *fetch.StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range codes {
		if se.Code == code {
			return true
		}
	}
	return false
}

// upstream turns a failed call into a searchapi.Error, preferring the
// reason Elasticsearch put in the body.
func upstream(body []byte, err error) error {
	var se *fetch.StatusError
	if !errors.As(err, &se) {
		return searchapi.Upstream(0, err)
	}
	var e struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && len(e.Error) > 0 {
		return searchapi.Upstream(se.Code, fmt.Errorf("elasticsearch: %s", errorReason(e.Error)))
	}
	return searchapi.Upstream(se.Code, err)
}
