package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/utils"
)

// Thumbnail size requested from map services.
const (
	ThumbnailWidth  = 200
	ThumbnailHeight = 150
)

// CheckRequest is the request that checks a layer. Image requests must
// answer with an image; their URL becomes the layer thumbnail.
type CheckRequest struct {
	URL   string
	Image bool
}

// LayerCheckRequest builds the check request of l for the type of svc.
func LayerCheckRequest(svc *domain.Service, l *domain.Layer) CheckRequest {
	box := geo.Global
	if l.BBox != nil {
		box = *l.BBox
	}
	bbox := strings.Join(box.Strings(), ",")
	size := [2]string{strconv.Itoa(ThumbnailWidth), strconv.Itoa(ThumbnailHeight)}

	switch svc.Type {
	case domain.ServiceWMS, domain.ServiceWorldMap, domain.ServiceWarper:
		q := url.Values{}
		q.Set("SERVICE", "WMS")
		q.Set("VERSION", "1.1.1")
		q.Set("REQUEST", "GetMap")
		q.Set("LAYERS", l.Name)
		q.Set("STYLES", "")
		q.Set("SRS", "EPSG:4326")
		q.Set("BBOX", bbox)
		q.Set("WIDTH", size[0])
		q.Set("HEIGHT", size[1])
		q.Set("FORMAT", "image/png")
		return CheckRequest{URL: stripQuery(firstNonEmpty(l.URL, svc.URL)) + "?" + q.Encode(), Image: true}
	case domain.ServiceArcGISMapServer:
		q := url.Values{}
		q.Set("bbox", bbox)
		q.Set("bboxSR", "4326")
		q.Set("size", size[0]+","+size[1])
		q.Set("layers", "show:"+l.Name)
		q.Set("format", "png")
		q.Set("f", "image")
		return CheckRequest{URL: strings.TrimRight(stripQuery(svc.URL), "/") + "/export?" + q.Encode(), Image: true}
	case domain.ServiceArcGISImageServer:
		q := url.Values{}
		q.Set("bbox", bbox)
		q.Set("bboxSR", "4326")
		q.Set("size", size[0]+","+size[1])
		q.Set("format", "png")
		q.Set("f", "image")
		return CheckRequest{URL: strings.TrimRight(stripQuery(svc.URL), "/") + "/exportImage?" + q.Encode(), Image: true}
	default:
		return CheckRequest{URL: firstNonEmpty(l.URL, svc.URL)}
	}
}

// CheckLayer requests one layer and records a check. A successful image
// request is kept as the layer thumbnail.
func (r *Runner) CheckLayer(ctx context.Context, id int64) Outcome {
	key := domain.ResourceKey{Kind: domain.KindLayer, ID: id}
	start := time.Now()

	l, err := r.repo.GetLayer(ctx, id)
	if err != nil {
		return failure(key, start, err)
	}
	if !l.Active {
		return Outcome{Resource: key, Skipped: true, Message: "inactive"}
	}
	svc, err := r.repo.GetService(ctx, l.ServiceID)
	if err != nil {
		return failure(key, start, err)
	}

	creq := LayerCheckRequest(svc, l)
	perr := r.fetchCheck(ctx, creq)
	elapsed := time.Since(start)
	msg := ""
	if perr != nil {
		msg = perr.Error()
	}
	out := Outcome{Resource: key, OK: perr == nil, Message: msg, Elapsed: elapsed}

	if err := r.repo.AppendCheck(ctx, domain.NewCheck(key, perr == nil, elapsed, msg, r.now())); err != nil {
		r.log.Error("record check failed", logger.String("resource", key.String()), logger.Error(err))
		out.OK, out.Message = false, err.Error()
	}
	if perr == nil && creq.Image && l.Thumbnail != creq.URL {
		l.Thumbnail = creq.URL
		if err := r.repo.SaveLayer(ctx, l); err != nil {
			r.log.Warn("save thumbnail failed", logger.Int64("layer_id", id), logger.Error(err))
		}
	}
	r.metrics.ObserveCheck(domain.KindLayer, out.OK, elapsed)
	return out
}

func (r *Runner) fetchCheck(ctx context.Context, p CheckRequest) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer utils.Close(resp.Body)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: status %d", p.URL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); p.Image && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%s: expected an image, got %q", p.URL, ct)
	}
	return nil
}

func stripQuery(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
