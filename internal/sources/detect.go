package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
)

// DefaultDetectTimeout bounds the capabilities request used when the URL
// alone does not reveal the service type.
const DefaultDetectTimeout = 10 * time.Second

// ErrUndetectable is returned when neither the URL nor a WMS GetCapabilities
// identify the endpoint.
var ErrUndetectable = errors.New("cannot detect service type")

// Detect guesses the service type of an endpoint. URL patterns are tried
// first; otherwise the endpoint is queried as a WMS.
func (h *Harvester) Detect(ctx context.Context, endpoint string) (domain.ServiceType, error) {
	if t, ok := DetectFromURL(endpoint); ok {
		return t, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.detectTimeout)
	defer cancel()
	if _, err := h.reader.WMS(ctx, endpoint); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUndetectable, endpoint, err)
	}
	return domain.ServiceWMS, nil
}

// DetectFromURL applies the URL heuristics only.
func DetectFromURL(endpoint string) (domain.ServiceType, bool) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Host)
	path := strings.ToLower(u.Path)
	service := strings.ToLower(queryValue(u.Query(), "service"))

	switch {
	case strings.Contains(path, "/rest/services/") && strings.Contains(path, "/mapserver"):
		return domain.ServiceArcGISMapServer, true
	case strings.Contains(path, "/rest/services/") && strings.Contains(path, "/imageserver"):
		return domain.ServiceArcGISImageServer, true
	case strings.Contains(path, "/wmsserver"):
		return domain.ServiceWMS, true
	case strings.Contains(path, "/data/search/api"):
		return domain.ServiceWorldMap, true
	case strings.Contains(host, "warp") && strings.HasSuffix(strings.TrimRight(path, "/"), "/maps"):
		return domain.ServiceWarper, true
	case service == "wmts" || strings.Contains(path, "wmtscapabilities"):
		return domain.ServiceWMTS, true
	case service == "csw" || strings.HasSuffix(strings.TrimRight(path, "/"), "/csw"):
		return domain.ServiceCSW, true
	case service == "wms":
		return domain.ServiceWMS, true
	case strings.Contains(path, "/tms/") || strings.HasSuffix(path, "/tms") || strings.Contains(path, "tilemapservice"):
		return domain.ServiceTMS, true
	}
	return "", false
}

// queryValue looks a parameter up case-insensitively; OGC keys are not
// case sensitive.
func queryValue(q url.Values, key string) string {
	for k, v := range q {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
