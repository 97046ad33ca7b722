package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/cespare/xxhash/v2"
)

const (
	// KeyPrefix namespaces every key written by the store
	KeyPrefix = "georegistry:"
	// KeyPrefixService is the prefix for service keys
	KeyPrefixService = KeyPrefix + "service:"
	// KeyPrefixLayer is the prefix for layer keys
	KeyPrefixLayer = KeyPrefix + "layer:"
	// KeyPrefixCache is the prefix for cache keys
	KeyPrefixCache = KeyPrefix + "cache:"

	keyAllCatalogs = KeyPrefix + "catalogs:all"
	keyAllServices = KeyPrefix + "services:all"
	keyAllLayers   = KeyPrefix + "layers:all"
	keySRS         = KeyPrefix + "srs"
	keyServiceSeq  = KeyPrefix + "seq:service"
	keyLayerSeq    = KeyPrefix + "seq:layer"
)

// CatalogKey returns the Redis key for a catalog
func CatalogKey(slug string) string { return KeyPrefix + "catalog:" + slug }

// ServiceKey returns the Redis key for a service by ID
func ServiceKey(id int64) string { return KeyPrefixService + strconv.FormatInt(id, 10) }

// ServiceURLKey returns the key enforcing (catalog, url) uniqueness
func ServiceURLKey(catalog, url string) string {
	return KeyPrefix + "service-url:" + catalog + "|" + strings.TrimSpace(url)
}

// ServiceLayersKey returns the hash mapping layer names to IDs for a service
func ServiceLayersKey(serviceID int64) string { return ServiceKey(serviceID) + ":layers" }

// LayerKey returns the Redis key for a layer by ID
func LayerKey(id int64) string { return KeyPrefixLayer + strconv.FormatInt(id, 10) }

// ChecksKey returns the list holding the check history of a resource
func ChecksKey(k domain.ResourceKey) string {
	return fmt.Sprintf("%schecks:%s:%d", KeyPrefix, k.Kind, k.ID)
}

// CacheKey returns the Redis key for a cached lookup
func CacheKey(namespace, input string) string {
	return fmt.Sprintf("%s%s:%016x", KeyPrefixCache, namespace, xxhash.Sum64String(input))
}

// ExtractID extracts the numeric ID from a service or layer key
func ExtractID(key string) (int64, error) {
	for _, prefix := range []string{KeyPrefixService, KeyPrefixLayer} {
		if rest, ok := strings.CutPrefix(key, prefix); ok && rest != "" {
			return strconv.ParseInt(rest, 10, 64)
		}
	}
	return 0, fmt.Errorf("invalid key: %s", key)
}
