package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/utils"
)

// AllowOnlyCIDRS restricts the admin surface (harvest trigger, readiness,
// infra, metrics) to the configured networks. An empty list lets every
// client through, which suits a registry bound to a private interface.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Warn("admin endpoints are not restricted, set GEOREG_ALLOWED_CIDRS to limit them")
		return func(next http.Handler) http.Handler { return next }
	}
	log.Info("admin endpoints restricted",
		logger.Int("rules", m.Len()),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if m.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			log.Warn("admin request rejected",
				logger.String("ip", ip),
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path))
			reject(w, http.StatusForbidden, "forbidden")
		})
	}
}
