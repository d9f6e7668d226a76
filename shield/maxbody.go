package shield

import (
	"net/http"
	"strings"
)

// MaxBody caps request bodies at maxBytes. Paths starting with a key of
// overrides get that limit instead; the longest matching prefix wins.
func MaxBody(maxBytes int64, overrides map[string]int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				limit, best := maxBytes, -1
				for prefix, n := range overrides {
					if strings.HasPrefix(r.URL.Path, prefix) && len(prefix) > best {
						limit, best = n, len(prefix)
					}
				}
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
