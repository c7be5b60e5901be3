package shield

import "net/http"

// HeadToGet rewrites HEAD to GET so the page and /health, which are only
// registered for GET, answer HEAD probes. net/http drops the body itself.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
