package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy describes which browser origins may call the booking API.
// Origins accept exact matches, "*", and single-label wildcards such as
// "https://*.clinic.example".
type CORSPolicy struct {
	Origins []string
	Headers []string
	Methods []string
	Expose  []string
	MaxAge  time.Duration
}

// DefaultCORSPolicy allows the clinic front desk and admin headers on the
// methods the API serves.
func DefaultCORSPolicy(origins []string) CORSPolicy {
	return CORSPolicy{
		Origins: origins,
		Headers: []string{"Content-Type", "X-Clinic-Id", "X-Request-ID", "X-Admin-Token"},
		Methods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		Expose:  []string{"X-Request-ID"},
		MaxAge:  10 * time.Minute,
	}
}

// CORS applies DefaultCORSPolicy for allowedOrigins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return CORSWithPolicy(DefaultCORSPolicy(allowedOrigins))
}

// CORSWithPolicy returns middleware enforcing p. Preflights from origins
// outside the policy are answered with 403 and never reach the handler.
func CORSWithPolicy(p CORSPolicy) func(http.Handler) http.Handler {
	match := newOriginMatcher(p.Origins)
	headers := strings.Join(p.Headers, ", ")
	methods := strings.Join(p.Methods, ", ")
	expose := strings.Join(p.Expose, ", ")
	maxAge := strconv.Itoa(int(p.MaxAge / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			preflight := r.Method == http.MethodOptions && origin != "" &&
				r.Header.Get("Access-Control-Request-Method") != ""

			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			if !match(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if expose != "" {
				w.Header().Set("Access-Control-Expose-Headers", expose)
			}
			if preflight {
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newOriginMatcher(origins []string) func(string) bool {
	exact := map[string]struct{}{}
	var suffixes []string
	allowAny := false
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case origin == "*":
			allowAny = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*")
			suffixes = append(suffixes, scheme+"://|"+host)
		default:
			exact[origin] = struct{}{}
		}
	}
	return func(origin string) bool {
		if allowAny {
			return true
		}
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, s := range suffixes {
			scheme, host, _ := strings.Cut(s, "|")
			rest, ok := strings.CutPrefix(origin, scheme)
			if !ok || !strings.HasSuffix(rest, host) {
				continue
			}
			label := strings.TrimSuffix(rest, host)
			if label != "" && !strings.ContainsAny(label, "./:") {
				return true
			}
		}
		return false
	}
}
