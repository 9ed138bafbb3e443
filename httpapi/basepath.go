package httpapi

import (
	"net/http"
	"net/url"
	"strings"
)

func normalizeBasePath(value string) string {
	path := strings.TrimSpace(value)
	if path == "" || path == "/" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if path == "/" {
		return ""
	}
	return path
}

// mountBasePath serves handler below prefix and redirects the bare prefix.
func mountBasePath(prefix string, handler http.Handler) http.Handler {
	if prefix == "" {
		return handler
	}
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

// originAllowed reports whether a websocket Origin matches the configured
// public base URL. An empty base URL or a missing Origin is accepted.
func originAllowed(baseURL, origin string) bool {
	base := strings.TrimSpace(baseURL)
	origin = strings.TrimSpace(origin)
	if base == "" || origin == "" {
		return true
	}
	want, err := url.Parse(base)
	if err != nil || want.Host == "" {
		return true
	}
	got, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(got.Scheme, want.Scheme) && strings.EqualFold(got.Host, want.Host)
}
