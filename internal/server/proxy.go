package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Response headers that stop the preview from rendering inside the
// frontend's iframe.
var strippedHeaders = []string{
	"X-Frame-Options",
	"Content-Security-Policy",
	"X-Content-Type-Options",
}

// handleProxy forwards the request to the run's local port with the same
// path and query, relaying the response verbatim minus the frame-blocking
// headers. Only meaningful while the run is RUNNING; a dead or not-yet
// listening child yields a 502.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	rn, ok := s.sup.Registry().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	target := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("127.0.0.1:%d", rn.Port),
	}
	prefix := "/api/proxy/" + id

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			path := strings.TrimPrefix(r.URL.Path, prefix)
			if path == "" {
				path = "/"
			}
			pr.Out.URL.Path = path
			pr.Out.URL.RawQuery = r.URL.RawQuery
			pr.Out.Host = target.Host
		},
		ModifyResponse: stripFrameHeaders,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, http.StatusBadGateway, "proxy error: "+err.Error())
		},
	}

	proxy.ServeHTTP(w, r)
}

// stripFrameHeaders removes the embedding blockers from a downstream
// response.
func stripFrameHeaders(resp *http.Response) error {
	for _, h := range strippedHeaders {
		resp.Header.Del(h)
	}
	return nil
}
