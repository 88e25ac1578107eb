package offline

import (
	"errors"
	"io"
	"net/http"
	"net/url"
)

// hopHeaders не передаются через прокси
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ServeHTTP exposes the worker as a forward proxy. Absolute-form requests are
// forwarded to their own host; origin-form requests are resolved against the
// configured origin.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		http.Error(rw, "CONNECT tunnels are not supported", http.StatusMethodNotAllowed)
		return
	}

	out, err := w.outgoingRequest(r)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := w.RoundTrip(out)
	if err != nil {
		w.logger.Warn("upstream request failed", "url", out.URL.String(), "error", err)
		http.Error(rw, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	removeHopHeaders(resp.Header)
	for k, values := range resp.Header {
		for _, v := range values {
			rw.Header().Add(k, v)
		}
	}
	rw.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(rw, resp.Body); err != nil {
		w.logger.Debug("failed to copy response body", "url", out.URL.String(), "error", err)
	}
}

func (w *Worker) outgoingRequest(r *http.Request) (*http.Request, error) {
	out := r.Clone(r.Context())
	out.RequestURI = ""

	if !out.URL.IsAbs() {
		origin, err := url.Parse(w.cfg.Origin)
		if err != nil || !origin.IsAbs() {
			return nil, errors.New("relative request without a configured origin")
		}
		out.URL.Scheme = origin.Scheme
		out.URL.Host = origin.Host
	}
	out.Host = out.URL.Host

	removeHopHeaders(out.Header)
	// Сжатие согласует транспорт, как при установке: иначе Vary: Accept-Encoding
	// не совпадет с копией из манифеста
	out.Header.Del("Accept-Encoding")
	return out, nil
}

func removeHopHeaders(h http.Header) {
	for _, name := range hopHeaders {
		h.Del(name)
	}
}
