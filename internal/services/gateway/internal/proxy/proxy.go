// Package proxy forwards API requests to the backing services by path prefix.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/decentrahub/hub/internal/pkg/httpx"
	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/decentrahub/hub/internal/pkg/serr"
)

var errUpstream = errors.New("upstream unavailable")

// Route sends every request whose path starts with Prefix to Target.
// The path is forwarded unchanged.
type Route struct {
	Name   string
	Prefix string
	Target *url.URL
}

type route struct {
	Route
	proxy *httputil.ReverseProxy
}

type Proxy struct {
	routes  []route
	metrics *metrics.Metrics
	client  *http.Client
}

// New builds a proxy over routes. The longest matching prefix wins.
func New(routes []Route, m *metrics.Metrics) (*Proxy, error) {
	p := &Proxy{metrics: m, client: &http.Client{Timeout: 2 * time.Second}}
	for _, rt := range routes {
		if rt.Target == nil || rt.Target.Scheme == "" || rt.Target.Host == "" {
			return nil, fmt.Errorf("route %s: invalid target %v", rt.Name, rt.Target)
		}
		if !strings.HasPrefix(rt.Prefix, "/") {
			return nil, fmt.Errorf("route %s: prefix must start with /", rt.Name)
		}
		p.routes = append(p.routes, route{Route: rt, proxy: p.reverseProxy(rt)})
	}

	sort.SliceStable(p.routes, func(i, j int) bool {
		return len(p.routes[i].Prefix) > len(p.routes[j].Prefix)
	})
	return p, nil
}

func (p *Proxy) reverseProxy(rt Route) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(rt.Target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			httpx.HandleErr(w, r, serr.NewServiceError(fmt.Errorf("%w: %s: %w", errUpstream, rt.Name, err),
				http.StatusBadGateway, "Upstream service unavailable.").With("upstream", rt.Name))
		},
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, rt := range p.routes {
		if strings.HasPrefix(r.URL.Path, rt.Prefix) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			rt.proxy.ServeHTTP(sw, r)
			p.observe(rt.Name, start, sw.status)
			return
		}
	}

	httpx.HandleErr(w, r, serr.NotFound(nil, "Route not found.").With("path", r.URL.Path))
}

func (p *Proxy) observe(name string, start time.Time, status int) {
	if p.metrics == nil {
		return
	}

	var err error
	if status >= http.StatusInternalServerError {
		err = fmt.Errorf("status %d", status)
	}
	p.metrics.ObserveUpstream(name, start, err)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// Ready checks /healthz on every distinct upstream and returns the first failure.
func (p *Proxy) Ready(ctx context.Context) error {
	seen := make(map[string]bool)
	for _, rt := range p.routes {
		target := rt.Target.String()
		if seen[target] {
			continue
		}
		seen[target] = true

		if err := p.checkHealth(ctx, rt.Route); err != nil {
			return err
		}
	}
	return nil
}

func (p *Proxy) checkHealth(ctx context.Context, rt Route) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rt.Target.JoinPath("/healthz").String(), nil)
	if err != nil {
		return fmt.Errorf("build %s health check: %w", rt.Name, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errUpstream, rt.Name, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", errUpstream, rt.Name, resp.StatusCode)
	}
	return nil
}
