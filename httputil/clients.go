package httputil

import (
	"net/http"
	"net/url"
	"time"
)

// UserAgent is sent by every outgoing request to listing backends and image hosts
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

type Clients struct {
	Scraping *http.Client // optionally proxied, for backends and image hosts
	API      *http.Client // direct, for journey planners
}

// NewClients builds the shared clients. An empty proxyURL means no proxy;
// an unparsable one is ignored.
func NewClients(proxyURL string) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &userAgentTransport{base: transport},
		},
		API: &http.Client{Timeout: 30 * time.Second},
	}
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(r)
}
