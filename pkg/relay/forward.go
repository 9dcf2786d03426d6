package relay

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnsupportedMethod reports an inbound HTTP method outside the explicit
// dispatch set. It is a hard error, never silently downgraded to GET/POST.
type ErrUnsupportedMethod struct {
	Method string
}

func (e *ErrUnsupportedMethod) Error() string {
	return fmt.Sprintf("unsupported method %q", e.Method)
}

var supportedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
	http.MethodHead:   {},
}

// Forwarder issues the outbound request, optionally through a configured
// proxy. It imposes no timeout of its own: the caller's context is the
// effective bound, so a client disconnect cancels the upstream call.
type Forwarder struct {
	client *http.Client
}

func NewForwarder(httpProxy, httpsProxy string) (*Forwarder, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	proxyFn, err := proxyFunc(httpProxy, httpsProxy)
	if err != nil {
		return nil, err
	}
	transport.Proxy = proxyFn
	return &Forwarder{client: &http.Client{Transport: transport}}, nil
}

func proxyFunc(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	httpProxy = strings.TrimSpace(httpProxy)
	httpsProxy = strings.TrimSpace(httpsProxy)
	if httpProxy == "" && httpsProxy == "" {
		return nil, nil
	}
	parse := func(raw string) (*url.URL, error) {
		if raw == "" {
			return nil, nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
		}
		return u, nil
	}
	httpURL, err := parse(httpProxy)
	if err != nil {
		return nil, err
	}
	httpsURL, err := parse(httpsProxy)
	if err != nil {
		return nil, err
	}
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" {
			if httpsURL != nil {
				return httpsURL, nil
			}
			return httpURL, nil
		}
		if httpURL != nil {
			return httpURL, nil
		}
		return httpsURL, nil
	}, nil
}

// Do dispatches method+target with the prepared body and headers and returns
// the upstream response unread. The caller owns resp.Body.
func (f *Forwarder) Do(ctx context.Context, method, target string, body []byte, header http.Header) (*http.Response, error) {
	if _, ok := supportedMethods[method]; !ok {
		return nil, &ErrUnsupportedMethod{Method: method}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header
	return f.client.Do(req)
}

// OutboundHeaders rebuilds the upstream header set from the inbound request.
// Host and Content-Length are dropped so the transport regenerates them;
// Authorization is overwritten when a credential was selected.
func OutboundHeaders(in http.Header, credential string, haveCredential bool) http.Header {
	out := make(http.Header, len(in))
	for k, vals := range in {
		if strings.EqualFold(k, "Host") || strings.EqualFold(k, "Content-Length") {
			continue
		}
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	if haveCredential {
		out.Set("Authorization", "Bearer "+credential)
	}
	return out
}
