package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOutboundHeaders(t *testing.T) {
	in := http.Header{}
	in.Set("Host", "gateway.local")
	in.Set("Content-Length", "42")
	in.Set("Authorization", "Bearer caller-token")
	in.Set("Accept", "application/json")
	in.Add("X-Custom", "a")
	in.Add("X-Custom", "b")

	out := OutboundHeaders(in, "upstream-key", true)
	if got := out.Get("Host"); got != "" {
		t.Fatalf("Host must be dropped, got %q", got)
	}
	if got := out.Get("Content-Length"); got != "" {
		t.Fatalf("Content-Length must be dropped, got %q", got)
	}
	if got := out.Get("Authorization"); got != "Bearer upstream-key" {
		t.Fatalf("unexpected authorization: %q", got)
	}
	if got := out.Get("Accept"); got != "application/json" {
		t.Fatalf("unexpected accept: %q", got)
	}
	if got := out.Values("X-Custom"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("multi-value header lost: %v", got)
	}
}

func TestOutboundHeadersPassThroughWithoutCredential(t *testing.T) {
	in := http.Header{}
	in.Set("Authorization", "Bearer caller-token")
	out := OutboundHeaders(in, "", false)
	if got := out.Get("Authorization"); got != "Bearer caller-token" {
		t.Fatalf("caller auth must pass through, got %q", got)
	}
}

func TestForwarderRejectsUnsupportedMethod(t *testing.T) {
	f, err := NewForwarder("", "")
	if err != nil {
		t.Fatalf("new forwarder: %v", err)
	}
	_, err = f.Do(context.Background(), "BREW", "http://example.invalid", nil, http.Header{})
	var unsupported *ErrUnsupportedMethod
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
	if unsupported.Method != "BREW" {
		t.Fatalf("unexpected method in error: %q", unsupported.Method)
	}
}

func TestForwarderDispatchesWithHeadersAndBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Fatalf("unexpected authorization: %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	f, err := NewForwarder("", "")
	if err != nil {
		t.Fatalf("new forwarder: %v", err)
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer k")
	resp, err := f.Do(context.Background(), http.MethodPut, upstream.URL, []byte("{}"), h)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestNewForwarderRejectsBadProxyURL(t *testing.T) {
	if _, err := NewForwarder("://bad", ""); err == nil {
		t.Fatal("expected proxy url error")
	}
}
