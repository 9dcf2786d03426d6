package config

import (
	"testing"
)

func testTable(t *testing.T) *RouteTable {
	t.Helper()
	tbl, err := ParseRouteTable([]byte(`{
		"tok1": {
			"gpt-4": {"chat-url": "https://up/v1/chat", "key": "k1,k2"},
			"*": {"domain": "https://tenant-default"}
		},
		"*": {
			"gpt-4": {"key": "wild-model-key", "domain": "https://wild-model"},
			"*": {"domain": "https://wild", "key": "wild-key", "redirect": {"/old": "/new"}}
		}
	}`))
	if err != nil {
		t.Fatalf("parse routes: %v", err)
	}
	return tbl
}

func TestResolveFallbackOrder(t *testing.T) {
	tbl := testTable(t)

	// Exact (token, model) wins for the fields it defines.
	rc := tbl.Resolve("tok1", "gpt-4")
	if rc.ChatURL != "https://up/v1/chat" {
		t.Fatalf("unexpected chat-url: %q", rc.ChatURL)
	}
	if rc.Key != "k1,k2" {
		t.Fatalf("unexpected key: %q", rc.Key)
	}
	// Fields the exact entry lacks inherit from the tenant wildcard first.
	if rc.Domain != "https://tenant-default" {
		t.Fatalf("unexpected domain: %q", rc.Domain)
	}

	// Unknown model for a known tenant: tenant wildcard, then global layers.
	rc = tbl.Resolve("tok1", "other-model")
	if rc.Domain != "https://tenant-default" {
		t.Fatalf("unexpected domain: %q", rc.Domain)
	}
	if rc.Key != "wild-key" {
		t.Fatalf("unexpected key: %q", rc.Key)
	}

	// Unknown tenant: wildcard-tenant model entry beats the global wildcard.
	rc = tbl.Resolve("nobody", "gpt-4")
	if rc.Key != "wild-model-key" {
		t.Fatalf("unexpected key: %q", rc.Key)
	}
	if rc.Domain != "https://wild-model" {
		t.Fatalf("unexpected domain: %q", rc.Domain)
	}

	// Nothing matches: global wildcard only.
	rc = tbl.Resolve("nobody", "nothing")
	if rc.Domain != "https://wild" || rc.Key != "wild-key" {
		t.Fatalf("unexpected wildcard fallback: %+v", rc)
	}
	if rc.Redirect["/old"] != "/new" {
		t.Fatalf("unexpected redirect: %+v", rc.Redirect)
	}
}

func TestResolveEmptyTokenAndModelMeanWildcard(t *testing.T) {
	tbl := testTable(t)
	rc := tbl.Resolve("", "")
	if rc.Domain != "https://wild" {
		t.Fatalf("unexpected domain: %q", rc.Domain)
	}
}

func TestResolveAbsentFieldsStayEmpty(t *testing.T) {
	tbl, err := ParseRouteTable([]byte(`{"tok": {"m": {"domain": "https://d"}}}`))
	if err != nil {
		t.Fatalf("parse routes: %v", err)
	}
	rc := tbl.Resolve("tok", "m")
	if rc.Key != "" || rc.ChatURL != "" || rc.URL != "" || rc.Redirect != nil {
		t.Fatalf("expected absent fields to stay empty: %+v", rc)
	}
}

func TestResolveEmptyTable(t *testing.T) {
	tbl, err := ParseRouteTable([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse routes: %v", err)
	}
	rc := tbl.Resolve("tok", "m")
	if rc.Domain != "" || rc.Key != "" {
		t.Fatalf("expected empty RouteConfig, got %+v", rc)
	}
}

func TestParseRouteTableRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseRouteTable([]byte(`{"tok": [1,2]}`)); err == nil {
		t.Fatal("expected parse error")
	}
}
