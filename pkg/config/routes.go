package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Wildcard is the fallback key for both tenants and models.
const Wildcard = "*"

// RouteConfig is one (tenant, model) routing entry. Empty fields mean
// "not configured at this layer"; Resolve fills them from fallback layers.
type RouteConfig struct {
	URL      string            `json:"url,omitempty"`
	ChatURL  string            `json:"chat-url,omitempty"`
	Domain   string            `json:"domain,omitempty"`
	Key      string            `json:"key,omitempty"`
	Redirect map[string]string `json:"redirect,omitempty"`
}

// RouteTable maps tenant token -> model identifier -> RouteConfig.
// It is immutable after load and safe for unbounded concurrent reads.
type RouteTable struct {
	tenants map[string]map[string]RouteConfig
}

func NewRouteTable(tenants map[string]map[string]RouteConfig) *RouteTable {
	if tenants == nil {
		tenants = map[string]map[string]RouteConfig{}
	}
	return &RouteTable{tenants: tenants}
}

func ParseRouteTable(b []byte) (*RouteTable, error) {
	var tenants map[string]map[string]RouteConfig
	if err := json.Unmarshal(b, &tenants); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	return NewRouteTable(tenants), nil
}

func LoadRouteTable(path string) (*RouteTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	return ParseRouteTable(b)
}

// Resolve merges the four fallback layers for (token, model). Each field is
// resolved independently: (token, model) wins, then (token, *), then
// (*, model), then (*, *). Fields absent at every layer stay empty.
func (t *RouteTable) Resolve(token, model string) RouteConfig {
	if token == "" {
		token = Wildcard
	}
	if model == "" {
		model = Wildcard
	}
	var out RouteConfig
	for _, layer := range []struct{ token, model string }{
		{token, model},
		{token, Wildcard},
		{Wildcard, model},
		{Wildcard, Wildcard},
	} {
		models, ok := t.tenants[layer.token]
		if !ok {
			continue
		}
		rc, ok := models[layer.model]
		if !ok {
			continue
		}
		if out.URL == "" {
			out.URL = strings.TrimSpace(rc.URL)
		}
		if out.ChatURL == "" {
			out.ChatURL = strings.TrimSpace(rc.ChatURL)
		}
		if out.Domain == "" {
			out.Domain = strings.TrimSpace(rc.Domain)
		}
		if out.Key == "" {
			out.Key = strings.TrimSpace(rc.Key)
		}
		if out.Redirect == nil && len(rc.Redirect) > 0 {
			out.Redirect = rc.Redirect
		}
	}
	return out
}

// Tenants reports how many tenant entries are loaded. Used for startup logs.
func (t *RouteTable) Tenants() int {
	return len(t.tenants)
}
