package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultConfigFileName = "llmrelay.toml"
	defaultRoutesFileName = "routes.json"

	// DefaultPort is used when neither config nor SERVER_PORT specify one.
	DefaultPort = "3030"
)

type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	Domain   string `toml:"domain"`
	Email    string `toml:"email"`
	CacheDir string `toml:"cache_dir"`
}

// ServerConfig is the process-level configuration. Routing itself lives in
// the routes file (see RouteTable); this covers listeners, proxies and logs.
type ServerConfig struct {
	ListenAddr string    `toml:"listen_addr"`
	RoutesPath string    `toml:"routes_path"`
	LogLevel   string    `toml:"log_level"`
	HTTPProxy  string    `toml:"http_proxy,omitempty"`
	HTTPSProxy string    `toml:"https_proxy,omitempty"`
	TLS        TLSConfig `toml:"tls"`
}

func DefaultServerConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigFileName
	}
	return filepath.Join(home, ".config", "llmrelay", defaultConfigFileName)
}

func DefaultRoutesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultRoutesFileName
	}
	return filepath.Join(home, ".config", "llmrelay", defaultRoutesFileName)
}

func DefaultTLSCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tls-autocert"
	}
	return filepath.Join(home, ".cache", "llmrelay", "tls-autocert")
}

func NewDefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr: "",
		RoutesPath: DefaultRoutesPath(),
		LogLevel:   "info",
		TLS: TLSConfig{
			Enabled:  false,
			Domain:   "",
			Email:    "",
			CacheDir: DefaultTLSCacheDir(),
		},
	}
}

func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := NewDefaultServerConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadOrCreateServerConfig(path string) (*ServerConfig, error) {
	cfg := NewDefaultServerConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadOrCreate(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := writeAtomic(path, v); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse toml: %w", err)
	}
	return nil
}

func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return writeAtomic(path, v)
}

func writeAtomic(path string, v any) error {
	b, err := marshalTOML(v)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func marshalTOML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentSymbol("  ")
	enc.SetIndentTables(true)
	enc.SetTablesInline(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, nil
}

// ApplyEnv fills fields left empty by the config file from the environment.
// SERVER_PORT, HTTP_PROXY and HTTPS_PROXY are looked up case-insensitively;
// when nothing resolves a port, DefaultPort applies.
func (c *ServerConfig) ApplyEnv() {
	if strings.TrimSpace(c.ListenAddr) == "" {
		port := EnvValue("SERVER_PORT")
		if port == "" {
			port = DefaultPort
		}
		c.ListenAddr = ":" + strings.TrimPrefix(port, ":")
	}
	if strings.TrimSpace(c.HTTPProxy) == "" {
		c.HTTPProxy = EnvValue("HTTP_PROXY")
	}
	if strings.TrimSpace(c.HTTPSProxy) == "" {
		c.HTTPSProxy = EnvValue("HTTPS_PROXY")
	}
}

func (c *ServerConfig) Normalize() {
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	c.RoutesPath = strings.TrimSpace(c.RoutesPath)
	if c.RoutesPath == "" {
		c.RoutesPath = DefaultRoutesPath()
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.HTTPProxy = strings.TrimSpace(c.HTTPProxy)
	c.HTTPSProxy = strings.TrimSpace(c.HTTPSProxy)
	c.TLS.Domain = strings.TrimSpace(c.TLS.Domain)
	c.TLS.Email = strings.TrimSpace(c.TLS.Email)
	c.TLS.CacheDir = strings.TrimSpace(c.TLS.CacheDir)
	if c.TLS.CacheDir == "" {
		c.TLS.CacheDir = DefaultTLSCacheDir()
	}
}

func (c *ServerConfig) Validate() error {
	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			return fmt.Errorf("invalid listen_addr %q", c.ListenAddr)
		}
	}
	for _, p := range []struct{ name, value string }{
		{"http_proxy", c.HTTPProxy},
		{"https_proxy", c.HTTPSProxy},
	} {
		if p.value == "" {
			continue
		}
		u, err := url.Parse(p.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s %q", p.name, p.value)
		}
	}
	if c.TLS.Enabled && c.TLS.Domain == "" {
		return errors.New("tls.domain is required when tls.enabled=true")
	}
	return nil
}
