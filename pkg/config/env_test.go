package config

import "testing"

func TestEnvValueCaseInsensitive(t *testing.T) {
	t.Setenv("HTTP_PROXY", "")
	t.Setenv("http_proxy", "http://lower:8080")
	if got := EnvValue("HTTP_PROXY"); got != "http://lower:8080" {
		t.Fatalf("unexpected value: %q", got)
	}
}

func TestEnvValueEmptyCountsAsUnset(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("server_port", "4040")
	if got := EnvValue("SERVER_PORT"); got != "4040" {
		t.Fatalf("unexpected value: %q", got)
	}
}

func TestApplyEnvDefaultsPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("server_port", "")
	cfg := NewDefaultServerConfig()
	cfg.ApplyEnv()
	if cfg.ListenAddr != ":"+DefaultPort {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
}

func TestApplyEnvDoesNotClobberConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("HTTP_PROXY", "http://proxy:3128")
	t.Setenv("http_proxy", "")
	cfg := NewDefaultServerConfig()
	cfg.ListenAddr = ":8081"
	cfg.ApplyEnv()
	if cfg.ListenAddr != ":8081" {
		t.Fatalf("config listen_addr should win, got %q", cfg.ListenAddr)
	}
	if cfg.HTTPProxy != "http://proxy:3128" {
		t.Fatalf("unexpected proxy: %q", cfg.HTTPProxy)
	}
}

func TestValidateRejectsBadProxy(t *testing.T) {
	cfg := NewDefaultServerConfig()
	cfg.ListenAddr = ":3030"
	cfg.HTTPProxy = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
