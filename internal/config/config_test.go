package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv(mapEnv{
		"MEDCHAIN_CERT": "/tmp/cert.pem",
		"MEDCHAIN_KEY":  "/tmp/key.pem",
	})
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.PeerEndpoint != "localhost:7051" {
		t.Errorf("peer = %q", cfg.PeerEndpoint)
	}
	if cfg.Channel != "mychannel" || cfg.Chaincode != "medicalrecords" {
		t.Errorf("channel/chaincode = %q/%q", cfg.Channel, cfg.Chaincode)
	}
	if cfg.AssistantTimeout != 60*time.Second {
		t.Errorf("timeout = %v", cfg.AssistantTimeout)
	}
	if cfg.HistoryPath == "" {
		t.Error("history path empty")
	}
}

func TestLoadFromEnv_RequiresIdentity(t *testing.T) {
	if _, err := LoadFromEnv(mapEnv{"MEDCHAIN_CERT": "/tmp/cert.pem"}); err == nil {
		t.Error("missing key accepted")
	}
	if _, err := LoadFromEnv(mapEnv{"MEDCHAIN_KEY": "/tmp/key.pem"}); err == nil {
		t.Error("missing cert accepted")
	}
}

func TestLoadFromEnv_TimeoutOverride(t *testing.T) {
	base := mapEnv{
		"MEDCHAIN_CERT": "/tmp/cert.pem",
		"MEDCHAIN_KEY":  "/tmp/key.pem",
	}

	base["MEDCHAIN_ASSISTANT_TIMEOUT_SECONDS"] = "15"
	cfg, err := LoadFromEnv(base)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.AssistantTimeout != 15*time.Second {
		t.Errorf("timeout = %v, want 15s", cfg.AssistantTimeout)
	}

	for _, bad := range []string{"0", "-5", "soon"} {
		base["MEDCHAIN_ASSISTANT_TIMEOUT_SECONDS"] = bad
		if _, err := LoadFromEnv(base); err == nil {
			t.Errorf("timeout %q accepted", bad)
		}
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadFromEnv(mapEnv{
		"MEDCHAIN_CERT":      "/id/cert.pem",
		"MEDCHAIN_KEY":       "/id/key.pem",
		"MEDCHAIN_PEER":      "peer.example.org:443",
		"MEDCHAIN_STORE_API": "https://store.example.org:5001",
		"MEDCHAIN_HISTORY":   "/var/lib/medchain/history",
	})
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.PeerEndpoint != "peer.example.org:443" {
		t.Errorf("peer = %q", cfg.PeerEndpoint)
	}
	if cfg.StoreAPIURL != "https://store.example.org:5001" {
		t.Errorf("store api = %q", cfg.StoreAPIURL)
	}
	if cfg.HistoryPath != "/var/lib/medchain/history" {
		t.Errorf("history = %q", cfg.HistoryPath)
	}
}
