// Package config loads client configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config carries everything the client needs to reach its collaborators:
// the chain gateway peer, the content store, and the inference endpoints.
type Config struct {
	// Chain gateway (Fabric peer).
	PeerEndpoint string
	GatewayPeer  string
	MSPID        string
	CertPath     string
	KeyPath      string
	TLSCertPath  string
	Channel      string
	Chaincode    string

	// Content store (IPFS node API + read gateway).
	StoreAPIURL     string
	StoreGatewayURL string
	StoreToken      string // optional bearer JWT for hosted nodes

	// Inference endpoints.
	PatientAPIURL    string
	DoctorAPIURL     string
	AssistantTimeout time.Duration

	// Local state.
	HistoryPath string // leveldb directory for the assistant history archive
}

// Env abstracts os.Getenv for tests.
type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFromEnv(osEnv{})
}

// LoadFromEnv builds a Config from the given environment.
func LoadFromEnv(env Env) (Config, error) {
	cfg := Config{
		PeerEndpoint:     getEnv(env, "MEDCHAIN_PEER", "localhost:7051"),
		GatewayPeer:      getEnv(env, "MEDCHAIN_GATEWAY_PEER", "peer0.org1.example.com"),
		MSPID:            getEnv(env, "MEDCHAIN_MSP_ID", "Org1MSP"),
		CertPath:         env.Getenv("MEDCHAIN_CERT"),
		KeyPath:          env.Getenv("MEDCHAIN_KEY"),
		TLSCertPath:      env.Getenv("MEDCHAIN_TLS_CERT"),
		Channel:          getEnv(env, "MEDCHAIN_CHANNEL", "mychannel"),
		Chaincode:        getEnv(env, "MEDCHAIN_CHAINCODE", "medicalrecords"),
		StoreAPIURL:      getEnv(env, "MEDCHAIN_STORE_API", "http://localhost:5001"),
		StoreGatewayURL:  getEnv(env, "MEDCHAIN_STORE_GATEWAY", "http://localhost:8080/ipfs"),
		StoreToken:       env.Getenv("MEDCHAIN_STORE_TOKEN"),
		PatientAPIURL:    env.Getenv("MEDCHAIN_PATIENT_API"),
		DoctorAPIURL:     env.Getenv("MEDCHAIN_DOCTOR_API"),
		AssistantTimeout: 60 * time.Second,
		HistoryPath:      getEnv(env, "MEDCHAIN_HISTORY", defaultHistoryPath()),
	}

	if cfg.CertPath == "" || cfg.KeyPath == "" {
		return Config{}, fmt.Errorf("MEDCHAIN_CERT and MEDCHAIN_KEY are required")
	}

	if raw := env.Getenv("MEDCHAIN_ASSISTANT_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid MEDCHAIN_ASSISTANT_TIMEOUT_SECONDS")
		}
		cfg.AssistantTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func getEnv(env Env, key, def string) string {
	if v := env.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultHistoryPath() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "medchain", "history")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "medchain", "history")
}
