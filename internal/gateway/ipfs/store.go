// Package ipfs implements gateway.ContentStore over an IPFS node's HTTP API
// and a read gateway. Content identifiers are derived from content by the
// node; the store never sees plaintext when records are encrypted upstream.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Store talks to a single IPFS node (API for writes, gateway for reads).
type Store struct {
	apiURL     string // e.g. http://localhost:5001
	gatewayURL string // e.g. http://localhost:8080/ipfs
	token      string // optional bearer JWT for hosted nodes
	http       *http.Client
	log        *zap.Logger
}

// New builds a Store. Hosted nodes authenticate with a bearer JWT; its
// expiry is checked once here so a dead token fails loudly, not per-call.
func New(apiURL, gatewayURL, token string, log *zap.Logger) *Store {
	s := &Store{
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		token:      token,
		http:       &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
	if token != "" {
		if exp, err := TokenExpiry(token); err == nil && time.Now().After(exp) {
			log.Warn("content store token expired", zap.Time("exp", exp))
		}
	}
	return s
}

type addReply struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Upload adds blob to the node and returns its content identifier.
func (s *Store) Upload(ctx context.Context, name string, blob []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(blob); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/api/v0/add", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("content store add: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("content store add: status %d", resp.StatusCode)
	}

	var reply addReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("content store add: decode reply: %w", err)
	}
	if reply.Hash == "" {
		return "", fmt.Errorf("content store add: empty content id")
	}
	return reply.Hash, nil
}

// Download fetches the blob for contentID from the read gateway and returns
// it with its declared media type.
func (s *Store) Download(ctx context.Context, contentID string) ([]byte, string, error) {
	url := s.gatewayURL + "/" + contentID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("content store fetch %s: %w", contentID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("content store fetch %s: status %d", contentID, resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("content store fetch %s: %w", contentID, err)
	}

	declared := resp.Header.Get("Content-Type")
	if declared == "" || declared == "application/octet-stream" {
		declared = http.DetectContentType(blob)
	}
	return blob, declared, nil
}

func (s *Store) authorize(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

// TokenExpiry reads the expiry claim of a store API token without
// verifying its signature; the store itself is the verifier.
func TokenExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}
