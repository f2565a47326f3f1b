// Package ipfs pins content to IPFS through the Pinata pinning API.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/decentrahub/hub/internal/pkg/metrics"
)

var ErrMissingCredentials = errors.New("pinata api key or secret is missing")

type PinataConfig struct {
	BaseURL      string
	APIKey       string
	SecretAPIKey string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Metrics      *metrics.Metrics
}

type Pinata struct {
	baseURL string
	key     string
	secret  string
	timeout time.Duration
	client  *http.Client
	metrics *metrics.Metrics
}

func NewPinata(cfg PinataConfig) *Pinata {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.pinata.cloud"
	}

	return &Pinata{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		key:     cfg.APIKey,
		secret:  cfg.SecretAPIKey,
		timeout: timeout,
		client:  client,
		metrics: cfg.Metrics,
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// PinJSON pins v as a JSON document and returns its ipfs:// URL.
func (p *Pinata) PinJSON(ctx context.Context, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}

	return p.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(body))
}

// PinFile pins the content of r under name and returns its ipfs:// URL.
func (p *Pinata) PinFile(ctx context.Context, name string, r io.Reader) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}

	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy file data: %w", err)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}

	return p.pin(ctx, "/pinning/pinFileToIPFS", w.FormDataContentType(), &body)
}

func (p *Pinata) pin(ctx context.Context, path, contentType string, body io.Reader) (url string, err error) {
	if p.key == "" || p.secret == "" {
		return "", ErrMissingCredentials
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.ObserveUpstream("pinata", start, err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", p.key)
	req.Header.Set("pinata_secret_api_key", p.secret)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var pinResp pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if pinResp.IpfsHash == "" {
		return "", errors.New("empty ipfs hash in response")
	}

	return "ipfs://" + pinResp.IpfsHash, nil
}
