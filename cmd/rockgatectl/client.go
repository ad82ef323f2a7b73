package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type RockgateClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type KVRequest struct {
	Value string `json:"value"`
}

type KVResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type GetManyRequest struct {
	Keys []string `json:"keys"`
}

type GetManyResponse struct {
	Found    map[string]string `json:"found"`
	NotFound []string          `json:"not_found"`
}

type BatchOp struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

type BatchRequest struct {
	Operations []BatchOp `json:"operations"`
}

type BatchResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type QueryRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type QueryResponse struct {
	Rows     []QueryRow `json:"rows"`
	Sequence uint64     `json:"sequence"`
	Finished bool       `json:"finished"`
}

type WalFile struct {
	Path          string `json:"path"`
	LogNumber     uint64 `json:"log_number"`
	Live          bool   `json:"live"`
	StartSequence uint64 `json:"start_sequence"`
	SizeBytes     uint64 `json:"size_bytes"`
}

type WalFilesResponse struct {
	Files []WalFile `json:"files"`
	Count int       `json:"count"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sequence uint64 `json:"sequence"`
}

func NewRockgateClient(baseURL string) *RockgateClient {
	return &RockgateClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *RockgateClient) GetKV(key string) (string, error) {
	endpoint := fmt.Sprintf("%s/kv/%s", c.BaseURL, url.PathEscape(key))

	resp, err := c.HTTPClient.Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("key not found")
	}

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp.StatusCode, body)
	}

	var kvResp KVResponse
	if err := json.Unmarshal(body, &kvResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return kvResp.Value, nil
}

func (c *RockgateClient) SetKV(key, value string) error {
	endpoint := fmt.Sprintf("%s/kv/%s", c.BaseURL, url.PathEscape(key))

	jsonData, err := json.Marshal(KVRequest{Value: value})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}

	return nil
}

func (c *RockgateClient) DeleteKV(key string) error {
	endpoint := fmt.Sprintf("%s/kv/%s", c.BaseURL, url.PathEscape(key))

	req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}

	return nil
}

func (c *RockgateClient) GetManyKV(keys []string) (*GetManyResponse, error) {
	endpoint := fmt.Sprintf("%s/kv", c.BaseURL)

	jsonData, err := json.Marshal(GetManyRequest{Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.HTTPClient.Post(endpoint, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var manyResp GetManyResponse
	if err := json.Unmarshal(body, &manyResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &manyResp, nil
}

func (c *RockgateClient) ClearKV(start, end string) error {
	u, err := url.Parse(fmt.Sprintf("%s/kv", c.BaseURL))
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodDelete, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}

	return nil
}

func (c *RockgateClient) ApplyBatch(ops []BatchOp) (*BatchResponse, error) {
	endpoint := fmt.Sprintf("%s/batch", c.BaseURL)

	jsonData, err := json.Marshal(BatchRequest{Operations: ops})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.HTTPClient.Post(endpoint, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var batchResp BatchResponse
	if err := json.Unmarshal(body, &batchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &batchResp, nil
}

// QueryParams carries the optional bounds of one query page.
type QueryParams struct {
	Start        string
	End          string
	Limit        int
	Reverse      bool
	ExcludeStart bool
}

func (c *RockgateClient) Query(params QueryParams) (*QueryResponse, error) {
	u, err := url.Parse(fmt.Sprintf("%s/query", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	if params.Start != "" {
		q.Set("start", params.Start)
	}
	if params.End != "" {
		q.Set("end", params.End)
	}
	if params.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", params.Limit))
	}
	if params.Reverse {
		q.Set("reverse", "true")
	}
	if params.ExcludeStart {
		q.Set("exclude_start", "true")
	}
	u.RawQuery = q.Encode()

	resp, err := c.HTTPClient.Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var queryResp QueryResponse
	if err := json.Unmarshal(body, &queryResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &queryResp, nil
}

func (c *RockgateClient) GetProperty(name string) (string, error) {
	endpoint := fmt.Sprintf("%s/db/property/%s", c.BaseURL, url.PathEscape(name))

	resp, err := c.HTTPClient.Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp.StatusCode, body)
	}

	var propResp struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(body, &propResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return propResp.Value, nil
}

func (c *RockgateClient) GetSequence() (uint64, error) {
	endpoint := fmt.Sprintf("%s/db/sequence", c.BaseURL)

	resp, err := c.HTTPClient.Get(endpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp.StatusCode, body)
	}

	var seqResp struct {
		Sequence uint64 `json:"sequence"`
	}
	if err := json.Unmarshal(body, &seqResp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	return seqResp.Sequence, nil
}

func (c *RockgateClient) GetWalFiles() (*WalFilesResponse, error) {
	endpoint := fmt.Sprintf("%s/db/wal", c.BaseURL)

	resp, err := c.HTTPClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var walResp WalFilesResponse
	if err := json.Unmarshal(body, &walResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &walResp, nil
}

func (c *RockgateClient) GetCurrentWalFile() (*WalFile, error) {
	endpoint := fmt.Sprintf("%s/db/wal/current", c.BaseURL)

	resp, err := c.HTTPClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var wf WalFile
	if err := json.Unmarshal(body, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &wf, nil
}

func (c *RockgateClient) FlushWal(sync bool) error {
	endpoint := fmt.Sprintf("%s/db/wal/flush?sync=%t", c.BaseURL, sync)

	resp, err := c.HTTPClient.Post(endpoint, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}

	return nil
}

func (c *RockgateClient) Health() (*HealthResponse, error) {
	endpoint := fmt.Sprintf("%s/health", c.BaseURL)

	resp, err := c.HTTPClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &health, nil
}

func decodeError(status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("server error: %s - %s", errResp.Error, errResp.Message)
	}
	return fmt.Errorf("unexpected status code: %d", status)
}
