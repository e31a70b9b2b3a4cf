package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AgentInvoker — контракт доставки очищенного запроса агенту.
// Агент получает ТОЛЬКО прошедший фильтры текст и capability-грант.
type AgentInvoker interface {
	Invoke(ctx context.Context, grant string, payload map[string]interface{}) (map[string]interface{}, error)
}

// HTTPAgentClient форвардит санированный запрос рантайму агента.
type HTTPAgentClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAgentClient(baseURL string, timeout time.Duration) *HTTPAgentClient {
	return &HTTPAgentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPAgentClient) Invoke(ctx context.Context, grant string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal agent payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_internal/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+grant)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}
	return result, nil
}
