package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Внешний семантический классификатор — мягкая зависимость (best-effort
// enrichment). На вход он получает ТОЛЬКО уже отредактированный текст.
// Таймаут жесткий; его истечение — не ошибка пайплайна, а нулевой вклад.

// Level — категориальный уровень риска от классификатора.
type Level string

const (
	LevelNone   Level = "none"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Verdict — ответ классификатора.
type Verdict struct {
	Level       Level `json:"risk_level"`
	Obfuscation bool  `json:"obfuscation"`
}

type request struct {
	Text string `json:"text"`
}

// Client — HTTP-клиент коллаборатора. Nil-клиент = классификатор выключен.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

func New(url string, timeout time.Duration) *Client {
	if url == "" {
		return nil
	}
	return &Client{
		url:     url,
		timeout: timeout,
		// Транспортный таймаут чуть шире контекстного — отсечка всегда по ctx
		http: &http.Client{Timeout: timeout + 200*time.Millisecond},
	}
}

// Classify зовет коллаборатора с жестким дедлайном.
// Любую ошибку вызывающий обязан поглотить (Fail-Open).
func (c *Client) Classify(ctx context.Context, redactedText string) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(request{Text: redactedText})
	if err != nil {
		return nil, fmt.Errorf("classifier: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier: unexpected status %d", resp.StatusCode)
	}

	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("classifier: decode: %w", err)
	}
	return &v, nil
}
