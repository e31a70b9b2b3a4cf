package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/shieldforce/internal/domain"
)

// UpstreamProvider — контракт исполнителя исходящего вызова.
// Решение (ALLOW/BLOCK) принимается ДО вызова; сюда попадает только
// одобренный трафик.
type UpstreamProvider interface {
	Do(ctx context.Context, req *domain.EgressRequest) (*domain.UpstreamResult, error)
}

// ThrottleError сигнализирует, что внешний сервис просит подождать
// (HTTP 429 + Retry-After). Ретраер использует эту задержку вместо бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("upstream throttled, retry after %s", e.RetryAfter)
}

// HTTPUpstream выполняет реальный сетевой вызов от имени агента.
// Ошибка здесь — это отказ инфраструктуры (UPSTREAM_FAILURE), а не
// security-решение: статусы 4xx/5xx прозрачно возвращаются агенту.
type HTTPUpstream struct {
	client *http.Client
}

func NewHTTPUpstream(timeout time.Duration) *HTTPUpstream {
	return &HTTPUpstream{
		client: &http.Client{Timeout: timeout},
	}
}

func (u *HTTPUpstream) Do(ctx context.Context, req *domain.EgressRequest) (*domain.UpstreamResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader([]byte(req.Body)))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := u.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream call: %w", err)
	}
	defer resp.Body.Close()
	ttfb := time.Since(start)

	// 429 и шлюзовые 5xx считаем транзиентными: отдаем их ретраеру
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, &ThrottleError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("upstream transient failure: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &domain.UpstreamResult{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       string(body),
		TTFBMs:     ttfb.Milliseconds(),
		ContentLen: len(body),
	}, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 1 * time.Second
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 1 * time.Second
}
