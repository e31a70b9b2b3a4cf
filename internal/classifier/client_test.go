package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	var received request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"risk_level": "medium", "obfuscation": false}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 500*time.Millisecond)
	v, err := c.Classify(context.Background(), "POST files.example purpose=sync body=abc")
	require.NoError(t, err)

	assert.Equal(t, LevelMedium, v.Level)
	assert.False(t, v.Obfuscation)
	assert.Equal(t, "POST files.example purpose=sync body=abc", received.Text)
}

func TestClassifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"risk_level": "none"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := c.Classify(context.Background(), "text")

	assert.Error(t, err)
	// Дедлайн жесткий: ответ приходит сильно раньше, чем "висит" сервер
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestClassifyBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, 500*time.Millisecond)
	_, err := c.Classify(context.Background(), "text")
	assert.Error(t, err)
}

func TestNewDisabled(t *testing.T) {
	assert.Nil(t, New("", time.Second))
}
