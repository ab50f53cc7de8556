package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	require.NoError(t, w.Write("typing", "yes"))
	require.NoError(t, w.WriteJSON("message", map[string]string{"content": "hi"}))
	require.NoError(t, w.Close())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t,
		"event: typing\ndata: yes\n\nevent: message\ndata: {\"content\":\"hi\"}\n\ndata: [DONE]\n\n",
		rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestSSEWriter_BadJSON(t *testing.T) {
	w := NewSSEWriter(httptest.NewRecorder())
	assert.Error(t, w.WriteJSON("message", make(chan int)))
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Timeout)
	assert.NotNil(t, c.Transport)
}
