package alerting

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

func TestWebhookSink(t *testing.T) {
	t.Run("posts the message as json", func(t *testing.T) {
		var received Message
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sink := NewWebhookSink(srv.URL, nil)
		err := sink.Send(context.Background(), Message{
			Title:       "database unreachable",
			Severity:    "critical",
			Environment: "production",
			Fields:      map[string]string{"fingerprint": "abc123"},
			Timestamp:   time.Now().UTC(),
		})

		require.NoError(t, err)
		assert.Equal(t, "database unreachable", received.Title)
		assert.Equal(t, "abc123", received.Fields["fingerprint"])
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		sink := NewWebhookSink(srv.URL, nil)
		err := sink.Send(context.Background(), Message{Title: "t"})

		assert.ErrorContains(t, err, "502")
	})

	t.Run("unreachable endpoint is an error", func(t *testing.T) {
		sink := NewWebhookSink("http://127.0.0.1:1", &http.Client{Timeout: 100 * time.Millisecond})
		err := sink.Send(context.Background(), Message{Title: "t"})
		assert.Error(t, err)
	})
}
