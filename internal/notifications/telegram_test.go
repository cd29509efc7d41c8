package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramNotifier_SendAlert(t *testing.T) {
	var path, chatID, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, r.ParseForm())
		chatID = r.PostForm.Get("chat_id")
		text = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.baseURL = srv.URL

	require.NoError(t, n.SendAlert(context.Background(), LevelError, "stream lost"))
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", chatID)
	assert.Contains(t, text, "stream lost")
	assert.Contains(t, text, "🚨")
}

func TestTelegramNotifier_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("bad", "42")
	n.baseURL = srv.URL

	err := n.SendAlert(context.Background(), LevelInfo, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
