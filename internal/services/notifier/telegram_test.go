package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
)

func testDigest() *models.Digest {
	return &models.Digest{
		ID:       common.NewID(),
		Date:     "2026-08-24",
		Status:   models.DigestStatusReady,
		HTMLPath: "data/digests/digest-2026-08-24.html",
	}
}

func TestNotifyDigest_SendsToAllChats(t *testing.T) {
	var received []sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req sendMessageRequest
		require.NoError(t, json.Unmarshal(body, &req))
		received = append(received, req)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier(&common.TelegramConfig{
		Token:   "test-token",
		ChatIDs: []int64{100, 200},
	}, "https://vigil.example.com", common.GetLogger())
	n.apiBase = server.URL

	ok := n.NotifyDigest(context.Background(), testDigest(), 7)

	assert.True(t, ok)
	require.Len(t, received, 2)
	assert.Equal(t, int64(100), received[0].ChatID)
	assert.Equal(t, int64(200), received[1].ChatID)
	assert.Equal(t, "HTML", received[0].ParseMode)
	assert.Contains(t, received[0].Text, "2026-08-24")
	assert.Contains(t, received[0].Text, "7 article(s)")
	assert.Contains(t, received[0].Text, "https://vigil.example.com/digests/digest-2026-08-24.html")
}

func TestNotifyDigest_OmitsLinkWithoutBaseURL(t *testing.T) {
	var received []sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req sendMessageRequest
		require.NoError(t, json.Unmarshal(body, &req))
		received = append(received, req)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier(&common.TelegramConfig{
		Token:   "test-token",
		ChatIDs: []int64{100},
	}, "", common.GetLogger())
	n.apiBase = server.URL

	ok := n.NotifyDigest(context.Background(), testDigest(), 1)

	assert.True(t, ok)
	require.Len(t, received, 1)
	assert.NotContains(t, received[0].Text, "View digest")
}

func TestNotifyDigest_NeverErrorsOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "description": "chat not found"}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier(&common.TelegramConfig{
		Token:   "test-token",
		ChatIDs: []int64{100},
	}, "", common.GetLogger())
	n.apiBase = server.URL

	assert.False(t, n.NotifyDigest(context.Background(), testDigest(), 1))
}

func TestNotifyDigest_SkipsWhenUnconfigured(t *testing.T) {
	n := NewTelegramNotifier(&common.TelegramConfig{}, "", common.GetLogger())
	assert.False(t, n.Configured())
	assert.False(t, n.NotifyDigest(context.Background(), testDigest(), 1))
}
