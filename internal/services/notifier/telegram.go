package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/httpclient"
	"github.com/ternarybob/vigil/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier announces generated digests over the Telegram Bot
// API. Notify never returns an error: a notification failure is logged
// and digest generation carries on.
type TelegramNotifier struct {
	token   string
	chatIDs []int64
	baseURL string
	apiBase string
	client  *httpclient.Client
	logger  arbor.ILogger
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegramNotifier creates a notifier from the Telegram config.
// BaseURL, when set, is used to build a public link to the digest file.
func NewTelegramNotifier(config *common.TelegramConfig, baseURL string, logger arbor.ILogger) *TelegramNotifier {
	return &TelegramNotifier{
		token:   config.Token,
		chatIDs: config.ChatIDs,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiBase: telegramAPIBase,
		client:  httpclient.New(httpclient.WithTimeout(15 * time.Second)),
		logger:  logger,
	}
}

// Configured reports whether the notifier has a token and at least one
// chat to send to.
func (n *TelegramNotifier) Configured() bool {
	return n.token != "" && len(n.chatIDs) > 0
}

// NotifyDigest sends the digest announcement to every configured chat.
// Returns true when at least one chat received the message.
func (n *TelegramNotifier) NotifyDigest(ctx context.Context, digest *models.Digest, articleCount int) bool {
	if !n.Configured() {
		n.logger.Debug().Msg("Telegram notifier not configured, skipping notification")
		return false
	}

	text := n.buildMessage(digest, articleCount)
	delivered := false

	for _, chatID := range n.chatIDs {
		if err := n.sendMessage(ctx, chatID, text); err != nil {
			n.logger.Warn().
				Int64("chat_id", chatID).
				Str("digest_date", digest.Date).
				Err(err).
				Msg("Telegram notification failed")
			continue
		}
		delivered = true
	}

	if delivered {
		n.logger.Info().Str("digest_date", digest.Date).Msg("Digest notification sent")
	}
	return delivered
}

func (n *TelegramNotifier) buildMessage(digest *models.Digest, articleCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Security Digest — %s</b>\n\n", digest.Date)
	fmt.Fprintf(&b, "%d article(s)\n", articleCount)

	if n.baseURL != "" && digest.HTMLPath != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s/digests/%s\">View digest</a>", n.baseURL, filepath.Base(digest.HTMLPath))
	}
	return b.String()
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	body, err := n.client.PostJSON(ctx, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	var resp sendMessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram rejected message: %s", resp.Description)
	}
	return nil
}
