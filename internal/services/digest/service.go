package digest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/settings"
	"github.com/ternarybob/vigil/internal/services/summarizer"
)

// Summarizer produces an article summary. Satisfied by
// summarizer.Service.
type Summarizer interface {
	Summarize(ctx context.Context, article *models.Article) summarizer.Result
}

// Notifier announces a generated digest. Satisfied by
// notifier.TelegramNotifier.
type Notifier interface {
	Configured() bool
	NotifyDigest(ctx context.Context, digest *models.Digest, articleCount int) bool
}

// Service generates the daily digest: it collects unassigned articles,
// summarizes them, renders the HTML, and commits the digest atomically.
// Generation is idempotent per date through the digests date constraint.
type Service struct {
	storage    interfaces.StorageManager
	settings   *settings.Service
	summarizer Summarizer
	notifier   Notifier
	outputDir  string
	logger     arbor.ILogger
}

// NewService creates a digest service. notifier may be nil when
// notifications are not configured.
func NewService(
	storage interfaces.StorageManager,
	settingsService *settings.Service,
	summarizerService Summarizer,
	notifierService Notifier,
	outputDir string,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:    storage,
		settings:   settingsService,
		summarizer: summarizerService,
		notifier:   notifierService,
		outputDir:  outputDir,
		logger:     logger,
	}
}

// Generate builds the digest for a date (YYYY-MM-DD, UTC). An empty
// date means today. Returns interfaces.ErrDigestExists when the date
// already has a digest, whether found up front or lost in the final
// insert race.
func (s *Service) Generate(ctx context.Context, date string) (*models.Digest, error) {
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date '%s': expected YYYY-MM-DD", date)
	}

	if existing, err := s.storage.DigestStorage().GetDigestByDate(ctx, date); err == nil {
		return existing, fmt.Errorf("date %s: %w", date, interfaces.ErrDigestExists)
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing digest: %w", err)
	}

	articles, err := s.storage.ArticleStorage().ListUnassigned(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("no unprocessed articles")
	}

	enabledSections, err := s.settings.GetStringSlice(ctx, settings.KeyDigestSections)
	if err != nil {
		return nil, err
	}

	// Articles outside the enabled sections stay unassigned for a
	// future digest with different settings
	var selected []*models.Article
	for _, article := range articles {
		if !containsString(enabledSections, article.DigestSection) {
			continue
		}
		selected = append(selected, article)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no unprocessed articles match enabled sections (%s)", strings.Join(enabledSections, ", "))
	}

	// Articles with neither summary nor content stay un-summarized but
	// are still included
	for _, article := range selected {
		if article.Summary != "" || article.RawContent == "" {
			continue
		}
		result := s.summarizer.Summarize(ctx, article)
		article.Summary = result.Summary
	}

	grouped := make(map[string][]*models.Article)
	for _, article := range selected {
		grouped[article.DigestSection] = append(grouped[article.DigestSection], article)
	}

	now := time.Now().UTC()
	html, err := renderDigest(date, enabledSections, grouped, now)
	if err != nil {
		return nil, err
	}

	htmlPath := filepath.Join(s.outputDir, fmt.Sprintf("digest-%s.html", date))
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create digest directory: %w", err)
	}
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write digest file: %w", err)
	}

	digest := &models.Digest{
		ID:        common.NewID(),
		Date:      date,
		Status:    models.DigestStatusReady,
		HTMLPath:  htmlPath,
		CreatedAt: now,
	}
	if err := s.storage.DigestStorage().CreateWithArticles(ctx, digest, selected); err != nil {
		// Lost the insert race: another writer owns this date. The
		// orphaned HTML file is harmless and will be overwritten if the
		// date is ever regenerated.
		return nil, err
	}

	s.logger.Info().
		Str("date", date).
		Int("articles", len(selected)).
		Str("path", htmlPath).
		Msg("Digest generated")

	s.notify(ctx, digest, len(selected))
	return digest, nil
}

// notify sends the digest announcement when notifications are enabled
// and configured. Failures never affect the generated digest.
func (s *Service) notify(ctx context.Context, digest *models.Digest, articleCount int) {
	if s.notifier == nil || !s.notifier.Configured() {
		return
	}

	enabled, err := s.settings.GetBool(ctx, settings.KeyTelegramNotifications)
	if err != nil || !enabled {
		return
	}

	if !s.notifier.NotifyDigest(ctx, digest, articleCount) {
		return
	}
	notifiedAt := time.Now().UTC()
	if err := s.storage.DigestStorage().SetNotified(ctx, digest.ID, notifiedAt); err != nil {
		s.logger.Warn().Str("digest_id", digest.ID).Err(err).Msg("Failed to record digest notification")
		return
	}
	digest.NotifiedAt = &notifiedAt
}

func containsString(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}
