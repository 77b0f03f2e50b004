// Package fixtures answers "which football matches are on today" by
// scraping a listings page through a pooled browser worker.
package fixtures

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/rfarias/atendebot/internal/worker"
)

const (
	scraperPurpose = "scraper"
	pageTimeout    = 45 * time.Second

	// Matches that started up to this long ago are still worth showing.
	lateJoinWindow = 2 * time.Hour
)

// Match is one televised fixture.
type Match struct {
	Kickoff  string // "HH:MM" local
	Teams    string
	Channels string
}

// Service scrapes and caches today's fixtures. The cache is only reused
// when it is from the same local date and non-empty; an empty scrape is
// never cached, so transient page failures retry on the next request.
type Service struct {
	pool *worker.Pool
	url  string
	loc  *time.Location
	now  func() time.Time

	mu         sync.Mutex
	cachedDate string
	cached     []Match
}

// NewService creates a fixtures service using the given pool.
func NewService(pool *worker.Pool, url string) *Service {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.Local
	}
	return &Service{pool: pool, url: url, loc: loc, now: time.Now}
}

// TodayText returns the formatted WhatsApp message for today's remaining
// fixtures, scraping the page when the cache is stale.
func (s *Service) TodayText(ctx context.Context) (string, error) {
	now := s.now().In(s.loc)
	today := now.Format("02/01/2006")

	matches, err := s.todaysMatches(ctx, today)
	if err != nil {
		return "", err
	}

	upcoming := filterByTime(matches, now)
	if len(upcoming) == 0 {
		return "⚠️ Nenhum jogo começou há no máximo 2 horas ou está programado para hoje.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚽ *Jogos de hoje (%s)*\n\n", today)
	for _, m := range upcoming {
		fmt.Fprintf(&b, "🕒 %s — %s\n📺 %s\n\n", m.Kickoff, m.Teams, m.Channels)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Service) todaysMatches(ctx context.Context, today string) ([]Match, error) {
	s.mu.Lock()
	if s.cachedDate == today && len(s.cached) > 0 {
		cached := s.cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	matches, err := s.scrape(ctx)
	if err != nil {
		return nil, err
	}

	if len(matches) > 0 {
		s.mu.Lock()
		s.cachedDate = today
		s.cached = matches
		s.mu.Unlock()
	}
	return matches, nil
}

func (s *Service) scrape(ctx context.Context) ([]Match, error) {
	w, err := s.pool.Checkout(ctx, scraperPurpose)
	if err != nil {
		return nil, fmt.Errorf("checkout scraper worker: %w", err)
	}
	rw, ok := w.(*worker.RodWorker)
	if !ok {
		return nil, fmt.Errorf("scraper worker is not a browser worker")
	}

	page, err := rw.Browser().Page(proto.TargetCreateTarget{URL: s.url})
	if err != nil {
		return nil, fmt.Errorf("open fixtures page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Warn("Failed to close fixtures page", "error", err)
		}
	}()

	page = page.Timeout(pageTimeout)
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load fixtures page: %w", err)
	}

	rows, err := page.Elements("figure + ul li, .jogos-do-dia li")
	if err != nil {
		return nil, fmt.Errorf("find fixture rows: %w", err)
	}

	var matches []Match
	for _, row := range rows {
		text, err := row.Text()
		if err != nil {
			continue
		}
		if m, ok := parseRow(text); ok {
			matches = append(matches, m)
		}
	}

	slog.Info("Fixtures scraped", "count", len(matches))
	return matches, nil
}

// parseRow splits a listing row of the form "HH:MM - Team A x Team B - Channels".
func parseRow(text string) (Match, bool) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " - "))
	parts := strings.SplitN(text, " - ", 3)
	if len(parts) < 2 {
		return Match{}, false
	}
	kickoff := strings.TrimSpace(parts[0])
	if _, err := time.Parse("15:04", kickoff); err != nil {
		return Match{}, false
	}
	m := Match{Kickoff: kickoff, Teams: strings.TrimSpace(parts[1]), Channels: "a confirmar"}
	if len(parts) == 3 {
		m.Channels = strings.TrimSpace(parts[2])
	}
	return m, true
}

// filterByTime keeps matches that start before end of day and started no
// more than the late-join window ago.
func filterByTime(matches []Match, now time.Time) []Match {
	cutoff := now.Add(-lateJoinWindow)
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	var kept []Match
	for _, m := range matches {
		t, err := time.Parse("15:04", m.Kickoff)
		if err != nil {
			continue
		}
		kickoff := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if kickoff.After(cutoff) && kickoff.Before(endOfDay) {
			kept = append(kept, m)
		}
	}
	return kept
}
