// Package pipeline chains the crawler and the checker: harvest candidates
// from listing sources, probe them, and summarise what works.
package pipeline

import (
	"context"
	"sort"
	"time"

	"openproxy/internal/logger"
	"openproxy/pkg/checker"
	"openproxy/pkg/crawler"
	"openproxy/pkg/proxy"
)

type Crawler interface {
	CrawlSourcesWithResults(ctx context.Context, sources []crawler.Source) []crawler.Result
}

type Checker interface {
	CheckProxiesStream(ctx context.Context, proxies []proxy.Proxy) <-chan checker.Result
}

// Hooks observe a run while it happens. Both are optional and are called
// from the goroutine running Run.
type Hooks struct {
	// Crawled fires once crawling is done, with the number of unique candidates.
	Crawled func(candidates int)
	// Checked fires for every probe result as it arrives.
	Checked func(checker.Result)
}

// Report is the outcome of one harvest. Working is ordered fastest first;
// Rest keeps completion order.
type Report struct {
	Crawl   []crawler.Result `json:"crawl" yaml:"crawl"`
	Working []checker.Result `json:"working" yaml:"working"`
	Rest    []checker.Result `json:"rest" yaml:"rest"`
	Stats   Stats            `json:"stats" yaml:"stats"`
}

type Stats struct {
	Sources    int `json:"sources" yaml:"sources"`
	Candidates int `json:"candidates" yaml:"candidates"`
	Working    int `json:"working" yaml:"working"`
	Failed     int `json:"failed" yaml:"failed"`
	TimedOut   int `json:"timed_out" yaml:"timed_out"`
	// TypeCount and CountryCount cover working proxies only.
	TypeCount    map[string]int `json:"type_count" yaml:"type_count"`
	CountryCount map[string]int `json:"country_count" yaml:"country_count"`
	Duration     time.Duration  `json:"duration" yaml:"duration"`
}

type Harvester struct {
	crawler Crawler
	checker Checker
	hooks   Hooks
	log     *logger.Logger
}

func NewHarvester(cr Crawler, ch Checker) *Harvester {
	return &Harvester{
		crawler: cr,
		checker: ch,
		log:     logger.New("pipeline"),
	}
}

func (h *Harvester) WithHooks(hooks Hooks) *Harvester {
	h.hooks = hooks
	return h
}

// Run crawls sources serially, deduplicates the candidates and probes them.
// An empty harvest is not an error; the only error is ctx ending early, in
// which case the partial report is still returned.
func (h *Harvester) Run(ctx context.Context, sources []crawler.Source) (Report, error) {
	start := time.Now()
	log := h.log.WithID(logger.GenerateID())

	report := Report{Crawl: h.crawler.CrawlSourcesWithResults(ctx, sources)}
	candidates := crawler.Merge(report.Crawl)
	log.Info().Int("sources", len(sources)).Int("candidates", len(candidates)).Msg("harvested candidates, checking")

	if h.hooks.Crawled != nil {
		h.hooks.Crawled(len(candidates))
	}

	if len(candidates) > 0 {
		for r := range h.checker.CheckProxiesStream(ctx, candidates) {
			if r.IsWorking() {
				report.Working = append(report.Working, r)
			} else {
				report.Rest = append(report.Rest, r)
			}
			if h.hooks.Checked != nil {
				h.hooks.Checked(r)
			}
		}
	}

	sortByLatency(report.Working)
	report.Stats = summarize(len(sources), len(candidates), report)
	report.Stats.Duration = time.Since(start)

	log.Info().
		Int("working", report.Stats.Working).
		Int("candidates", report.Stats.Candidates).
		Dur("took", report.Stats.Duration).
		Msg("harvest finished")
	return report, ctx.Err()
}

// Loop runs a harvest immediately and then once per interval until ctx is
// done, handing every report to fn. A non-positive interval runs once.
func (h *Harvester) Loop(ctx context.Context, interval time.Duration, sources []crawler.Source, fn func(Report, error)) {
	if interval <= 0 {
		if report, err := h.Run(ctx, sources); ctx.Err() == nil {
			fn(report, err)
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := h.Run(ctx, sources)
		if ctx.Err() != nil {
			return
		}
		fn(report, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sortByLatency(results []checker.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].LatencyMs < results[j].LatencyMs
	})
}

func summarize(sources, candidates int, report Report) Stats {
	stats := Stats{
		Sources:      sources,
		Candidates:   candidates,
		Working:      len(report.Working),
		TypeCount:    make(map[string]int),
		CountryCount: make(map[string]int),
	}

	for _, r := range report.Rest {
		switch r.Status {
		case checker.StatusFailed:
			stats.Failed++
		case checker.StatusTimeout:
			stats.TimedOut++
		}
	}

	for _, r := range report.Working {
		stats.TypeCount[r.Proxy.Type.String()]++
		if r.Geo != nil && r.Geo.CountryCode != "" {
			stats.CountryCount[r.Geo.CountryCode]++
		}
	}
	return stats
}
