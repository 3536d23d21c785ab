package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"openproxy/pkg/checker"
	"openproxy/pkg/crawler"
	"openproxy/pkg/pipeline"
	"openproxy/pkg/proxy"
)

type crawlFlags struct {
	urls          []string
	urlFile       string
	output        string
	typeName      string
	timeout       time.Duration
	engine        string
	commonSources bool
	check         bool
	every         time.Duration
	report        string
	quiet         bool
}

func newCrawlCmd(a *app) *cobra.Command {
	f := &crawlFlags{}

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Harvest proxies from listing pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			crcfg := cfg.CrawlerConfig()
			if cmd.Flags().Changed("type") {
				typ, err := proxy.ParseType(f.typeName)
				if err != nil {
					return err
				}
				crcfg = crcfg.WithProxyType(typ)
			}
			if cmd.Flags().Changed("timeout") {
				crcfg = crcfg.WithTimeout(f.timeout)
			}
			if cmd.Flags().Changed("engine") {
				engine, err := crawler.ParseEngine(f.engine)
				if err != nil {
					return err
				}
				crcfg = crcfg.WithEngine(engine)
			}

			var sources []crawler.Source
			if f.commonSources {
				if sources, err = cfg.Sources(); err != nil {
					return err
				}
			}
			urls := f.urls
			if f.urlFile != "" {
				fromFile, err := readURLFile(f.urlFile)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			for _, u := range urls {
				sources = append(sources, crawler.NewSource(u, u, crcfg.DefaultType))
			}
			if len(sources) == 0 {
				return fmt.Errorf("nothing to crawl: pass --url, --url-file or --common-sources")
			}

			cr, err := crawler.New(crcfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !f.check {
				return crawlOnly(ctx, cmd, cr, sources, f)
			}

			ch, err := checker.New(cfg.CheckerConfig())
			if err != nil {
				return err
			}
			defer ch.Close()
			return crawlAndCheck(ctx, cmd, cr, ch, sources, f)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVarP(&f.urls, "url", "u", nil, "listing URL to crawl (repeatable)")
	fl.StringVarP(&f.urlFile, "url-file", "f", "", "file with one listing URL per line")
	fl.StringVarP(&f.output, "output", "o", "", "write harvested proxies to this file instead of stdout")
	fl.StringVarP(&f.typeName, "type", "t", "http", "default proxy type for entries without a scheme")
	fl.DurationVar(&f.timeout, "timeout", crawler.DefaultTimeout, "per-request timeout")
	fl.StringVar(&f.engine, "engine", string(crawler.EngineHTTP), "fetch engine (http, colly)")
	fl.BoolVar(&f.commonSources, "common-sources", false, "crawl the built-in source catalog")
	fl.BoolVar(&f.check, "check", false, "check harvested proxies and keep only working ones")
	fl.DurationVar(&f.every, "every", 0, "with --check, repeat the harvest at this interval")
	fl.StringVar(&f.report, "report", "", "write the crawl (and check) report to a .json or .yaml file")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func crawlOnly(ctx context.Context, cmd *cobra.Command, cr *crawler.Crawler, sources []crawler.Source, f *crawlFlags) error {
	results := cr.CrawlSourcesWithResults(ctx, sources)
	printCrawlResults(cmd.ErrOrStderr(), results)

	proxies := crawler.Merge(results)
	fmt.Fprintf(cmd.ErrOrStderr(), "\nTotal unique proxies: %d\n", len(proxies))

	if f.report != "" {
		if err := writeReport(f.report, results); err != nil {
			return err
		}
	}
	return emit(cmd, proxies, f.output)
}

func crawlAndCheck(ctx context.Context, cmd *cobra.Command, cr *crawler.Crawler, ch *checker.Checker, sources []crawler.Source, f *crawlFlags) error {
	var bar *progressbar.ProgressBar
	h := pipeline.NewHarvester(cr, ch).WithHooks(pipeline.Hooks{
		Crawled: func(n int) { bar = newBar(n, "checking", f.quiet) },
		Checked: func(checker.Result) { _ = bar.Add(1) },
	})

	handle := func(report pipeline.Report, err error) error {
		if bar != nil {
			_ = bar.Finish()
		}
		printCrawlResults(cmd.ErrOrStderr(), report.Crawl)
		fmt.Fprintf(cmd.ErrOrStderr(), "\nChecked %d candidates: %d working, %d failed, %d timed out\n",
			report.Stats.Candidates, report.Stats.Working, report.Stats.Failed, report.Stats.TimedOut)

		if f.report != "" {
			if werr := writeReport(f.report, report); werr != nil {
				return werr
			}
		}
		working := make([]proxy.Proxy, len(report.Working))
		for i, r := range report.Working {
			working[i] = r.Proxy
		}
		if eerr := emit(cmd, working, f.output); eerr != nil {
			return eerr
		}
		return err
	}

	if f.every <= 0 {
		return handle(h.Run(ctx, sources))
	}

	var loopErr error
	h.Loop(ctx, f.every, sources, func(report pipeline.Report, err error) {
		if herr := handle(report, err); herr != nil {
			loopErr = herr
		}
	})
	return loopErr
}

func printCrawlResults(w io.Writer, results []crawler.Result) {
	for _, r := range results {
		if r.Success() {
			fmt.Fprintf(w, "Found %d proxies from %s\n", len(r.Proxies), r.Source)
		} else {
			fmt.Fprintf(w, "Error crawling %s: %s\n", r.Source, r.Error)
		}
	}
}

func emit(cmd *cobra.Command, proxies []proxy.Proxy, output string) error {
	if output == "" {
		for _, p := range proxies {
			fmt.Fprintln(cmd.OutOrStdout(), p.FullString())
		}
		return nil
	}
	if err := proxy.SaveToFile(proxies, output, true); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d proxies to %s\n", len(proxies), output)
	return nil
}

// readURLFile returns the non-empty, non-comment lines of path.
func readURLFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL file: %w", err)
	}

	var urls []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}
