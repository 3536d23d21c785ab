package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"openproxy/pkg/checker"
	"openproxy/pkg/proxy"
)

type checkFlags struct {
	good        string
	bad         string
	typeName    string
	concurrency int
	timeout     time.Duration
	testURL     string
	geoDB       string
	report      string
	quiet       bool
}

func newCheckCmd(a *app) *cobra.Command {
	f := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check <input>",
		Short: "Check every proxy in a list and split good from bad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			typ, err := proxy.ParseType(f.typeName)
			if err != nil {
				return err
			}

			ccfg := cfg.CheckerConfig()
			if cmd.Flags().Changed("concurrency") {
				ccfg = ccfg.WithConcurrency(f.concurrency)
			}
			if cmd.Flags().Changed("timeout") {
				ccfg = ccfg.WithTimeout(f.timeout)
			}
			if cmd.Flags().Changed("test-url") {
				ccfg = ccfg.WithTestURL(f.testURL)
			}
			if cmd.Flags().Changed("geo-db") {
				ccfg = ccfg.WithGeoDBPath(f.geoDB)
			}

			proxies, err := proxy.ParseFile(args[0], typ)
			if err != nil {
				return err
			}

			ch, err := checker.New(ccfg)
			if err != nil {
				return err
			}
			defer ch.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "Loaded %d proxies from %s\n", len(proxies), args[0])
			fmt.Fprintf(errOut, "Checking with concurrency %d, timeout %s\nTest URL: %s\n\n",
				ch.Config().Concurrency, ch.Config().Timeout, ch.Config().TestURL)

			working, rest := runChecks(ctx, ch, proxies, f.quiet)
			fmt.Fprintf(errOut, "Results: %d good, %d bad\n", len(working), len(rest))

			if err := saveResults(cmd, f.good, "good", working); err != nil {
				return err
			}
			if err := saveResults(cmd, f.bad, "bad", rest); err != nil {
				return err
			}
			if f.report != "" {
				all := append(append([]checker.Result{}, working...), rest...)
				if err := writeReport(f.report, checkReport{Results: all, Groups: countGroups(all)}); err != nil {
					return err
				}
				fmt.Fprintf(errOut, "Wrote report to %s\n", f.report)
			}

			if len(working) > 0 {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Working proxies:")
				for _, r := range working {
					fmt.Fprintf(out, "  %s (%dms)%s\n", r.Proxy.FullString(), r.LatencyMs, geoSuffix(r))
				}
			}
			return ctx.Err()
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.good, "good", "g", "", "write working proxies to this file")
	fl.StringVarP(&f.bad, "bad", "b", "", "write failed and timed out proxies to this file")
	fl.StringVarP(&f.typeName, "type", "t", "http", "default proxy type (http, https, socks4, socks5)")
	fl.IntVarP(&f.concurrency, "concurrency", "n", checker.DefaultConcurrency, "maximum probes in flight")
	fl.DurationVar(&f.timeout, "timeout", checker.DefaultTimeout, "per-probe timeout")
	fl.StringVar(&f.testURL, "test-url", checker.DefaultTestURL, "URL every proxy must fetch")
	fl.StringVar(&f.geoDB, "geo-db", "", "MaxMind city database for geo lookups")
	fl.StringVar(&f.report, "report", "", "write every result to a .json or .yaml report")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

// runChecks drains the result stream, driving the progress bar as results
// arrive. Working results come back fastest first.
func runChecks(ctx context.Context, ch *checker.Checker, proxies []proxy.Proxy, quiet bool) (working, rest []checker.Result) {
	bar := newBar(len(proxies), "checking", quiet)
	for r := range ch.CheckProxiesStream(ctx, proxies) {
		if r.IsWorking() {
			working = append(working, r)
		} else {
			rest = append(rest, r)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	sort.SliceStable(working, func(i, j int) bool {
		return working[i].LatencyMs < working[j].LatencyMs
	})
	return working, rest
}

func newBar(total int, description string, quiet bool) *progressbar.ProgressBar {
	if quiet {
		return progressbar.DefaultSilent(int64(total), description)
	}
	return progressbar.Default(int64(total), description)
}

func saveResults(cmd *cobra.Command, path, label string, results []checker.Result) error {
	if path == "" {
		return nil
	}
	proxies := make([]proxy.Proxy, len(results))
	for i, r := range results {
		proxies[i] = r.Proxy
	}
	if err := proxy.SaveToFile(proxies, path, true); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d %s proxies to %s\n", len(proxies), label, path)
	return nil
}

func geoSuffix(r checker.Result) string {
	if r.Geo == nil || r.Geo.IsEmpty() {
		return ""
	}
	return " [" + r.Geo.ShortDisplay() + "]"
}

type checkReport struct {
	Groups  map[string]int   `json:"groups" yaml:"groups"`
	Results []checker.Result `json:"results" yaml:"results"`
}

func countGroups(results []checker.Result) map[string]int {
	counts := make(map[string]int)
	for status, group := range checker.GroupByStatus(results) {
		counts[status.String()] = len(group)
	}
	return counts
}
