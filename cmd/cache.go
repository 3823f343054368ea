package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/plateful/pricing-engine/internal/configstore"
	"github.com/plateful/pricing-engine/internal/monitoring"
)

var cacheAddr string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Config cache operations",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print config cache and quote counters from a running server",
	RunE:  runCacheStats,
}

func init() {
	cacheStatsCmd.Flags().StringVar(&cacheAddr, "addr", "http://localhost:8080", "server address")
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}

// statsResponse mirrors the /v1/stats payload.
type statsResponse struct {
	Quotes monitoring.MetricsSnapshot `json:"quotes"`
	Cache  configstore.Stats          `json:"cache"`
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, cacheAddr+"/v1/stats", nil)
	if err != nil {
		return eris.Wrap(err, "cache stats: build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "cache stats: fetch %s", cacheAddr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("cache stats: server returned %s", resp.Status)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return eris.Wrap(err, "cache stats: decode response")
	}

	printStats(stats)
	return nil
}

func printStats(stats statsResponse) {
	p := message.NewPrinter(language.English)

	fmt.Println("Config cache")
	p.Fprintf(os.Stdout, "  Entries:      %d\n", stats.Cache.Entries)
	p.Fprintf(os.Stdout, "  Hits:         %d\n", stats.Cache.Hits)
	p.Fprintf(os.Stdout, "  Misses:       %d\n", stats.Cache.Misses)
	p.Fprintf(os.Stdout, "  Hit rate:     %.1f%%\n", stats.Cache.HitRate*100)

	fmt.Println("Quotes")
	p.Fprintf(os.Stdout, "  Issued:       %d\n", stats.Quotes.QuotesTotal)
	p.Fprintf(os.Stdout, "  Surged:       %d\n", stats.Quotes.SurgeQuotes)
	p.Fprintf(os.Stdout, "  Third-party:  %d\n", stats.Quotes.ThirdPartyQuotes)
	p.Fprintf(os.Stdout, "  Avg latency:  %.1f ms\n", stats.Quotes.AvgQuoteMillis)
	for name, n := range stats.Quotes.RuleFailures {
		p.Fprintf(os.Stdout, "  Failures %-12s %d\n", name+":", n)
	}
}
