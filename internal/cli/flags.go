package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/pipeline"
)

// fetchFlags are the HTTP and concurrency overrides shared by every command
// that verifies links. A flag only wins over config when it was set explicitly.
type fetchFlags struct {
	workers       int
	timeout       time.Duration
	userAgent     string
	maxRetries    int
	httpProxy     string
	httpsProxy    string
	noProxy       string
	respectRobots bool
	noCache       bool
}

func (f *fetchFlags) register(cmd *cobra.Command) {
	def := model.DefaultConfig()
	flags := cmd.Flags()

	flags.IntVar(&f.workers, "workers", def.Concurrency.Workers, "concurrent link checks per report")
	flags.DurationVar(&f.timeout, "fetch-timeout", def.HTTP.Timeout, "timeout for a single page fetch")
	flags.StringVar(&f.userAgent, "ua", def.HTTP.UserAgent, "HTTP User-Agent")
	flags.IntVar(&f.maxRetries, "max-retries", def.HTTP.MaxRetries, "extra fetch attempts on 429/5xx and connection errors")
	flags.StringVar(&f.httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.StringVar(&f.httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	flags.StringVar(&f.noProxy, "no-proxy", "", "comma-separated hosts that bypass the proxy")
	flags.BoolVar(&f.respectRobots, "respect-robots", def.HTTP.RespectRobots, "skip pages disallowed by robots.txt")
	flags.BoolVar(&f.noCache, "no-cache", false, "fetch repeated URLs again instead of reusing the page")
}

func (f *fetchFlags) apply(cmd *cobra.Command, cfg *model.Config) {
	changed := cmd.Flags().Changed

	if changed("workers") {
		cfg.Concurrency.Workers = f.workers
	}
	if changed("fetch-timeout") {
		cfg.HTTP.Timeout = f.timeout
	}
	if changed("ua") {
		cfg.HTTP.UserAgent = f.userAgent
	}
	if changed("max-retries") {
		cfg.HTTP.MaxRetries = f.maxRetries
	}
	if changed("http-proxy") {
		cfg.HTTP.HTTPProxy = f.httpProxy
	}
	if changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = f.httpsProxy
	}
	if changed("no-proxy") {
		cfg.HTTP.NoProxy = f.noProxy
	}
	if changed("respect-robots") {
		cfg.HTTP.RespectRobots = f.respectRobots
	}
	if changed("no-cache") {
		cfg.Cache.Enabled = !f.noCache
	}
}

// openReport turns a path on disk into a pipeline document
func openReport(path string) (*pipeline.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open report: %s is a directory", path)
	}
	return &pipeline.Document{Path: path, Name: filepath.Base(path)}, nil
}
