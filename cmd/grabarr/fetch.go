package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/grabarr/grabarr/internal/catalog"
	"github.com/grabarr/grabarr/internal/config"
	"github.com/grabarr/grabarr/internal/fetch"
	"github.com/grabarr/grabarr/internal/mediainfo"
	"github.com/grabarr/grabarr/internal/pathing"
	"github.com/grabarr/grabarr/internal/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// fetchItem is one entry of the items file: a release, one of its files, and
// the session cookies the source requires, if any.
type fetchItem struct {
	ReleaseUUID string                 `json:"release_uuid"`
	File        catalog.FileDescriptor `json:"file"`
	Cookies     []itemCookie           `json:"cookies,omitempty"`
}

type itemCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (it fetchItem) toItem() pipeline.Item {
	item := pipeline.Item{ReleaseUUID: it.ReleaseUUID, File: it.File}
	for _, c := range it.Cookies {
		item.Cookies = append(item.Cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return item
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <items.json>",
	Short: "Download and record the assets listed in an items file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	items, err := readItems(args[0])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		logger.Info("nothing to fetch")
		return nil
	}

	db, err := catalog.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	store := catalog.NewStore(db)

	pipe := buildPipeline(cfg, store, logger)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Fetch.Concurrency)

	var failed atomic.Int64
	for _, item := range items {
		item := item
		g.Go(func() error {
			if _, err := pipe.Process(ctx, item.toItem()); err != nil {
				// Per-item failures are logged and counted; they do not stop
				// the batch.
				failed.Add(1)
				logger.Error("item failed",
					"release", item.ReleaseUUID, "url", item.File.URL, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d items failed", n, len(items))
	}
	logger.Info("fetch complete", "items", len(items))
	return nil
}

// buildPipeline assembles the strategy dispatch table and the pipeline from
// configuration. Adaptive sources always go through the stall/retry
// supervisor; plain URLs use the configured strategy.
func buildPipeline(cfg *config.Config, store catalog.Catalog, logger *slog.Logger) *pipeline.Pipeline {
	hls := fetch.NewHLSFetcher(fetch.HLSConfig{
		Binary:              cfg.Downloaders.HLS.Binary,
		Retries:             cfg.Downloaders.HLS.Retries,
		ConcurrentFragments: cfg.Downloaders.HLS.ConcurrentFragments,
		SocketTimeout:       time.Duration(cfg.Downloaders.HLS.SocketTimeoutSecs) * time.Second,
		ThrottledRate:       cfg.Downloaders.HLS.ThrottledRate,
	}, logger.With("component", "hls"))

	supervisor := fetch.NewSupervisor(hls, fetch.SupervisorConfig{
		MaxRetries:   cfg.Fetch.MaxRetries,
		RetryDelay:   cfg.Fetch.RetryDelay(),
		StallTimeout: cfg.Fetch.StallTimeout(),
	}, logger.With("component", "supervisor"))

	aria2 := fetch.NewAria2Fetcher(fetch.Aria2Config{
		Binary:         cfg.Downloaders.Aria2.Binary,
		MaxConnections: cfg.Downloaders.Aria2.MaxConnections,
		Splits:         cfg.Downloaders.Aria2.Splits,
		MinSplitSize:   cfg.Downloaders.Aria2.MinSplitSize,
		Retries:        cfg.Downloaders.Aria2.Retries,
	}, logger.With("component", "aria2"))

	var plain fetch.Strategy = fetch.NewDirectFetcher(cfg.Fetch.DirectTimeout(), logger.With("component", "direct"))
	if cfg.Downloaders.Plain == "aria2" {
		plain = aria2
	}

	strategies := map[fetch.Kind]fetch.Strategy{
		fetch.KindAdaptive: supervisor,
		fetch.KindDirect:   plain,
	}

	resolver := pathing.NewResolver(store, cfg.Storage.Root)
	extractor := mediainfo.NewExtractor(cfg.Tools.Hasher, cfg.Tools.Prober, logger.With("component", "mediainfo"))

	return pipeline.New(store, resolver, strategies, extractor,
		pipeline.Config{MinFreeGiB: cfg.Storage.MinFreeGiB},
		logger.With("component", "pipeline"))
}

func readItems(path string) ([]fetchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading items file: %w", err)
	}
	var items []fetchItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing items file: %w", err)
	}
	return items, nil
}
