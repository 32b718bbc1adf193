// itchpipe is the two-stage ITCH order-book reconstruction pipeline's
// CLI entry point: one binary, two subcommands, grounded on
// cmd/itch-analyzer's options struct and banner-printing pattern,
// generalized from single-file analysis to the sharded two-stage
// pipeline described in the package docs of grouper and reconstruct.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/marketdata/itchpipe/bytestream"
	"github.com/marketdata/itchpipe/config"
	"github.com/marketdata/itchpipe/grouper"
	"github.com/marketdata/itchpipe/itch"
	"github.com/marketdata/itchpipe/layout"
	"github.com/marketdata/itchpipe/reconstruct"
	"github.com/marketdata/itchpipe/shard"
	"github.com/marketdata/itchpipe/telemetry"
	"github.com/marketdata/itchpipe/walcheckpoint"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath  string
	verbose     bool
	mode        string
	localShards int
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <group|reconstruct> <date> <shard-count> <shard-rank> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "itchpipe - ITCH 5.0 order-book reconstruction pipeline\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	pflag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s group 073024 4 0 --config config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s reconstruct 073024 4 0 --mode pedantic\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s group 073024 4 0 --local-shards 4     # fan out all 4 shards from one process\n", os.Args[0])
}

func main() {
	var opts options
	pflag.StringVar(&opts.configPath, "config", "config.yaml", "path to the pipeline's YAML configuration file")
	pflag.BoolVar(&opts.verbose, "verbose", false, "print per-shard progress to stderr")
	pflag.StringVar(&opts.mode, "mode", "", "override config mode: pedantic or permissive")
	pflag.IntVar(&opts.localShards, "local-shards", 0, "fan out this many shards from this process via errgroup, ignoring shard-rank")
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) != 4 {
		usage()
		os.Exit(1)
	}

	cmd, date, countStr, rankStr := args[0], args[1], args[2], args[3]

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "itchpipe: %v\n", err)
		os.Exit(1)
	}
	if opts.mode != "" {
		cfg.Mode = opts.mode
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "itchpipe: %v\n", err)
		os.Exit(1)
	}

	count, rank, err := parseShardArgs(countStr, rankStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "itchpipe: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	run := func(rank int) error {
		a, err := shard.New(count, rank)
		if err != nil {
			return err
		}
		switch cmd {
		case "group":
			return runGroup(cfg, date, a, logger, opts.verbose)
		case "reconstruct":
			return runReconstruct(cfg, date, a, logger, opts.verbose)
		default:
			return fmt.Errorf("unknown subcommand %q", cmd)
		}
	}

	if opts.localShards <= 0 {
		if err := run(rank); err != nil {
			fmt.Fprintf(os.Stderr, "itchpipe: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var g errgroup.Group
	for r := 0; r < opts.localShards; r++ {
		r := r
		g.Go(func() error { return run(r) })
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "itchpipe: %v\n", err)
		os.Exit(1)
	}
}

func parseShardArgs(countStr, rankStr string) (count, rank int, err error) {
	if _, err = fmt.Sscanf(countStr, "%d", &count); err != nil {
		return 0, 0, fmt.Errorf("invalid shard-count %q: %w", countStr, err)
	}
	if _, err = fmt.Sscanf(rankStr, "%d", &rank); err != nil {
		return 0, 0, fmt.Errorf("invalid shard-rank %q: %w", rankStr, err)
	}
	return count, rank, nil
}

func runGroup(cfg *config.Config, date string, a shard.Assignment, logger *slog.Logger, verbose bool) error {
	start := time.Now()
	path := layout.BinaryFile(cfg.DataRoot, date, cfg.Compression)
	stream, err := bytestream.Open(path)
	if err != nil {
		return fmt.Errorf("group: open %s: %w", path, err)
	}
	defer stream.Close()

	g := grouper.New(date, cfg.DataRoot, a)
	g.CacheMax = cfg.CacheMax

	var checkpointer *walcheckpoint.Checkpointer
	if cfg.Checkpoint.Enabled {
		dir := layout.CheckpointDir(cfg.Checkpoint.Dir, date, a.Rank, a.Count)
		checkpointer, err = walcheckpoint.NewCheckpointer(dir)
		if err != nil {
			return fmt.Errorf("group: checkpointer: %w", err)
		}
		cp, err := checkpointer.LoadLatest()
		if err != nil {
			return fmt.Errorf("group: load checkpoint: %w", err)
		}
		if cp != nil {
			if err := stream.Skip(cp.Offset); err != nil {
				return fmt.Errorf("group: resume to offset %d: %w", cp.Offset, err)
			}
			g.Restore(cp.Groups, toGrouperMatches(cp.Matches), cp.Tickers, cp.Position)
			logger.Info("resumed from checkpoint", "date", date, "shard_rank", a.Rank, "offset", cp.Offset)
		}
	}

	decoder := itch.NewDecoder(stream, g)

	stats := &telemetry.RunStats{Start: start}
	frames := 0
	for !g.Done {
		if err := decoder.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("group: %w", err)
		}
		frames++
		if checkpointer != nil && frames%cfg.Checkpoint.EveryFrames == 0 {
			if err := saveCheckpoint(g, checkpointer, stream.Offset()); err != nil {
				return fmt.Errorf("group: checkpoint: %w", err)
			}
		}
	}
	if err := g.FlushAll(); err != nil {
		return fmt.Errorf("group: flush: %w", err)
	}

	stats.BytesRead = stream.Offset()
	stats.TickersOwned = len(g.Tickers())
	stats.Elapsed = time.Since(start)
	stats.MissingReferenceWarnings = g.UnknownRefs
	stats.OverdeleteWarnings = g.OverdeleteWarnings
	stats.IOErrorRetries = g.IOErrorRetries

	if verbose {
		stats.Print(fmt.Sprintf("stage 1 (group) shard %d/%d, %s", a.Rank, a.Count, date))
	}
	logger.Info("stage1 complete", "date", date, "shard_rank", a.Rank, "shard_count", a.Count,
		"tickers", stats.TickersOwned, "bytes_read", stats.BytesRead, "elapsed", stats.Elapsed,
		"io_error_retries", stats.IOErrorRetries)
	return nil
}

// toGrouperMatches converts a loaded checkpoint's match table into the
// shape grouper.Restore expects.
func toGrouperMatches(matches map[uint64]walcheckpoint.MatchRef) map[uint64]grouper.MatchRef {
	out := make(map[uint64]grouper.MatchRef, len(matches))
	for num, ref := range matches {
		out[num] = grouper.MatchRef{ORN: ref.ORN, LogIndex: ref.LogIndex}
	}
	return out
}

// toCheckpointMatches is the inverse of toGrouperMatches, used when
// snapshotting live grouper state into a Checkpoint to save.
func toCheckpointMatches(matches map[uint64]grouper.MatchRef) map[uint64]walcheckpoint.MatchRef {
	out := make(map[uint64]walcheckpoint.MatchRef, len(matches))
	for num, ref := range matches {
		out[num] = walcheckpoint.MatchRef{ORN: ref.ORN, LogIndex: ref.LogIndex}
	}
	return out
}

// saveCheckpoint flushes every closed group's buffered rows to disk first,
// so a crash immediately after never loses output that a checkpoint would
// otherwise claim was already safe, then snapshots the grouper's live
// state and persists it.
func saveCheckpoint(g *grouper.StreamGrouper, checkpointer *walcheckpoint.Checkpointer, offset int64) error {
	if err := g.FlushCaches(); err != nil {
		return fmt.Errorf("flush caches: %w", err)
	}
	groups, matches, tickers, position := g.Snapshot()
	return checkpointer.Save(walcheckpoint.Checkpoint{
		Offset:   offset,
		Groups:   groups,
		Matches:  toCheckpointMatches(matches),
		Tickers:  tickers,
		Position: position,
	})
}

func runReconstruct(cfg *config.Config, date string, a shard.Assignment, logger *slog.Logger, verbose bool) error {
	start := time.Now()
	tickers, err := discoverOwnedTickers(cfg.DataRoot, date, a)
	if err != nil {
		return fmt.Errorf("reconstruct: discover tickers: %w", err)
	}

	r := reconstruct.New(cfg.DataRoot, date, cfg.BookMode())
	if err := r.ProcessTickers(tickers); err != nil {
		return fmt.Errorf("reconstruct: %w", err)
	}

	elapsed := time.Since(start)
	if verbose {
		stats := &telemetry.RunStats{Elapsed: elapsed, TickersOwned: len(tickers), IOErrorRetries: r.IOErrorRetries}
		stats.Print(fmt.Sprintf("stage 2 (reconstruct) shard %d/%d, %s", a.Rank, a.Count, date))
	}
	logger.Info("stage2 complete", "date", date, "shard_rank", a.Rank, "shard_count", a.Count,
		"tickers", len(tickers), "elapsed", elapsed, "io_error_retries", r.IOErrorRetries)
	return nil
}

// discoverOwnedTickers lists every grouped-CSV file already written for
// date and assigns a subset to this shard by file size, per spec.md
// §4.7's stage-2 partitioning rule.
func discoverOwnedTickers(root, date string, a shard.Assignment) ([]string, error) {
	dir := layout.GroupedDir(root, date)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	tickerOf := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ticker, ok := layout.TickerFromGroupedFilename(e.Name(), date)
		if !ok {
			continue
		}
		full := filepath.Join(dir, e.Name())
		paths = append(paths, full)
		tickerOf[full] = ticker
	}

	infos, err := shard.StatFiles(paths)
	if err != nil {
		return nil, err
	}
	owned := a.AssignFiles(infos)

	out := make([]string, 0, len(owned))
	for _, f := range owned {
		out = append(out, tickerOf[f.Path])
	}
	return out, nil
}
