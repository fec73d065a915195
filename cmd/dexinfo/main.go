// Command dexinfo lists the segments of dex containers: location,
// format version, size, checksum, and content digest per segment.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/halvard/dex"
)

type config struct {
	verify         bool
	verifyChecksum bool
	checksumsOnly  bool
	jobs           int
	verbose        bool
}

func main() {
	var cfg config
	flag.BoolVar(&cfg.verify, "verify", false, "structurally verify each segment")
	flag.BoolVar(&cfg.verifyChecksum, "verify-checksum", false, "recompute and check each segment's checksum")
	flag.BoolVar(&cfg.checksumsOnly, "checksums", false, "list checksums from metadata only, without opening segments")
	flag.IntVar(&cfg.jobs, "jobs", 4, "number of containers to inspect concurrently")
	flag.BoolVar(&cfg.verbose, "v", false, "enable debug logging")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: dexinfo [flags] <container>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(cfg, paths); err != nil {
		fmt.Fprintln(os.Stderr, "dexinfo:", err)
		os.Exit(1)
	}
}

func run(cfg config, paths []string) error {
	opts := []dex.Option{
		dex.WithVerify(cfg.verify),
		dex.WithVerifyChecksum(cfg.verifyChecksum),
	}
	if cfg.verbose {
		opts = append(opts, dex.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}
	loader := dex.New(opts...)

	// Each container is an independent call; fan out and serialize output.
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(cfg.jobs)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			report, err := inspect(loader, cfg, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			defer mu.Unlock()
			os.Stdout.WriteString(report)
			return nil
		})
	}
	return g.Wait()
}

func inspect(loader *dex.Loader, cfg config, path string) (string, error) {
	if cfg.checksumsOnly {
		sums, err := loader.MultiDexChecksums(path)
		if err != nil {
			return "", err
		}
		out := ""
		for _, e := range sums.Entries {
			out += fmt.Sprintf("%08x  %s\n", e.Checksum, e.Location)
		}
		if !sums.AllUncompressed {
			out += fmt.Sprintf("# %s contains compressed entries\n", path)
		}
		return out, nil
	}

	files, err := loader.OpenPath(path)
	if err != nil {
		return "", err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	sort.Slice(files, func(i, j int) bool { return files[i].Ordinal() < files[j].Ordinal() })
	out := ""
	for _, f := range files {
		out += fmt.Sprintf("%s\n  version %s, %d bytes, checksum %08x\n  %s\n",
			f.Location(), f.Header().Version(), f.Size(), f.Checksum(), f.Digest())
	}
	return out, nil
}
