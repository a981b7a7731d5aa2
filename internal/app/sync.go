package app

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/solarlog/vbusmirror/cache"
	"github.com/solarlog/vbusmirror/convert"
	"github.com/solarlog/vbusmirror/pkg/model"
	"github.com/solarlog/vbusmirror/pkg/store/sqlite"
	"github.com/solarlog/vbusmirror/remote"
	"github.com/solarlog/vbusmirror/resolve"
)

// RunSync processes every configured host end to end: list the remote log
// index, materialize captures, then convert stale buckets. Hosts are handled
// sequentially; the first unrecoverable error aborts the run.
func RunSync(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, host := range cfg.Hosts {
		if err := syncHost(ctx, cfg, host); err != nil {
			return err
		}
	}
	return nil
}

// RunConvert re-runs resolution and conversion against the local cache for
// every configured host, without touching the network.
func RunConvert(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, host := range cfg.Hosts {
		hostDir := filepath.Join(cfg.Dir, host)
		idx, err := sqlite.Open(filepath.Join(hostDir, sqlite.IndexFilename))
		if err != nil {
			return err
		}
		err = convertHost(cfg, host, idx)
		idx.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func syncHost(ctx context.Context, cfg *Config, host string) error {
	log := cfg.Logger.With("host", host)
	log.Info("listing remote log index")

	codes, err := remote.ListDateCodes(ctx, cfg.Client, host)
	if err != nil {
		return err
	}
	log.Debug("remote index listed", "captures", len(codes))

	hostDir := filepath.Join(cfg.Dir, host)
	mgr := &cache.Manager{
		Client: cfg.Client,
		Host:   host,
		Dir:    hostDir,
		Logger: log,
		Clock:  cfg.Clock,
	}
	if err := mgr.EnsureDir(); err != nil {
		return err
	}

	idx, err := sqlite.Open(filepath.Join(hostDir, sqlite.IndexFilename))
	if err != nil {
		return err
	}
	defer idx.Close()
	mgr.Index = idx

	downloaded := 0
	for _, dc := range codes {
		got, err := mgr.Sync(ctx, dc)
		if err != nil {
			return err
		}
		if got {
			downloaded++
		}
	}
	log.Info("cache synced", "captures", len(codes), "downloaded", downloaded)

	if err := idx.SetMeta("last_sync_at", cfg.Clock.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	return convertHost(cfg, host, idx)
}

// convertHost plans the host's buckets and regenerates the stale ones.
func convertHost(cfg *Config, host string, idx *sqlite.Index) error {
	log := cfg.Logger.With("host", host)
	hostDir := filepath.Join(cfg.Dir, host)

	planner := &resolve.Planner{Dir: hostDir, Location: cfg.location, Strategy: cfg.Strategy}
	plan, err := planner.Plan()
	if err != nil {
		return err
	}

	conv, err := convert.New(cfg.Strategy, convert.Options{
		Spec:      cfg.Spec,
		Location:  cfg.location,
		Retention: cfg.Retention,
		Filter:    cfg.filterFn,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	for _, bucket := range plan {
		if !bucket.Stale {
			continue
		}
		datecode := bucket.Date.String()
		log.Info("converting bucket", "datecode", datecode, "sources", len(bucket.Sources))

		// Sources are concatenated in ascending datecode order; bytes from
		// the adjacent day keep continuity-dependent decoding state correct,
		// while the timestamp bound keeps their records out of the output.
		var data []byte
		for _, src := range bucket.Sources {
			path := planner.CapturePath(src)
			chunk, err := os.ReadFile(path)
			if err != nil {
				return &model.FilesystemError{Op: "read", Path: path, Err: err}
			}
			data = append(data, chunk...)
		}

		res, err := conv.Convert(data, bucket)
		if err != nil {
			return err
		}
		if res.Write {
			path := planner.OutputPath(bucket.Date)
			if err := os.WriteFile(path, res.Output, 0o644); err != nil {
				return &model.FilesystemError{Op: "write", Path: path, Err: err}
			}
			log.Debug("bucket written", "datecode", datecode, "rows", res.Rows)
		}

		sources := make([]string, len(bucket.Sources))
		for i, src := range bucket.Sources {
			sources[i] = src.String()
		}
		err = idx.RecordBucket(model.BucketState{
			DateCode:    datecode,
			Strategy:    string(cfg.Strategy),
			Sources:     sources,
			RowCount:    res.Rows,
			Written:     res.Write,
			ConvertedAt: cfg.Clock.Now(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
