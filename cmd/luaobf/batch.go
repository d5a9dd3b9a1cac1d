package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"luaobf/internal/cache"
	"luaobf/internal/obfuscate"
	"luaobf/internal/options"
	"luaobf/internal/srcwalk"
)

// batchConfig drives DIR mode.
type batchConfig struct {
	Dir, OutDir  string
	MaxFileBytes int64
	Exclude      []string
	Seed         uint64
	Check        bool
	Incremental  bool
	Tool         string
}

type batchSummary struct {
	Files, Built, Skipped, Failed, Bytes int
}

// runBatch obfuscates every Lua source under cfg.Dir into the same relative
// path under cfg.OutDir. Files are processed in path order; one failure does
// not stop the rest. With cfg.Incremental, sources whose content, options and
// artifact are unchanged since the last run are left alone, except in gated
// builds.
func runBatch(ctx context.Context, cfg batchConfig, opts options.Options, base obfuscate.Config, log *slog.Logger) (batchSummary, error) {
	var sum batchSummary
	absDir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return sum, err
	}
	absOut, err := filepath.Abs(cfg.OutDir)
	if err != nil {
		return sum, err
	}
	if absDir == absOut {
		return sum, fmt.Errorf("--out-dir must differ from --dir")
	}
	files, err := srcwalk.Collect(srcwalk.Config{
		Root:         absDir,
		Exclude:      cfg.Exclude,
		MaxFileBytes: cfg.MaxFileBytes,
		UseGitignore: true,
	})
	if err != nil {
		return sum, fmt.Errorf("collect %s: %w", cfg.Dir, err)
	}
	log.Debug("collected sources", "dir", cfg.Dir, "files", len(files))

	optionsKey, err := cache.Key(opts)
	if err != nil {
		return sum, err
	}
	indexDir := filepath.Join(absOut, cache.DirName)
	var prev *cache.Index
	if cfg.Incremental {
		if prev, err = cache.Load(indexDir); err != nil {
			log.Warn("ignoring unreadable build index", "err", err)
			prev = nil
		}
		if !prev.Compatible(cfg.Tool, optionsKey) {
			prev = nil
		}
		// Gated artifacts carry a token that expires, so reuse would ship stale
		// ones.
		if opts.Gated() && prev != nil {
			log.Debug("gated build, rebuilding every source")
			prev = nil
		}
	}
	next := cache.New(cfg.Tool, optionsKey)

	outPrefix := absOut + string(filepath.Separator)
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if strings.HasPrefix(f.AbsPath, outPrefix) {
			continue
		}
		sum.Files++
		dst := filepath.Join(absOut, filepath.FromSlash(f.RelPath))
		src, err := os.ReadFile(f.AbsPath)
		if err != nil {
			sum.Failed++
			log.Error("read source", "file", f.RelPath, "err", err)
			continue
		}
		srcHash := cache.Hash(src)
		if prev.Fresh(f.RelPath, srcHash, dst) {
			e, _ := prev.Lookup(f.RelPath)
			next.Put(e)
			sum.Skipped++
			log.Debug("unchanged", "file", f.RelPath)
			continue
		}

		fileCfg := base
		if cfg.Seed != 0 {
			fileCfg.Rand = rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
		}
		out, err := batchOne(ctx, src, dst, opts, fileCfg, cfg.Check)
		if err != nil {
			sum.Failed++
			log.Error("obfuscate", "file", f.RelPath, "err", err)
			continue
		}
		next.Put(cache.Entry{Path: f.RelPath, SourceHash: srcHash, OutputHash: cache.Hash([]byte(out))})
		sum.Built++
		sum.Bytes += len(out)
		log.Debug("wrote", "file", f.RelPath, "bytes", len(out))
	}

	if cfg.Incremental {
		if err := cache.Save(indexDir, next); err != nil {
			return sum, fmt.Errorf("save build index: %w", err)
		}
	}
	return sum, nil
}

func batchOne(ctx context.Context, src []byte, dst string, opts options.Options, cfg obfuscate.Config, check bool) (string, error) {
	res, err := obfuscate.Obfuscate(ctx, string(src), opts, cfg)
	if err != nil {
		return "", err
	}
	if check {
		if err := checkArtifact(ctx, src, res); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, []byte(res.Output), 0o644); err != nil {
		return "", err
	}
	return res.Output, nil
}
