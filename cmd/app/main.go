package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/ocrparse"
	"github.com/local/ocrparse/internal/archive"
	cfgpkg "github.com/local/ocrparse/internal/config"
	logpkg "github.com/local/ocrparse/internal/logger"
	"github.com/local/ocrparse/internal/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	files := os.Args[1:]
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: app <file> [file...]")
		os.Exit(2)
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			addr := ":" + cfg.Metrics.Port
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Info().Str("addr", addr).Msg("metrics endpoint listening")
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	client, err := ocrparse.New(ocrparse.Config{
		APIKey:                cfg.Service.APIKey,
		BaseURL:               cfg.Service.BaseURL,
		Timeout:               cfg.Service.Timeout,
		RequestDelay:          cfg.Service.RequestDelay,
		DisableRateLimitRetry: cfg.Service.DisableRetry,
		MaxRateLimitRetries:   cfg.Service.MaxRateLimitRetries,
		RateLimitRetryDelay:   cfg.Service.RateLimitRetryDelay,
		ReturnLayoutInfo:      cfg.Service.ReturnLayoutInfo,
		MaxPages:              cfg.Service.MaxPages,
		PacingRedisURL:        cfg.Service.PacingRedisURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid client configuration")
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var s3arch *archive.S3Archiver
	if cfg.Archive.S3Bucket != "" {
		s3arch, err = archive.NewS3(ctx, cfg.Archive.S3Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init s3 archiver")
		}
	}

	failed := 0
	for _, file := range files {
		if ctx.Err() != nil {
			log.Warn().Msg("interrupted, stopping")
			break
		}
		if err := processFile(ctx, client, s3arch, cfg, file); err != nil {
			log.Error().Err(err).Str("file", file).Msg("parse failed")
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func processFile(ctx context.Context, client *ocrparse.Client, s3arch *archive.S3Archiver, cfg cfgpkg.Config, file string) error {
	res, err := client.Parse(ctx, file, cfg.Service.ConcatenatePages)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	p, err := archive.SaveLocal(cfg.Archive.Dir, base+".md", []byte(res.Markdown))
	if err != nil {
		return err
	}
	log.Info().Str("file", file).Str("result", p).Msg("markdown saved")

	var layoutJSON []byte
	if len(res.PagesLayout) > 0 {
		layoutJSON, err = json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		if p, err = archive.SaveLocal(cfg.Archive.Dir, base+"_layout.json", layoutJSON); err != nil {
			return err
		}
		log.Info().Str("file", file).Str("result", p).Msg("layout info saved")
	}

	if s3arch != nil {
		key := "results/" + base + ".md"
		if err := s3arch.Upload(ctx, key, []byte(res.Markdown), "text/markdown", cfg.Archive.Password); err != nil {
			return err
		}
		if layoutJSON != nil {
			key = "results/" + base + "_layout.json"
			if err := s3arch.Upload(ctx, key, layoutJSON, "application/json", cfg.Archive.Password); err != nil {
				return err
			}
		}
	}
	return nil
}
