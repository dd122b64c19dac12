package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MimeLyc/whispercard/internal/actions"
	"github.com/MimeLyc/whispercard/internal/anki"
	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/export"
	"github.com/MimeLyc/whispercard/internal/extract"
	"github.com/MimeLyc/whispercard/internal/ffmpeg"
	"github.com/MimeLyc/whispercard/internal/httpapi"
	"github.com/MimeLyc/whispercard/internal/media"
	"github.com/MimeLyc/whispercard/internal/persistence"
	"github.com/MimeLyc/whispercard/internal/subtitle"
	"github.com/MimeLyc/whispercard/internal/timeutil"
	"github.com/MimeLyc/whispercard/pkg/icron"
	"github.com/MimeLyc/whispercard/pkg/log"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// staleRetention is how long untouched subtitle payloads are kept around
// before the maintenance job prunes them.
const staleRetention = 90 * 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to load .env file: %v", err)
	}
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database: %v", err)
	}
	defer store.Close()

	subtitles := subtitle.NewStore(cfg, store)

	scratch := os.Getenv("SCRATCH_DIR")
	if scratch == "" {
		scratch = filepath.Join(os.TempDir(), "whispercard")
	}
	toolchain := ffmpeg.NewExecToolchain(cfg.FFMPEGBinary, scratch)

	transcoder := extract.NewTranscoder(cfg, toolchain)
	recorder := extract.NewRecorder(cfg, hostTap{})
	engine := extract.NewEngine(cfg, transcoder, recorder)

	source := media.NewSource(cfg, toolchain, transcoder, subtitles)

	client := anki.NewClient(cfg.AnkiURL, cfg.AnkiKey, time.Duration(cfg.AnkiTimeout)*time.Second)
	exporter := export.NewExporter(cfg, client, engine, source)

	dispatcher := actions.NewDispatcher(subtitles, hostPlayback{}, hostClipboard{}, hostEditor{}, exporter, client)
	exporter.OnMergeExported = dispatcher.ClearMergeSelection

	api := httpapi.NewServer(subtitles, source, dispatcher, httpapi.WithPayloadStore(store))
	exporter.OnProgress = func(percent int) {
		log.Debug("Export progress: %d%%", percent)
		api.PublishProgress(percent)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.MaintenanceCron, func() {
		cutoff := time.Now().Add(-staleRetention)
		removed, err := store.DeleteStale(context.Background(), cutoff)
		if err != nil {
			log.Error("Persistence maintenance failed: %v", err)
			return
		}
		log.Info("Persistence maintenance removed %d document(s) untouched since %s", removed, timeutil.DateString(cutoff))
	}); err != nil {
		log.Fatal("Failed to schedule maintenance: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if trigger, err := icron.GetTriggerInfo(cfg.MaintenanceCron, time.Now()); err == nil {
		log.Info("Next maintenance run at %s", trigger.Next.Format(time.RFC3339))
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8130"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- api.ListenAndServe(addr)
	}()

	log.Info("whispercard started (addr=%s, db=%s, anki=%s, processor=%s)", addr, cfg.DBPath, cfg.AnkiURL, cfg.ExportAudioProcessor)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown: %v", err)
	}
	log.Info("Shutting down")
}
