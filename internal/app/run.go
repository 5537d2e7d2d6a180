// Package app wires storage, sessions, preview and the HTTP viewer into one
// running studio.
package app

import (
	"context"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/petervdpas/cipherstudio/internal/config"
	"github.com/petervdpas/cipherstudio/internal/editor"
	"github.com/petervdpas/cipherstudio/internal/preview"
	"github.com/petervdpas/cipherstudio/internal/storage"
	"github.com/petervdpas/cipherstudio/internal/util"
	"github.com/petervdpas/cipherstudio/internal/viewer"
)

var log = logging.Logger("app")

type Options struct {
	Dir     string
	CfgPath string
	Cfg     config.Config

	// OpenBrowser opens the viewer URL once it accepts connections.
	OpenBrowser bool
	Progress    func(step, total int, label string)
}

// SetupLogging applies the configured level to every subsystem logger.
func SetupLogging(cfg config.Config) error {
	lvl, err := logging.LevelFromString(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logging.SetAllLoggers(lvl)
	if cfg.Viewer.Debug {
		for _, name := range []string{"viewer", "routes", "preview"} {
			_ = logging.SetLogLevel(name, "debug")
		}
	}
	return nil
}

// logFile returns the rotating writer for cfg.File, or nil when file
// logging is off.
func logFile(dir string, cfg config.Log) *lumberjack.Logger {
	if cfg.File == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   util.ResolvePath(dir, cfg.File),
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}

// Run serves the studio until ctx is cancelled.
func Run(ctx context.Context, opt Options) error {
	cfg := opt.Cfg
	emit := opt.Progress
	if emit == nil {
		emit = func(int, int, string) {}
	}

	logs := viewer.NewLogBuffer(cfg.Log.BufferSize)
	if lf := logFile(opt.Dir, cfg.Log); lf != nil {
		defer lf.Close()
		logs.Capture(ctx, lf)
	} else {
		logs.Capture(ctx)
	}
	if err := SetupLogging(cfg); err != nil {
		return err
	}

	step, total := 0, 3
	if cfg.Mirror.Enabled {
		total++
	}

	// ── Database
	step++
	emit(step, total, "Opening database")
	db, err := storage.Open(util.ResolvePath(opt.Dir, cfg.Storage.DataDir))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	logBanner(opt.Dir, opt.CfgPath, db.Path())

	// ── Sessions and preview
	step++
	emit(step, total, "Starting editor")
	hub := preview.NewHub(cfg.PreviewDebounce())
	sessions := editor.NewManager(db, editor.Options{
		Autosave: cfg.Editor.Autosave,
		Delay:    cfg.AutosaveDelay(),
		OnSave: func(path string, err error) {
			if err != nil {
				log.Warnf("autosave %s failed: %v", path, err)
				return
			}
			log.Debugf("autosaved %s", path)
		},
	}, hub)
	defer sessions.CloseAll()

	// ── Mirror (optional)
	if cfg.Mirror.Enabled {
		step++
		emit(step, total, "Mirroring project")
		m, err := startMirror(ctx, db, sessions, hub, util.ResolvePath(opt.Dir, cfg.Mirror.Dir), cfg.Mirror)
		if err != nil {
			return err
		}
		defer m.Close()
	}

	// ── Viewer
	step++
	emit(step, total, "Starting viewer")
	addr, url := NormalizeLocalViewer(cfg.Viewer.HTTPAddr)
	if opt.OpenBrowser {
		go func() {
			if err := WaitTCP(addr, 10*time.Second); err != nil {
				log.Warnf("browser not opened: %v", err)
				return
			}
			if err := util.OpenURL(url); err != nil {
				log.Warnf("open %s: %v", url, err)
			}
		}()
	}
	log.Infof("studio ready at %s", url)

	return viewer.Start(ctx, addr, viewer.Viewer{
		DB:       db,
		Sessions: sessions,
		Hub:      hub,
		Renderer: preview.NewRenderer(cfg.Preview.Minify),
		Logs:     logs,
		Owner:    cfg.Profile.Owner,
		Label:    cfg.Profile.Label,
	})
}
