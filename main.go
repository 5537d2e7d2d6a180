package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/petervdpas/cipherstudio/internal/config"
	"github.com/petervdpas/cipherstudio/internal/storage"
	"github.com/petervdpas/cipherstudio/internal/util"
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studio",
		Short: "Browser project editor backed by SQLite",
		Long: `studio serves an editor API for small web projects: a file tree per
project, editing sessions with autosave, and a live preview.

Every command takes a studio directory holding studio.json and the
database. The directory and a default config are created when missing.`,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
	}
	root.AddCommand(serveCmd(), initCmd(), projectsCmd(), treeCmd(), exportCmd(), importCmd(), versionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// studio is a resolved studio directory with its config.
type studio struct {
	dir     string
	cfgPath string
	cfg     config.Config
}

func loadStudio(dirArg string) (studio, error) {
	abs, err := filepath.Abs(dirArg)
	if err != nil {
		return studio{}, fmt.Errorf("invalid studio directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return studio{}, err
	}
	cfgPath := filepath.Join(abs, config.FileName)
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		return studio{}, fmt.Errorf("load config: %w", err)
	}
	if created {
		fmt.Printf("Created default config %s\n", cfgPath)
	}
	return studio{dir: abs, cfgPath: cfgPath, cfg: cfg}, nil
}

func (s studio) openDB() (*storage.DB, error) {
	return storage.Open(util.ResolvePath(s.dir, s.cfg.Storage.DataDir))
}

func printBanner(s studio) {
	fmt.Println("╔════════════════════════════════════════════════════════╗")
	fmt.Println("║                        Studio                          ║")
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Studio Directory: %s\n", s.dir)
	fmt.Printf("Config File:      %s\n", s.cfgPath)
	if s.cfg.Profile.Label != "" {
		fmt.Printf("Label:            %s\n", s.cfg.Profile.Label)
	}
	if s.cfg.Mirror.Enabled {
		fmt.Printf("Mirror:           %s -> %s\n", s.cfg.Mirror.Project, s.cfg.Mirror.Dir)
	}
	fmt.Println()
}
