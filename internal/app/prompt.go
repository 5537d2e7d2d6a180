package app

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/petervdpas/cipherstudio/internal/config"
)

// Prompt walks through the settings most people change and returns the
// edited config. An invalid result falls back to cfg unchanged.
func Prompt(r io.Reader, w io.Writer, dir, cfgPath string, cfg config.Config) config.Config {
	in := bufio.NewReader(r)
	orig := cfg

	fmt.Fprintln(w, "────────────────────────────────────────")
	fmt.Fprintln(w, "Studio setup")
	fmt.Fprintf(w, " Studio folder : %s\n", dir)
	fmt.Fprintf(w, " Config file   : %s\n", cfgPath)
	fmt.Fprintln(w, "────────────────────────────────────────")
	fmt.Fprintln(w)

	cfg.Profile.Label = askString(in, w, "Label", cfg.Profile.Label)
	cfg.Profile.Owner = askString(in, w, "Owner of new projects", cfg.Profile.Owner)
	cfg.Viewer.HTTPAddr = askString(in, w, "Viewer HTTP addr", cfg.Viewer.HTTPAddr)

	cfg.Editor.Autosave = askBool(in, w, "Autosave by default", cfg.Editor.Autosave)
	if cfg.Editor.Autosave {
		cfg.Editor.AutosaveDelayMS = askInt(in, w, "Autosave delay ms", cfg.Editor.AutosaveDelayMS)
	}

	cfg.Mirror.Enabled = askBool(in, w, "Mirror a project to a folder", cfg.Mirror.Enabled)
	if cfg.Mirror.Enabled {
		cfg.Mirror.Project = askString(in, w, "Project ID", cfg.Mirror.Project)
		cfg.Mirror.Dir = askString(in, w, "Mirror folder", cfg.Mirror.Dir)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "Invalid config: %v\nKeeping previous settings.\n", err)
		return orig
	}
	return cfg
}

func askString(in *bufio.Reader, w io.Writer, label, def string) string {
	fmt.Fprintf(w, "%s [%s]: ", label, def)
	s, _ := in.ReadString('\n')
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func askInt(in *bufio.Reader, w io.Writer, label string, def int) int {
	for {
		fmt.Fprintf(w, "%s [%d]: ", label, def)
		s, err := in.ReadString('\n')
		s = strings.TrimSpace(s)
		if s == "" {
			return def
		}
		if v, convErr := strconv.Atoi(s); convErr == nil {
			return v
		}
		if err != nil {
			return def
		}
		fmt.Fprintln(w, "Please enter a number.")
	}
}

func askBool(in *bufio.Reader, w io.Writer, label string, def bool) bool {
	defStr := "n"
	if def {
		defStr = "y"
	}
	for {
		fmt.Fprintf(w, "%s [y/n] (default=%s): ", label, defStr)
		s, err := in.ReadString('\n')
		s = strings.TrimSpace(strings.ToLower(s))
		if s == "" {
			return def
		}
		switch s {
		case "y", "yes", "true", "1":
			return true
		case "n", "no", "false", "0":
			return false
		}
		if err != nil {
			return def
		}
		fmt.Fprintln(w, "Please enter y or n.")
	}
}
