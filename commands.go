package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petervdpas/cipherstudio/internal/app"
	"github.com/petervdpas/cipherstudio/internal/config"
	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/mirror"
)

func serveCmd() *cobra.Command {
	var (
		open bool
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve the editor API and live preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStudio(args[0])
			if err != nil {
				return err
			}
			if addr != "" {
				s.cfg.Viewer.HTTPAddr = addr
				if err := s.cfg.Validate(); err != nil {
					return err
				}
			}
			printBanner(s)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.Run(ctx, app.Options{
				Dir:         s.dir,
				CfgPath:     s.cfgPath,
				Cfg:         s.cfg,
				OpenBrowser: open,
				Progress: func(step, total int, label string) {
					fmt.Printf("[%d/%d] %s\n", step, total, label)
				},
			})
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "open the viewer in the default browser")
	cmd.Flags().StringVar(&addr, "addr", "", "override viewer.http_addr")
	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <dir>",
		Short: "Create or edit the studio config interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStudio(args[0])
			if err != nil {
				return err
			}
			cfg := app.Prompt(cmd.InOrStdin(), cmd.OutOrStdout(), s.dir, s.cfgPath, s.cfg)
			if err := config.Save(s.cfgPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", s.cfgPath)
			return nil
		},
	}
}

func projectsCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "projects <dir>",
		Short: "List projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStudio(args[0])
			if err != nil {
				return err
			}
			db, err := s.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if owner == "" {
				owner = s.cfg.Profile.Owner
			}
			list, err := db.ListProjects(cmd.Context(), owner)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner to list (default profile.owner)")
	return cmd
}

func treeCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "tree <dir>",
		Short: "Print the file tree of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := projectStore(cmd.Context(), args[0], project)
			if err != nil {
				return err
			}
			defer closeDB()

			out := cmd.OutOrStdout()
			content.Walk(store.Tree(), func(n *content.TreeNode, depth int) {
				name := n.Name
				if n.IsFolder {
					name += "/"
				}
				fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), name)
			})
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project ID")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func exportCmd() *cobra.Command {
	var project, out string
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write a project's files to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := projectStore(cmd.Context(), args[0], project)
			if err != nil {
				return err
			}
			defer closeDB()

			d, err := mirror.NewDir(out)
			if err != nil {
				return err
			}
			n, err := mirror.Export(cmd.Context(), d, store.Files())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s\n", n, d.Root())
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project ID")
	cmd.Flags().StringVarP(&out, "out", "o", "", "target directory")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		project, from string
		prune         bool
	)
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Bring a directory's text files into a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := projectStore(cmd.Context(), args[0], project)
			if err != nil {
				return err
			}
			defer closeDB()

			d, err := mirror.NewDir(from)
			if err != nil {
				return err
			}
			scanned, err := d.Scan()
			if err != nil {
				return err
			}
			res, err := mirror.Import(cmd.Context(), store, scanned, prune)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported: %d created, %d updated, %d deleted\n",
				res.Created, res.Updated, res.Deleted)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project ID")
	cmd.Flags().StringVarP(&from, "from", "f", "", "source directory")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete records missing from the directory")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "studio v%s\n", appVersion)
		},
	}
}

// projectStore opens the studio database and loads one project.
func projectStore(ctx context.Context, dir, projectID string) (*content.Store, func(), error) {
	s, err := loadStudio(dir)
	if err != nil {
		return nil, nil, err
	}
	db, err := s.openDB()
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.GetProject(ctx, projectID); err != nil {
		db.Close()
		return nil, nil, err
	}
	store := content.NewStore(db, projectID)
	if err := store.Reload(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}
