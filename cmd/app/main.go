package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/daylog/internal"
	"github.com/starford/daylog/internal/notebook"
	"github.com/starford/daylog/internal/vcs"
	pkgconfig "github.com/starford/daylog/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

// withNotebook opens the configured notebook with a stderr logger for a
// one-shot command.
func withNotebook(ctx context.Context, cmd *cli.Command, fn func(svc *notebook.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.App.LogLevel = slog.LevelWarn
	logger, closeLog := internal.NewLogger(cfg.App, os.Stderr)
	defer closeLog()

	svc, closeNotebook, err := internal.OpenNotebook(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeNotebook()
	return fn(svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func note(ctx context.Context, cmd *cli.Command) error {
	d, err := parseDay(cmd.String("date"), time.Now())
	if err != nil {
		return err
	}
	return withNotebook(ctx, cmd, func(svc *notebook.Service) error {
		src := cmd.String("file")
		if src == "" {
			n, err := svc.ReadNote(ctx, d)
			if err != nil {
				return err
			}
			if !n.Exists {
				_, err = fmt.Fprint(cmd.Root().Writer, n.Template)
				return err
			}
			_, err = fmt.Fprint(cmd.Root().Writer, n.Content)
			return err
		}

		var content []byte
		if src == "-" {
			content, err = io.ReadAll(os.Stdin)
		} else {
			content, err = os.ReadFile(src)
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", src, err)
		}
		n, err := svc.WriteNote(ctx, d, content, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.Root().ErrWriter, "saved %s (%d/%d tasks done)\n", n.Path, n.Stats.Completed, n.Stats.Total)
		return nil
	})
}

func statsCmd(ctx context.Context, cmd *cli.Command) error {
	return withNotebook(ctx, cmd, func(svc *notebook.Service) error {
		if cmd.Bool("recompute") {
			st, err := svc.RecomputeStats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, st.Summary)
		}
		st, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.Root().Writer, st.Summary)
	})
}

func pastCmd(ctx context.Context, cmd *cli.Command) error {
	return withNotebook(ctx, cmd, func(svc *notebook.Service) error {
		tasks, err := svc.ScanPastTasks(ctx)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintf(cmd.Root().Writer, "%s  %s  %s\n", t.ID, t.SourceDate, t.Text)
		}
		return nil
	})
}

func syncCmd(ctx context.Context, cmd *cli.Command) error {
	return withNotebook(ctx, cmd, func(svc *notebook.Service) error {
		res, err := svc.Sync(ctx)
		if err != nil {
			if vcs.IsUserActionRequired(err) {
				for _, p := range res.Conflicts {
					fmt.Fprintf(cmd.Root().ErrWriter, "conflict: %s\n", p)
				}
			}
			return err
		}
		return printJSON(cmd.Root().Writer, res)
	})
}

func cloneCmd(ctx context.Context, cmd *cli.Command) error {
	url := cmd.Args().First()
	if url == "" {
		return fmt.Errorf("usage: daylog clone <url>")
	}
	dir, err := vcs.Clone(ctx, vcs.CloneOptions{
		URL:       url,
		ParentDir: cmd.String("parent"),
		Token:     cmd.String("token"),
		Provider:  cmd.String("provider"),
		Transport: cmd.String("transport"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, dir)
	return nil
}

func detectCmd(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		path = "."
	}
	repo, err := vcs.Detect(ctx, path)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, repo)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
	dateFlag := &cli.StringFlag{
		Name:    "date",
		Aliases: []string{"d"},
		Usage:   "Day as YYYY-MM-DD or natural language (\"yesterday\", \"last monday\")",
		Value:   "today",
	}

	cmd := &cli.Command{
		Name:    "daylog",
		Usage:   "Git-versioned daily notes with task statistics",
		Version: version,
		Action:  serve,
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:   "note",
				Usage:  "Print a day's note, or replace it with --file",
				Action: note,
				Flags: []cli.Flag{
					dateFlag,
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read new content from `FILE` (- for stdin)"},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print the statistics summary",
				Action: statsCmd,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recompute", Usage: "Rebuild statistics from all notes first"},
				},
			},
			{
				Name:   "past",
				Usage:  "List unfinished to-dos from earlier days",
				Action: pastCmd,
			},
			{
				Name:   "sync",
				Usage:  "Pull from and push to the configured remote",
				Action: syncCmd,
			},
			{
				Name:      "clone",
				Usage:     "Clone a notes repository",
				ArgsUsage: "<url>",
				Action:    cloneCmd,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "parent", Usage: "Directory to clone into", Value: "."},
					&cli.StringFlag{Name: "token", Usage: "Access token for HTTPS remotes", Sources: cli.EnvVars("DAYLOG_GIT_TOKEN")},
					&cli.StringFlag{Name: "provider", Usage: "github, gitlab, gitee or other", Value: vcs.ProviderGitHub},
					&cli.StringFlag{Name: "transport", Usage: "native or exec", Value: vcs.TransportNative},
				},
			},
			{
				Name:      "detect",
				Usage:     "Print identity, remote and provider of an existing repository",
				ArgsUsage: "[path]",
				Action:    detectCmd,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
