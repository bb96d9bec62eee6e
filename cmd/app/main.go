package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/memento/internal"
	"github.com/starford/memento/internal/mcpserver"
	"github.com/starford/memento/internal/periodic"
	"github.com/starford/memento/internal/tagtree"
	"github.com/starford/memento/internal/tui"
	"github.com/starford/memento/internal/views"
	pkgconfig "github.com/starford/memento/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Notes.Root = root
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// withCore runs fn against a freshly scanned note service. Logs go to
// stderr so stdout stays clean for command output.
func withCore(ctx context.Context, cmd *cli.Command, fn func(*internal.Core) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	core, err := internal.OpenCore(cfg, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	if _, err := core.Service.Refresh(ctx); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return fn(core)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	return withCore(ctx, cmd, func(core *internal.Core) error {
		return mcpserver.New(core.Service).ServeStdio()
	})
}

func runScan(ctx context.Context, cmd *cli.Command) error {
	return withCore(ctx, cmd, func(core *internal.Core) error {
		snap := core.Service.Current()
		open := 0
		for _, t := range snap.Todos {
			if !t.Completed {
				open++
			}
		}
		tags := 0
		tagtree.Walk(snap.Tags, func(*tagtree.Node, int) bool {
			tags++
			return true
		})
		out, err := json.MarshalIndent(map[string]any{
			"root":       core.Store.Root(),
			"generation": snap.Generation,
			"notes":      len(snap.Notes),
			"tags":       tags,
			"todos":      len(snap.Todos),
			"open_todos": open,
			"scanned_at": snap.ScannedAt,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	})
}

func runTags(ctx context.Context, cmd *cli.Command) error {
	return withCore(ctx, cmd, func(core *internal.Core) error {
		forest := core.Service.Current().Tags
		if prefix := cmd.Args().First(); prefix != "" {
			node := tagtree.Find(forest, strings.TrimPrefix(prefix, "#"))
			if node == nil {
				return fmt.Errorf("tag not found: %s", prefix)
			}
			forest = []*tagtree.Node{node}
		}
		tagtree.Walk(forest, func(n *tagtree.Node, depth int) bool {
			fmt.Printf("%s#%s (%d)\n", strings.Repeat("  ", depth), n.Label, len(n.Files))
			if cmd.Bool("files") {
				for _, f := range n.Files {
					fmt.Printf("%s  - %s\n", strings.Repeat("  ", depth), f.RelPath)
				}
			}
			return true
		})
		return nil
	})
}

func runTodo(ctx context.Context, cmd *cli.Command) error {
	return withCore(ctx, cmd, func(core *internal.Core) error {
		status := views.StatusOpen
		if cmd.Bool("all") {
			status = views.StatusAll
		}
		items := views.Todos(core.Service.Current().Todos, views.Filter{
			Tag:     cmd.String("tag"),
			Project: cmd.String("project"),
			Status:  status,
		})
		return tui.Run(ctx, core.Service, items)
	})
}

func periodicAction(kind periodic.Kind) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return withCore(ctx, cmd, func(core *internal.Core) error {
			t := core.Service.Now()
			if arg := cmd.Args().First(); arg != "" {
				parsed, err := dateparse.ParseIn(arg, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", arg, err)
				}
				t = parsed
			}
			note, err := core.Service.OpenPeriodic(ctx, kind, t)
			if err != nil {
				return err
			}
			fmt.Println(note.AbsPath)
			return nil
		})
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "memento",
		Usage:  "Index Markdown notes into tag trees, TODO lists and daily/weekly notes",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Notes root directory (overrides notes.root)",
				Sources: cli.EnvVars("MEMENTO_ROOT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live rescans",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: runMCP,
			},
			{
				Name:   "scan",
				Usage:  "Scan the notes root and print a JSON summary",
				Action: runScan,
			},
			{
				Name:      "tags",
				Usage:     "Print the tag tree",
				ArgsUsage: "[tag]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "files", Usage: "List the notes under each tag"},
				},
				Action: runTags,
			},
			{
				Name:  "todo",
				Usage: "Browse and toggle TODO items",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include completed items"},
					&cli.StringFlag{Name: "tag", Usage: "Only items with this tag"},
					&cli.StringFlag{Name: "project", Usage: "Only items with this project"},
				},
				Action: runTodo,
			},
			{
				Name:      "daily",
				Usage:     "Create or open the daily note and print its path",
				ArgsUsage: "[date]",
				Action:    periodicAction(periodic.Daily),
			},
			{
				Name:      "weekly",
				Usage:     "Create or open the weekly note and print its path",
				ArgsUsage: "[date]",
				Action:    periodicAction(periodic.Weekly),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
