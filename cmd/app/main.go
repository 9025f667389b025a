package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal"
	pkgconfig "github.com/starford/quill/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	path := cmd.String("config")
	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", path))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// withComponents runs fn against one-shot components. Logs go to stderr so
// stdout carries only the JSON result.
func withComponents(cmd *cli.Command, fn func(*internal.Components) (any, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := internal.Open(internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := fn(app)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() < n {
		return fmt.Errorf("%s: expected %d argument(s), usage: %s", cmd.Name, n, cmd.ArgsUsage)
	}
	return nil
}

func openBook(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	return withComponents(cmd, func(app *internal.Components) (any, error) {
		return app.Service.OpenBook(ctx, cmd.Args().First())
	})
}

func createBook(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 2); err != nil {
		return err
	}
	return withComponents(cmd, func(app *internal.Components) (any, error) {
		return app.Service.CreateBook(ctx, cmd.Args().Get(0), cmd.Args().Get(1), cmd.String("author"))
	})
}

func resolveBooks(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	return withComponents(cmd, func(app *internal.Components) (any, error) {
		return app.Service.Resolve(ctx, cmd.Args().First())
	})
}

func listLibrary(ctx context.Context, cmd *cli.Command) error {
	return withComponents(cmd, func(app *internal.Components) (any, error) {
		idx, err := app.Service.ListLibrary(ctx)
		if err != nil {
			return nil, err
		}
		return idx.Books, nil
	})
}

func removeBook(ctx context.Context, cmd *cli.Command) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	return withComponents(cmd, func(app *internal.Components) (any, error) {
		return nil, app.Service.RemoveBook(ctx, cmd.Args().First(), cmd.Bool("delete-files"))
	})
}

func main() {
	cmd := &cli.Command{
		Name:  "quill",
		Usage: "Directory-based manuscript store with chapters, snapshots, and a book library",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API server",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "open",
				Usage:     "Resolve a path to a book, open it and print the project",
				ArgsUsage: "<path>",
				Action:    openBook,
			},
			{
				Name:      "create",
				Usage:     "Create a new book folder under a parent directory",
				ArgsUsage: "<parent-dir> <title>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "author", Aliases: []string{"a"}, Usage: "Book author"},
				},
				Action: createBook,
			},
			{
				Name:      "resolve",
				Usage:     "List every book found at or below a path",
				ArgsUsage: "<path>",
				Action:    resolveBooks,
			},
			{
				Name:  "library",
				Usage: "Inspect and edit the library catalog",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "Print known books, most recently opened first",
						Action: listLibrary,
					},
					{
						Name:      "remove",
						Usage:     "Forget a book, optionally deleting its folder",
						ArgsUsage: "<path>",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "delete-files", Usage: "Also delete the book folder from disk"},
						},
						Action: removeBook,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
