package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/skylabel/internal"
	"github.com/starford/skylabel/internal/mcpserver"
	"github.com/starford/skylabel/internal/models"
	pkgconfig "github.com/starford/skylabel/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOrDefault(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// openApp opens the shared components for one-shot commands. Logs go to
// stderr so command output on stdout stays clean.
func openApp(ctx context.Context, cmd *cli.Command) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Open(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
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
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	return mcpserver.New(app.Service).ServeStdio()
}

func export(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var rng models.IDRange
	if cmd.IsSet("start-id") {
		v := int64(cmd.Int("start-id"))
		rng.Start = &v
	}
	if cmd.IsSet("end-id") {
		v := int64(cmd.Int("end-id"))
		rng.End = &v
	}

	var out io.Writer = os.Stdout
	if path := cmd.String("out"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch format := cmd.String("format"); format {
	case "csv":
		return app.Service.ExportCSV(ctx, out, rng)
	case "yolo":
		return app.Service.ExportYOLO(ctx, out, rng)
	default:
		return fmt.Errorf("unknown export format %q (want csv or yolo)", format)
	}
}

func audit(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	orphans, err := app.Service.AuditOrphans(ctx)
	if err != nil {
		return err
	}
	for _, name := range orphans {
		fmt.Println(name)
	}
	if len(orphans) > 0 {
		return fmt.Errorf("%d labeled files have no annotation row", len(orphans))
	}
	return nil
}

func unskip(ctx context.Context, cmd *cli.Command) error {
	filename := cmd.Args().First()
	if filename == "" {
		return fmt.Errorf("usage: unskip <filename>")
	}
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Service.Unskip(ctx, filename)
}

func seed(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	dir := cmd.Args().First()
	if dir == "" {
		dir = app.Config.Reference.DataDir
	}
	loaded, err := app.Service.LoadPresets(ctx, dir)
	if err != nil {
		return err
	}
	for kind, n := range loaded {
		fmt.Printf("%s: %d inserted\n", kind, n)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "skylabel",
		Usage:  "Concurrent labeling coordinator for aircraft registration photos",
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
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve read-only MCP tools on stdio",
				Action: serveMCP,
			},
			{
				Name:   "export",
				Usage:  "Write annotations as CSV or a YOLO archive",
				Action: export,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "csv", Usage: "csv or yolo"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
					&cli.IntFlag{Name: "start-id", Usage: "First annotation id (inclusive)"},
					&cli.IntFlag{Name: "end-id", Usage: "Last annotation id (inclusive)"},
				},
			},
			{
				Name:   "audit",
				Usage:  "List labeled files that have no annotation row",
				Action: audit,
			},
			{
				Name:      "unskip",
				Usage:     "Return a skipped image to the pool",
				ArgsUsage: "<filename>",
				Action:    unskip,
			},
			{
				Name:      "seed",
				Usage:     "Load airline and aircraft type presets",
				ArgsUsage: "[dir]",
				Action:    seed,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
