package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/api"
	"github.com/datatram-io/datatram-go/pkg/auth"
	"github.com/datatram-io/datatram-go/pkg/cache"
	"github.com/datatram-io/datatram-go/pkg/config"
	"github.com/datatram-io/datatram-go/pkg/logging"
	"github.com/datatram-io/datatram-go/pkg/models"
	"github.com/datatram-io/datatram-go/pkg/notify"
	"github.com/datatram-io/datatram-go/pkg/onboarding"
	"github.com/datatram-io/datatram-go/pkg/services"
	"github.com/datatram-io/datatram-go/pkg/state"
)

// Version is set at build time via ldflags
var Version = "dev"

// deps holds everything the commands share, wired once in Before.
type deps struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *state.FileStore

	sources      services.SourceService
	destinations services.DestinationService
	connections  services.ConnectionService
	loadJobs     services.LoadJobService
	histories    services.HistoryService
}

func main() {
	d := &deps{}

	app := &cli.App{
		Name:    "datatram",
		Usage:   "manage Datatram sources, destinations, and connections",
		Version: Version,
		Before: func(cCtx *cli.Context) error {
			return d.wire()
		},
		After: func(cCtx *cli.Context) error {
			if d.logger != nil {
				_ = d.logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:        "sources",
				Usage:       "manage registered data sources",
				Subcommands: sourceCommands(d),
			},
			{
				Name:        "destinations",
				Usage:       "manage load destinations",
				Subcommands: destinationCommands(d),
			},
			{
				Name:        "connections",
				Usage:       "manage source-to-destination connections",
				Subcommands: connectionCommands(d),
			},
			connectCommand(d),
			historyCommand(d),
			tourCommand(d),
			themeCommand(d),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func (d *deps) wire() error {
	cfg, err := config.Load(Version)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	tokens := auth.Cached(auth.FromEnv("DATATRAM_TOKEN"), 0)
	if cfg.Token != "" {
		tokens = auth.Cached(auth.Static(cfg.Token), 0)
	}

	client, err := api.New(cfg.BackendURL, tokens, logger,
		api.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return err
	}

	c := cache.New()
	notifier := notify.NewLog(logger)

	d.cfg = cfg
	d.logger = logger
	d.store = state.NewFileStore(cfg.StateDir)
	d.sources = services.NewSourceService(client, c, logger)
	d.destinations = services.NewDestinationService(client, c, logger)
	d.connections = services.NewConnectionService(client, c, logger)
	d.loadJobs = services.NewLoadJobService(client, c, notifier, logger)
	d.histories = services.NewHistoryService(client, c, tokens, logger, services.HistoryOptions{
		StaleTime:       cfg.HistoryStaleTime,
		RefetchInterval: cfg.HistoryRefetchInterval,
	})
	return nil
}

func sourceCommands(d *deps) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "list",
			Usage: "List all sources",
			Action: func(cCtx *cli.Context) error {
				sources, err := d.sources.List(cCtx.Context)
				if err != nil {
					return err
				}
				return printJSON(sources)
			},
		},
		{
			Name:      "get",
			Usage:     "Show one source",
			ArgsUsage: "<id>",
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				source, err := d.sources.Get(cCtx.Context, id)
				if err != nil {
					return err
				}
				return printJSON(source)
			},
		},
		{
			Name:  "create",
			Usage: "Register a new source",
			Flags: sourceFlags(),
			Action: func(cCtx *cli.Context) error {
				payload, cleanup, err := sourcePayload(cCtx)
				if err != nil {
					return err
				}
				defer cleanup()
				created, err := d.sources.Create(cCtx.Context, payload)
				if err != nil {
					return err
				}
				fmt.Printf("Created source %d (%s)\n", created.ID, created.Name)
				return nil
			},
		},
		{
			Name:      "update",
			Usage:     "Update a source",
			ArgsUsage: "<id>",
			Flags:     sourceFlags(),
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				payload, cleanup, err := sourcePayload(cCtx)
				if err != nil {
					return err
				}
				defer cleanup()
				updated, err := d.sources.Update(cCtx.Context, id, payload)
				if err != nil {
					return err
				}
				fmt.Printf("Updated source %d (%s)\n", updated.ID, updated.Name)
				return nil
			},
		},
		{
			Name:      "delete",
			Usage:     "Delete a source",
			ArgsUsage: "<id>",
			Flags:     []cli.Flag{yesFlag()},
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				if !confirm(cCtx, fmt.Sprintf("Delete source %d?", id)) {
					return nil
				}
				if err := d.sources.Delete(cCtx.Context, id); err != nil {
					return err
				}
				fmt.Printf("Deleted source %d\n", id)
				return nil
			},
		},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "source display name"},
		&cli.StringFlag{Name: "host", Usage: "origin host, for remote sources"},
		&cli.StringFlag{Name: "type", Usage: "source type (pdf, csv, excel, json, xml)"},
		&cli.StringFlag{Name: "file", Usage: "path of the data file to upload"},
		&cli.StringFlag{Name: "image", Usage: "path of the icon image to upload"},
		&cli.StringFlag{Name: "metadata", Usage: "extra metadata as a JSON object"},
	}
}

// sourcePayload builds the create/update payload from flags. The cleanup
// closes any opened upload files.
func sourcePayload(cCtx *cli.Context) (models.CreateSource, func(), error) {
	payload := models.CreateSource{
		Name: cCtx.String("name"),
		Host: cCtx.String("host"),
		Type: models.SourceType(cCtx.String("type")),
	}

	if raw := cCtx.String("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload.Metadata); err != nil {
			return payload, func() {}, fmt.Errorf("invalid --metadata JSON: %w", err)
		}
	}

	var opened []*os.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for flag, target := range map[string]**models.FileUpload{
		"file":  &payload.File,
		"image": &payload.Image,
	} {
		path := cCtx.String(flag)
		if path == "" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			cleanup()
			return payload, func() {}, fmt.Errorf("open --%s: %w", flag, err)
		}
		opened = append(opened, f)
		*target = &models.FileUpload{Filename: filepath.Base(path), Content: f}
	}

	return payload, cleanup, nil
}

func destinationCommands(d *deps) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "list",
			Usage: "List all destinations",
			Action: func(cCtx *cli.Context) error {
				destinations, err := d.destinations.List(cCtx.Context)
				if err != nil {
					return err
				}
				return printJSON(destinations)
			},
		},
		{
			Name:      "get",
			Usage:     "Show one destination",
			ArgsUsage: "<id>",
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				destination, err := d.destinations.Get(cCtx.Context, id)
				if err != nil {
					return err
				}
				return printJSON(destination)
			},
		},
		{
			Name:  "create",
			Usage: "Register a new destination",
			Flags: destinationFlags(),
			Action: func(cCtx *cli.Context) error {
				payload, cleanup, err := destinationPayload(cCtx)
				if err != nil {
					return err
				}
				defer cleanup()
				created, err := d.destinations.Create(cCtx.Context, payload)
				if err != nil {
					return err
				}
				fmt.Printf("Created destination %d (%s)\n", created.ID, created.Name)
				return nil
			},
		},
		{
			Name:      "update",
			Usage:     "Update a destination",
			ArgsUsage: "<id>",
			Flags:     destinationFlags(),
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				payload, cleanup, err := destinationPayload(cCtx)
				if err != nil {
					return err
				}
				defer cleanup()
				updated, err := d.destinations.Update(cCtx.Context, id, payload)
				if err != nil {
					return err
				}
				fmt.Printf("Updated destination %d (%s)\n", updated.ID, updated.Name)
				return nil
			},
		},
		{
			Name:      "delete",
			Usage:     "Delete a destination",
			ArgsUsage: "<id>",
			Flags:     []cli.Flag{yesFlag()},
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				if !confirm(cCtx, fmt.Sprintf("Delete destination %d?", id)) {
					return nil
				}
				if err := d.destinations.Delete(cCtx.Context, id); err != nil {
					return err
				}
				fmt.Printf("Deleted destination %d\n", id)
				return nil
			},
		},
	}
}

func destinationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "destination display name"},
		&cli.StringFlag{Name: "type", Usage: "destination type (bigquery, snowflake, s3)"},
		&cli.StringFlag{Name: "project-id", Usage: "cloud project id"},
		&cli.StringFlag{Name: "url", Usage: "endpoint URL, for non-BigQuery destinations"},
		&cli.StringFlag{Name: "dataset-id", Usage: "BigQuery dataset id"},
		&cli.StringFlag{Name: "target-table", Usage: "BigQuery target table name"},
		&cli.StringFlag{Name: "image", Usage: "path of the icon image to upload"},
		&cli.StringFlag{Name: "metadata", Usage: "extra metadata as a JSON object"},
	}
}

func destinationPayload(cCtx *cli.Context) (models.CreateDestination, func(), error) {
	payload := models.CreateDestination{
		Name:            cCtx.String("name"),
		Type:            models.DestinationType(cCtx.String("type")),
		ProjectID:       cCtx.String("project-id"),
		URL:             cCtx.String("url"),
		DatasetID:       cCtx.String("dataset-id"),
		TargetTableName: cCtx.String("target-table"),
	}

	if raw := cCtx.String("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload.Metadata); err != nil {
			return payload, func() {}, fmt.Errorf("invalid --metadata JSON: %w", err)
		}
	}

	cleanup := func() {}
	if path := cCtx.String("image"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return payload, cleanup, fmt.Errorf("open --image: %w", err)
		}
		cleanup = func() { f.Close() }
		payload.Image = &models.FileUpload{Filename: filepath.Base(path), Content: f}
	}

	return payload, cleanup, nil
}

func connectionCommands(d *deps) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "list",
			Usage: "List all connections",
			Action: func(cCtx *cli.Context) error {
				connections, err := d.connections.List(cCtx.Context)
				if err != nil {
					return err
				}
				return printJSON(connections)
			},
		},
		{
			Name:      "get",
			Usage:     "Show one connection",
			ArgsUsage: "<id>",
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				connection, err := d.connections.Get(cCtx.Context, id)
				if err != nil {
					return err
				}
				return printJSON(connection)
			},
		},
		{
			Name:  "create",
			Usage: "Connect a source to a destination",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "source", Usage: "source id", Required: true},
				&cli.IntFlag{Name: "destination", Usage: "destination id", Required: true},
			},
			Action: func(cCtx *cli.Context) error {
				created, err := d.connections.Create(cCtx.Context, models.CreateConnection{
					SourceID:      cCtx.Int("source"),
					DestinationID: cCtx.Int("destination"),
				})
				if err != nil {
					return err
				}
				fmt.Printf("Created connection %d (%s -> %s)\n",
					created.ID, created.SourceName, created.DestinationName)
				return nil
			},
		},
		{
			Name:      "update",
			Usage:     "Re-point a connection",
			ArgsUsage: "<id>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "source", Usage: "new source id"},
				&cli.IntFlag{Name: "destination", Usage: "new destination id"},
			},
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				var payload models.UpdateConnection
				if cCtx.IsSet("source") {
					v := cCtx.Int("source")
					payload.SourceID = &v
				}
				if cCtx.IsSet("destination") {
					v := cCtx.Int("destination")
					payload.DestinationID = &v
				}
				updated, err := d.connections.Update(cCtx.Context, id, payload)
				if err != nil {
					return err
				}
				fmt.Printf("Updated connection %d (%s -> %s)\n",
					updated.ID, updated.SourceName, updated.DestinationName)
				return nil
			},
		},
		{
			Name:      "delete",
			Usage:     "Delete a connection",
			ArgsUsage: "<id>",
			Flags:     []cli.Flag{yesFlag()},
			Action: func(cCtx *cli.Context) error {
				id, err := argID(cCtx)
				if err != nil {
					return err
				}
				if !confirm(cCtx, fmt.Sprintf("Delete connection %d?", id)) {
					return nil
				}
				if err := d.connections.Delete(cCtx.Context, id); err != nil {
					return err
				}
				fmt.Printf("Deleted connection %d\n", id)
				return nil
			},
		},
	}
}

func connectCommand(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Trigger a BigQuery load job for a connection",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "connection", Usage: "connection id", Required: true},
			&cli.IntFlag{Name: "destination", Usage: "destination id", Required: true},
		},
		Action: func(cCtx *cli.Context) error {
			result, err := d.loadJobs.ConnectToBigQuery(cCtx.Context, models.LoadJobRequest{
				ConnectionID:  cCtx.Int("connection"),
				DestinationID: cCtx.Int("destination"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s (%d rows processed)\n", result.Message, result.RowsProcessed)
			return nil
		},
	}
}

func historyCommand(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show your connection load history",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "keep polling and print updates until interrupted"},
		},
		Action: func(cCtx *cli.Context) error {
			if !cCtx.Bool("watch") {
				histories, err := d.histories.List(cCtx.Context)
				if err != nil {
					return err
				}
				return printJSON(histories)
			}

			ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			d.histories.Watch(ctx, func(histories []models.ConnectionHistory, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "history fetch failed: %v\n", err)
					return
				}
				_ = printJSON(histories)
			})
			return nil
		},
	}
}

func tourCommand(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "tour",
		Usage: "Inspect or reset the onboarding tour",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show whether the tour has been completed",
				Action: func(cCtx *cli.Context) error {
					tour, err := onboarding.New(d.store)
					if err != nil {
						return err
					}
					fmt.Println(tour.Status())
					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "Clear the completed flag so the tour runs again",
				Action: func(cCtx *cli.Context) error {
					tour, err := onboarding.New(d.store)
					if err != nil {
						return err
					}
					if err := tour.Reset(); err != nil {
						return err
					}
					fmt.Println("Onboarding tour reset")
					return nil
				},
			},
			{
				Name:  "complete",
				Usage: "Mark the tour finished without running it",
				Action: func(cCtx *cli.Context) error {
					tour, err := onboarding.New(d.store)
					if err != nil {
						return err
					}
					tour.Start()
					if err := tour.HandleEvent(onboarding.EventFinished); err != nil {
						return err
					}
					fmt.Println("Onboarding tour completed")
					return nil
				},
			},
		},
	}
}

func themeCommand(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Get or set the preferred UI theme",
		ArgsUsage: "[light|dark|system]",
		Action: func(cCtx *cli.Context) error {
			st, err := d.store.Load()
			if err != nil {
				return err
			}

			if cCtx.Args().Len() == 0 {
				theme := st.Theme
				if theme == "" {
					theme = d.cfg.Theme
				}
				fmt.Println(theme)
				return nil
			}

			theme := cCtx.Args().First()
			switch theme {
			case "light", "dark", "system":
			default:
				return fmt.Errorf("invalid theme %q: must be light, dark or system", theme)
			}
			st.Theme = theme
			if err := d.store.Save(st); err != nil {
				return err
			}
			fmt.Printf("Theme set to %s\n", theme)
			return nil
		},
	}
}

func argID(cCtx *cli.Context) (int, error) {
	if cCtx.Args().Len() != 1 {
		return 0, fmt.Errorf("expected exactly one id argument")
	}
	var id int
	if _, err := fmt.Sscanf(cCtx.Args().First(), "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", cCtx.Args().First())
	}
	return id, nil
}

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "skip the confirmation prompt",
	}
}

// confirm prompts on stdin unless --yes was passed.
func confirm(cCtx *cli.Context, prompt string) bool {
	if cCtx.Bool("yes") {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
