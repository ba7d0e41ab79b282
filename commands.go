package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/williamokano/web_deployer/pkg/assets"
	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/compose"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/demoapp"
	"github.com/williamokano/web_deployer/pkg/dockerfile"
	"github.com/williamokano/web_deployer/pkg/history"
	"github.com/williamokano/web_deployer/pkg/logger"
	"github.com/williamokano/web_deployer/pkg/policy"
	"github.com/williamokano/web_deployer/pkg/task"
	"github.com/williamokano/web_deployer/pkg/userdata"
)

// loadConfig validates and parses the config file, then reconfigures the
// logger with the settings it carries
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")

	if err := config.Validate(path); err != nil {
		return nil, err
	}

	cfg, err := config.ParseConfig(path)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.GetLogLevel(), cfg.GetLogFormat())
	return cfg, nil
}

// openStore opens the configured history store. AWS credentials are only
// resolved when the store actually needs them.
func openStore(c *cli.Context, cfg *config.Config) (history.Store, error) {
	opts := history.OpenOptions{
		Config:     cfg.History,
		WorkDir:    cfg.GetWorkDir(),
		AWSOptions: cfg.Aws,
		Logger:     *logger.Get(),
	}

	if cfg.History.GetType() == "dynamodb" {
		awsCfg, err := awsclient.Load(c.Context, cfg.Aws, cfg.GetRegion())
		if err != nil {
			return nil, err
		}
		opts.AWS = awsCfg
	}

	return history.Open(c.Context, opts)
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run configured deployment tasks",
		ArgsUsage: "[task name...]",
		Description: "Runs every enabled task in config order, or only the named ones.\n" +
			"Known task types: " + strings.Join(task.RegisteredTypes(), ", ") + ".",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "keep-going",
				Aliases: []string{"k"},
				Usage:   "continue with remaining tasks after one fails",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			log := logger.Get()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			workDir := cfg.GetWorkDir()
			if err := os.MkdirAll(workDir, 0755); err != nil {
				return fmt.Errorf("failed to create work directory: %w", err)
			}

			awsCfg, err := awsclient.Load(ctx, cfg.Aws, cfg.GetRegion())
			if err != nil {
				return err
			}

			store, err := history.Open(ctx, history.OpenOptions{
				Config:     cfg.History,
				WorkDir:    workDir,
				AWS:        awsCfg,
				AWSOptions: cfg.Aws,
				Logger:     *log,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			log.Info().
				Str("project", cfg.Project).
				Str("region", cfg.GetRegion()).
				Msg("starting web_deployer")

			deps := task.Deps{
				Project:    cfg.Project,
				WorkDir:    workDir,
				Region:     cfg.GetRegion(),
				AWS:        awsCfg,
				AWSOptions: cfg.Aws,
				MaxUploads: cfg.GetMaxConcurrentUploads(),
				Logger:     *log,
			}

			_, err = task.NewRunner(deps, store).Run(ctx, cfg, c.Args().Slice(), c.Bool("keep-going"))
			return err
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "validate the configuration file",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			logger.Get().Info().
				Str("config_file", c.String("config")).
				Str("project", cfg.Project).
				Int("tasks", len(cfg.Tasks)).
				Msg("configuration is valid")
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "inspect recorded deployments",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list recorded deployments, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "include records from other projects",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}

					store, err := openStore(c, cfg)
					if err != nil {
						return err
					}
					defer store.Close()

					project := cfg.Project
					if c.Bool("all") {
						project = ""
					}

					records, err := store.List(c.Context, project)
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "STARTED\tPROJECT\tTASK\tTYPE\tRESULT\tDURATION")
					for _, rec := range records {
						result := "ok"
						if !rec.Success {
							result = "failed"
						}
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
							rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
							rec.Project,
							rec.TaskName,
							rec.TaskType,
							result,
							time.Duration(rec.DurationMS)*time.Millisecond,
						)
					}
					return w.Flush()
				},
			},
			{
				Name:  "prune",
				Usage: "remove all but the newest records for the project",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Value: 20,
						Usage: "number of records to keep",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}

					store, err := openStore(c, cfg)
					if err != nil {
						return err
					}
					defer store.Close()

					removed, err := store.Prune(c.Context, cfg.Project, c.Int("keep"))
					if err != nil {
						return err
					}

					logger.Get().Info().
						Int("removed", removed).
						Int("kept", c.Int("keep")).
						Msg("history pruned")
					return nil
				},
			},
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "render deployment artifacts without touching anything",
		Subcommands: []*cli.Command{
			{
				Name:  "dockerfile",
				Usage: "print a Dockerfile for a Go web app",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "variant", Value: string(dockerfile.VariantMulti), Usage: "single or multi"},
					&cli.StringFlag{Name: "binary", Value: "app", Usage: "name of the built binary"},
					&cli.IntFlag{Name: "port", Value: dockerfile.DefaultPort, Usage: "port the app listens on"},
					&cli.StringFlag{Name: "base-image", Value: dockerfile.DefaultBaseImage, Usage: "build stage image"},
					&cli.StringFlag{Name: "runtime-image", Value: dockerfile.DefaultRuntimeImage, Usage: "runtime stage image (multi only)"},
				},
				Action: func(c *cli.Context) error {
					variant, err := dockerfile.ParseVariant(c.String("variant"))
					if err != nil {
						return err
					}

					params := dockerfile.DefaultParams(c.String("binary"))
					params.BaseImage = c.String("base-image")
					params.RuntimeImage = c.String("runtime-image")
					params.Port = c.Int("port")

					out, err := dockerfile.Render(variant, params)
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(out)
					return err
				},
			},
			{
				Name:  "compose",
				Usage: "print the compose file for the visit counter stack",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Value: "counter-app", Usage: "compose project name"},
				},
				Action: func(c *cli.Context) error {
					project := compose.CounterProject(c.String("project"))
					if err := project.Validate(); err != nil {
						return err
					}

					out, err := project.Marshal()
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(out)
					return err
				},
			},
			{
				Name:  "policy",
				Usage: "print the public-read bucket policy",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "bucket", Required: true, Usage: "bucket name"},
				},
				Action: func(c *cli.Context) error {
					out, err := policy.PublicReadPolicy(c.String("bucket")).Marshal()
					if err != nil {
						return err
					}
					out = append(out, '\n')
					_, err = os.Stdout.Write(out)
					return err
				},
			},
			{
				Name:  "userdata",
				Usage: "print an EC2 bootstrap script",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Value: string(userdata.KindApache), Usage: "apache or docker"},
					&cli.StringFlag{Name: "project", Value: "web-app", Usage: "project name for the defaults"},
					&cli.StringFlag{Name: "title", Usage: "page title (apache)"},
					&cli.StringFlag{Name: "message", Usage: "page heading (apache)"},
					&cli.StringFlag{Name: "app-image", Usage: "image to run on boot (docker)"},
					&cli.IntFlag{Name: "app-port", Usage: "container port published on host port 80 (docker)"},
				},
				Action: func(c *cli.Context) error {
					kind, err := userdata.ParseKind(c.String("kind"))
					if err != nil {
						return err
					}

					content := userdata.DefaultContent(c.String("project"))
					if v := c.String("title"); v != "" {
						content.SiteTitle = v
					}
					if v := c.String("message"); v != "" {
						content.Message = v
					}
					content.AppImage = c.String("app-image")
					if v := c.Int("app-port"); v != 0 {
						content.AppPort = v
					}

					out, err := userdata.Render(kind, content)
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(out)
					return err
				},
			},
			{
				Name:  "site",
				Usage: "write the static site files to a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: "./site", Usage: "output directory"},
					&cli.StringFlag{Name: "project", Value: "web-app", Usage: "project name for the defaults"},
					&cli.StringFlag{Name: "title", Usage: "page title"},
					&cli.StringFlag{Name: "heading", Usage: "page heading"},
					&cli.StringFlag{Name: "message", Usage: "page message"},
				},
				Action: func(c *cli.Context) error {
					params := assets.DefaultSiteParams(c.String("project"))
					if v := c.String("title"); v != "" {
						params.Title = v
					}
					if v := c.String("heading"); v != "" {
						params.Heading = v
					}
					if v := c.String("message"); v != "" {
						params.Message = v
					}

					files, err := assets.RenderSite(c.String("dir"), params)
					if err != nil {
						return err
					}

					logger.Get().Info().
						Str("dir", c.String("dir")).
						Strs("files", files).
						Msg("site rendered")
					return nil
				},
			},
		},
	}
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "run the sample web apps locally",
		Subcommands: []*cli.Command{
			{
				Name:  "greeting",
				Usage: "serve the fixed-route greeting app",
				Flags: []cli.Flag{addrFlag()},
				Action: func(c *cli.Context) error {
					log := logger.Get()
					e := demoapp.NewGreeting(*log)
					return demoapp.Serve(e, c.String("addr"), *log)
				},
			},
			{
				Name:  "counter",
				Usage: "serve the redis-backed visit counter app",
				Flags: []cli.Flag{
					addrFlag(),
					&cli.StringFlag{
						Name:    "redis",
						Value:   "localhost:6379",
						Usage:   "redis address (host:port)",
						EnvVars: []string{"REDIS_ADDR"},
					},
				},
				Action: func(c *cli.Context) error {
					log := logger.Get()

					hits := demoapp.NewRedisCounter(c.String("redis"))
					defer hits.Close()

					e := demoapp.NewCounter(hits, *log)
					return demoapp.Serve(e, c.String("addr"), *log)
				},
			},
		},
	}
}

func addrFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "addr",
		Value:   demoapp.DefaultAddr,
		Usage:   "listen address",
		EnvVars: []string{"ADDR"},
	}
}
