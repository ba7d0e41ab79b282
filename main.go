package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/williamokano/web_deployer/pkg/logger"

	// Import tasks to register them
	_ "github.com/williamokano/web_deployer/pkg/task/composeapp"
	_ "github.com/williamokano/web_deployer/pkg/task/dockerbuild"
	_ "github.com/williamokano/web_deployer/pkg/task/dockernetwork"
	_ "github.com/williamokano/web_deployer/pkg/task/dockervolume"
	_ "github.com/williamokano/web_deployer/pkg/task/ec2host"
	_ "github.com/williamokano/web_deployer/pkg/task/ecrpush"
	_ "github.com/williamokano/web_deployer/pkg/task/ecsservice"
	_ "github.com/williamokano/web_deployer/pkg/task/s3site"
)

func main() {
	// Default logger until the config is loaded
	logger.Init("info", "json")

	app := &cli.App{
		Name:  "web_deployer",
		Usage: "deploy the course web apps to AWS and local Docker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./web_deployer.json",
				Usage:   "path to the configuration file",
				EnvVars: []string{"WEB_DEPLOYER_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			historyCommand(),
			renderCommand(),
			demoCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Get().Fatal().Err(err).Msg("web_deployer failed")
	}
}
