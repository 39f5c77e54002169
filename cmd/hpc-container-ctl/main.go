package main

import (
	"log"
	"os"

	"github.com/lcpu-club/hpccontainer/common/version"
	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/utilitycmd"
	"github.com/urfave/cli/v3"
)

func main() {
	app := cli.NewApp()
	app.Name = "hpc-container-ctl"
	app.Usage = "Inspect and manage hpc-container instances"
	app.Version = version.Version
	app.Authors = []*cli.Author{}
	for _, author := range version.Authors {
		app.Authors = append(app.Authors, &cli.Author{Name: author[0], Email: author[1]})
	}
	app.Flags = append(app.Flags, &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c", "conf"},
		Usage:   "Configure file path (default: $HPC_CONTAINER_CONFIG or /etc/hpc-container.yml)",
	})
	cmd := utilitycmd.NewCommand()
	app.Before = func(ctx *cli.Context) error {
		var conf *configure.Configure
		var err error
		if path := ctx.String("config"); path != "" {
			conf, err = configure.LoadConfigure(path)
		} else {
			conf, err = configure.Resolve()
		}
		if err != nil {
			return err
		}
		return cmd.Init(conf)
	}
	app.Commands = []*cli.Command{
		{
			Name:  "ps",
			Usage: "List running containers",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "job",
					Usage: "Classify containers relative to this job id",
				},
			},
			Action: cmd.HandlePs,
		},
		{
			Name:      "kill-job",
			Usage:     "Signal every container of a job",
			ArgsUsage: "JOB_ID",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "signal",
					Usage: "Signal to send (default: kill-signal from the configure file)",
				},
			},
			Action: cmd.HandleKillJob,
		},
		{
			Name:   "gen-job-id",
			Usage:  "Print a new job id, ordered after every id generated before it",
			Action: cmd.HandleGenJobID,
		},
		{
			Name:      "race",
			Usage:     "Start several copies of a command at the same instant",
			ArgsUsage: "N -- COMMAND [ARGS...]",
			Action:    cmd.HandleRace,
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}
