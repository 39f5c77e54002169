package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lcpu-club/hpccontainer/common/version"
	"github.com/lcpu-club/hpccontainer/probe"
	"github.com/urfave/cli/v3"
)

func main() {
	app := cli.NewApp()
	app.Name = "hpc-container-memprobe"
	app.Usage = "Check the memory and CPU limits of a container"
	app.Version = version.Version
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "first",
			Usage: "Size of the block expected to fit",
			Value: "512MiB",
		},
		&cli.StringFlag{
			Name:  "second",
			Usage: "Size of the block expected to be refused",
			Value: "1GiB",
		},
		&cli.BoolFlag{
			Name:  "touch",
			Usage: "Write to every page of the blocks",
		},
		&cli.BoolFlag{
			Name:  "spin",
			Usage: "Burn CPU afterwards until killed",
		},
	}
	app.Action = func(ctx *cli.Context) error {
		fmt.Printf("My args: %v\n", strings.Join(os.Args, ","))
		first, err := humanize.ParseBytes(ctx.String("first"))
		if err != nil {
			return err
		}
		second, err := humanize.ParseBytes(ctx.String("second"))
		if err != nil {
			return err
		}
		b, err := probe.Allocate(first)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not allocate %v of memory: %v\n", humanize.IBytes(first), err)
		} else if ctx.Bool("touch") {
			b.Touch()
		}
		b2, err := probe.Allocate(second)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed as expected: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Allocation of %v did not fail\n", humanize.IBytes(second))
			if ctx.Bool("touch") {
				b2.Touch()
			}
		}
		if ctx.Bool("spin") {
			probe.Spin()
		}
		return nil
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}
