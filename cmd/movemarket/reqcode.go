package main

import (
	"fmt"

	"movemarket/internal/utils"

	"github.com/urfave/cli/v2"
)

var reqcodeCommand = &cli.Command{
	Name:  "reqcode",
	Usage: "Generate request codes for use in seed files",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Number of codes to generate",
			Value:   1,
		},
	},
	Action: func(c *cli.Context) error {
		count := c.Int("count")
		for range count {
			fmt.Println(utils.RequestCode())
		}
		return nil
	},
}
