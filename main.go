package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pivkey/pivsign/cmd"
)

func main() {
	app := &cli.Command{
		Name:  "pivsign",
		Usage: "ECDSA signing with PIV smart cards",
		Flags: []cli.Flag{
			cmd.VerboseFlag(),
		},
		Commands: []*cli.Command{
			cmd.StatusCommand(),
			cmd.GenerateCommand(),
			cmd.SignCommand(),
			cmd.AddressCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
