package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pivkey/pivsign/pkg/ecsig"
	"github.com/pivkey/pivsign/pkg/piv"
)

// GenerateCommand generates a fresh P-256 key pair in a slot. The
// existing key and certificate in that slot are replaced.
func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a new P-256 key pair in a slot",
		Flags: []cli.Flag{
			slotFlag(),
			&cli.StringFlag{
				Name:  "management-key",
				Usage: "24-byte management key in hex (default: factory key)",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	slot, err := piv.ParseSlot(cmd.String("slot"))
	if err != nil {
		return err
	}
	key, err := parseManagementKey(cmd.String("management-key"))
	if err != nil {
		return err
	}

	return withToken(cmd, func(token *piv.Token) error {
		pub, err := token.GenerateKey(slot, key)
		if err != nil {
			return fmt.Errorf("generating key in slot %s: %w", slot, err)
		}

		address := ecsig.DeriveAddress(pub.X, pub.Y)
		fmt.Printf("Slot:       %s\n", slot)
		fmt.Printf("Public key: %x\n", pub.Point())
		fmt.Printf("Address:    %x\n", address)
		return nil
	})
}
