package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pivkey/pivsign/pkg/piv"
)

// AddressCommand derives the address of the public key stored in a
// slot.
func AddressCommand() *cli.Command {
	return &cli.Command{
		Name:  "address",
		Usage: "Derive the address of a slot's public key",
		Flags: []cli.Flag{
			slotFlag(),
		},
		Action: runAddress,
	}
}

func runAddress(ctx context.Context, cmd *cli.Command) error {
	slot, err := piv.ParseSlot(cmd.String("slot"))
	if err != nil {
		return err
	}

	return withToken(cmd, func(token *piv.Token) error {
		address, found, err := token.Address(slot)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("slot %s holds no key", slot)
		}

		fmt.Printf("%x\n", address)
		return nil
	})
}
