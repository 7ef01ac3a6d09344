package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pivkey/pivsign/pkg/piv"
)

// SignCommand signs a caller-supplied 32-byte digest with a slot's
// private key. The digest is signed as-is; hashing the message is the
// caller's business.
func SignCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign a 32-byte digest with a slot's key",
		Flags: []cli.Flag{
			slotFlag(),
			&cli.StringFlag{
				Name:     "hash",
				Usage:    "32-byte digest in hex",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "pin",
				Usage:    "PIV PIN",
				Required: true,
			},
		},
		Action: runSign,
	}
}

func runSign(ctx context.Context, cmd *cli.Command) error {
	slot, err := piv.ParseSlot(cmd.String("slot"))
	if err != nil {
		return err
	}

	hash, err := hex.DecodeString(cmd.String("hash"))
	if err != nil {
		return fmt.Errorf("digest is not valid hex: %w", err)
	}
	if len(hash) != 32 {
		return fmt.Errorf("digest must be 32 bytes, got %d", len(hash))
	}

	pin := cmd.String("pin")

	return withToken(cmd, func(token *piv.Token) error {
		if err := token.VerifyPIN(pin); err != nil {
			return err
		}

		sig, err := token.SignHash(slot, hash)
		if err != nil {
			return fmt.Errorf("signing with slot %s: %w", slot, err)
		}

		fmt.Printf("r: %x\n", sig.R)
		fmt.Printf("s: %x\n", sig.S)
		fmt.Printf("signature: %x\n", sig.Bytes())
		return nil
	})
}
