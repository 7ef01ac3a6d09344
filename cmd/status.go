package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pivkey/pivsign/pkg/piv"
)

// StatusCommand reports the connected reader, the PIN retry counter
// and the key material present in each slot.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show reader, PIN counter and slot contents",
		Action: runStatus,
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	return withToken(cmd, func(token *piv.Token) error {
		fmt.Printf("Reader: %s\n", token.Reader())

		retries, err := token.PINRetries()
		switch {
		case errors.Is(err, piv.ErrPINBlocked):
			fmt.Println("PIN:    blocked")
		case err != nil:
			return err
		case retries < 0:
			fmt.Println("PIN:    verified")
		default:
			fmt.Printf("PIN:    %d retries remaining\n", retries)
		}

		slots := []piv.Slot{
			piv.SlotAuthentication,
			piv.SlotSignature,
			piv.SlotKeyManagement,
			piv.SlotCardAuthentication,
		}
		for _, slot := range slots {
			info, found, err := token.ReadPublicKey(slot)
			if err != nil {
				fmt.Printf("Slot %s: error: %v\n", slot, err)
				continue
			}
			if !found {
				fmt.Printf("Slot %s: empty\n", slot)
				continue
			}
			fmt.Printf("Slot %s: key present (%s), address %x\n",
				slot, info.Confidence, addressOf(info))
		}
		return nil
	})
}
