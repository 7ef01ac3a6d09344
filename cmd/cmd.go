// Package cmd holds the CLI commands. Each command opens its own token
// connection for the duration of the action.
package cmd

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/urfave/cli/v3"

	"github.com/pivkey/pivsign/pkg/ecsig"
	"github.com/pivkey/pivsign/pkg/piv"
)

func slotFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "slot",
		Usage: "PIV key slot (9a, 9c, 9d or 9e)",
		Value: "9a",
	}
}

// VerboseFlag enables the raw APDU trace dump. It is declared on the
// root command so every subcommand inherits it.
func VerboseFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Dump every APDU exchange",
	}
}

// withToken connects to the card, selects the applet, runs fn and
// disconnects on every path.
func withToken(cmd *cli.Command, fn func(*piv.Token) error) error {
	token := piv.NewToken()
	if cmd.Bool("verbose") {
		token.SetLogf(log.Printf)
	}

	if err := token.Connect(); err != nil {
		return err
	}
	defer token.Disconnect()

	return fn(token)
}

func parseManagementKey(s string) ([24]byte, error) {
	if s == "" {
		return piv.DefaultManagementKey, nil
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return [24]byte{}, fmt.Errorf("management key is not valid hex: %w", err)
	}
	if len(raw) != 24 {
		return [24]byte{}, fmt.Errorf("management key must be 24 bytes, got %d", len(raw))
	}

	var key [24]byte
	copy(key[:], raw)
	return key, nil
}

func addressOf(info *piv.KeyInfo) [20]byte {
	return ecsig.DeriveAddress(info.Public.X, info.Public.Y)
}
