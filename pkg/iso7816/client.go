package iso7816

import (
	"fmt"
)

// CLIENT & PROTOCOL LOGIC:
// The Client is the high-level driver over the physical connection and
// the only component that performs raw transmission. It absorbs two
// transport behaviors that would otherwise leak into the PIV layer:
//
// 1. "61 XX" (Response Available): the card indicates XX bytes are
//    waiting. The client sends GET RESPONSE and appends the chunk.
// 2. "6C XX" (Wrong Length): the card rejects the expected length and
//    suggests XX. The client re-sends the command with Le = XX.
//
// Send() returns the Trace of every atomic transaction that occurred
// to fulfill the logical request.

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter

	// Logf, when set, receives one line per raw exchange for
	// diagnostics.
	Logf func(format string, args ...any)
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Send transmits a command and handles protocol logic (61XX, 6CXX).
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	if c.Logf != nil {
		c.Logf(">> % X", rawCmd)
		c.Logf("<< % X [%s]", rawResp, resp.Status.Verbose())
	}

	trace := Trace{{Command: cmd, Response: resp}}

	// Case 61XX: more data available, fetch it with GET RESPONSE.
	if resp.Status.HasMoreData() {
		getResp := NewCommandAPDU(InsGetResponse, 0x00, 0x00, nil, int(resp.Status.SW2()))

		subTrace, err := c.Send(getResp)
		if err != nil {
			return trace, err
		}
		return append(trace, subTrace...), nil
	}

	// Case 6CXX: wrong length, re-issue with the corrected Le.
	// Clone so the caller's command is not mutated.
	if resp.Status.IsWrongLength() {
		newCmd := *cmd
		newCmd.Ne = int(resp.Status.SW2())

		subTrace, err := c.Send(&newCmd)
		if err != nil {
			return trace, err
		}
		return append(trace, subTrace...), nil
	}

	return trace, nil
}
