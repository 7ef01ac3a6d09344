package iso7816

// TRANSACTION:
// A Transaction is the atomic unit of communication defined in ISO
// 7816-3: one Command APDU sent by the host, one Response APDU sent
// back by the card.
//
// TRACE:
// A Trace is the chronological sequence of Transactions that fulfilled
// one logical request. A single intent (e.g. "sign this digest") may
// take several physical exchanges when the card answers 61XX (more
// data, fetched with GET RESPONSE) or 6CXX (wrong length, command
// re-sent). The Trace keeps the whole conversation: Status() is the
// terminal outcome and Payload() the reassembled response data.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions representing the full history of
// a logical exchange, including 61XX/6CXX handling.
type Trace []Transaction

// Last returns the final transaction of the trace, or nil if empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// Status returns the terminal status word of the exchange, the one the
// caller dispatches on. Empty traces report 0x6F00.
func (t Trace) Status() StatusWord {
	last := t.Last()
	if last == nil || last.Response == nil {
		return SWErrUnknown
	}
	return last.Response.Status
}

// Payload concatenates the response data of every transaction in
// order, reassembling a payload the card delivered across GET RESPONSE
// continuations into one logical buffer.
func (t Trace) Payload() []byte {
	var out []byte
	for i := range t {
		if resp := t[i].Response; resp != nil {
			out = append(out, resp.Data...)
		}
	}
	return out
}

// IsSuccess checks if the FINAL transaction in the trace was
// successful, which decides the overall logical operation regardless
// of intermediate 61XX warnings.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}
