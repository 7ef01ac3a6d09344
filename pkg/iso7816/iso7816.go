/*
Package iso7816 implements the APDU command/response layer used to talk
to the PIV applet on a smart card, according to ISO/IEC 7816-3 and -4.

# Fundamentals

Communication with a smart card is strictly synchronous:
 1. The host sends a Command APDU (Header + Optional Body).
 2. The card processes it and returns a Response APDU (Optional Body +
    Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but XX more response bytes are available.
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error and warning conditions.

# Continuation

When a card answers 61XX it holds more data than fit in one response.
The Client in this package issues GET RESPONSE commands until a terminal
status word arrives, and Trace.Payload reassembles the chunks into one
logical payload. Higher layers never see a partial response; this is the
only place raw transmission happens.
*/
package iso7816
