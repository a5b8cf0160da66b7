/*
Package irc holds the protocol vocabulary shared by the ircd packages.

# Messages

ParseMessage turns one protocol line into a Message and Message.String turns
it back into wire form. Parsing never fails; a blank line yields nil and any
other input yields whatever tags, prefix, command, parameters and trailing
parameter could be extracted. The prefix and trailing fields keep their
leading colon, so formatting a parsed message reproduces the command,
parameters and trailing text exactly.

# Names

Nicknames, channel names, topics and user names are validated value types.
The only way to obtain one is through a Limits value:

	limits := irc.DefaultLimits()
	nick, err := limits.Nickname("alice")

A failed validation returns an *Error of kind InvalidName carrying the numeric
reply that tells the client what was wrong.

# Errors

Every client-facing failure is an *Error with a Kind and a numeric Reply
code. Errors are values: command handlers return them, the session turns
them into a single reply to the originating client and keeps reading.
*/
package irc
