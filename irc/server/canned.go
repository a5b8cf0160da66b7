package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/presbrey/ircd/irc"
)

// handlePing handles the PING command
func handlePing(ctx *Context, msg *irc.Message) error {
	ctx.SendCommand("PONG", []string{ctx.ServerName()}, "")
	return nil
}

// handlePong handles the PONG command
func handlePong(ctx *Context, msg *irc.Message) error {
	return nil
}

// handleVersion handles the VERSION command
func handleVersion(ctx *Context, msg *irc.Message) error {
	ctx.SendReply(irc.RPL_VERSION, nil, irc.Trailing(" "+ctx.Controller().Config().Server.Banner))
	return nil
}

// handleMotd handles the MOTD command
func handleMotd(ctx *Context, msg *irc.Message) error {
	ctx.SendReply(irc.RPL_MOTDSTART, nil, irc.Trailing(fmt.Sprintf(" %s message of the day:", ctx.ServerName())))
	for _, line := range ctx.Controller().Config().Server.MOTD {
		ctx.SendReply(irc.RPL_MOTD, nil, irc.Trailing(" "+line))
	}
	ctx.SendReply(irc.RPL_ENDOFMOTD, nil, "")
	return nil
}

// handleCap handles the CAP command. No capabilities are offered.
func handleCap(ctx *Context, msg *irc.Message) error {
	args := arguments(msg)
	if len(args) < 1 {
		return irc.ErrNeedMoreParameters()
	}

	if strings.EqualFold(args[0], "LS") {
		ctx.SendCommand("CAP", []string{"*", "LS"}, irc.Trailing(""))
	}
	return nil
}

// handleMode handles the MODE command. Modes are not supported; the reply
// always reports an empty user mode.
func handleMode(ctx *Context, msg *irc.Message) error {
	if len(arguments(msg)) < 1 {
		return irc.ErrNeedMoreParameters()
	}

	ctx.SendReply(irc.RPL_UMODEIS, nil, "")
	return nil
}

// handleStats handles the STATS command
func handleStats(ctx *Context, msg *irc.Message) error {
	controller := ctx.Controller()

	var query string
	if args := arguments(msg); len(args) > 0 {
		query = args[0]
	}

	switch query {
	case "c":
		ctx.SendReply(irc.RPL_STATSGENERIC, nil, irc.Trailing(fmt.Sprintf(" Clients:  %d connected", controller.ClientCount())))
		ctx.SendReply(irc.RPL_STATSGENERIC, nil, irc.Trailing(fmt.Sprintf(" Channels: %d", controller.ChannelCount())))
	case "u":
		ctx.SendReply(irc.RPL_STATSUPTIME, nil, irc.Trailing(" Uptime: "+controller.Uptime().Truncate(time.Second).String()))
	}

	ctx.SendReply(irc.RPL_ENDOFSTATS, nil, "")
	return nil
}
