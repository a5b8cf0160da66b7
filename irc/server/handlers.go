package server

import (
	"strconv"
	"strings"

	"github.com/presbrey/ircd/irc"
)

// Handle registers h for command, replacing any existing handler
func (c *Controller) Handle(command string, h Handler) {
	if c.handlers == nil {
		c.handlers = make(map[string]Handler)
	}
	c.handlers[strings.ToUpper(command)] = h
}

func (c *Controller) handler(command string) (Handler, bool) {
	h, ok := c.handlers[command]
	return h, ok
}

// registerDefaultHandlers registers the built-in commands
func (c *Controller) registerDefaultHandlers() {
	c.Handle("NICK", handleNick)
	c.Handle("USER", handleUser)
	c.Handle("JOIN", handleJoin)
	c.Handle("PART", handlePart)
	c.Handle("TOPIC", handleTopic)
	c.Handle("PRIVMSG", handlePrivmsg)
	c.Handle("NOTICE", handleNotice)
	c.Handle("NAMES", handleNames)
	c.Handle("LIST", handleList)
	c.Handle("QUIT", handleQuit)

	c.Handle("PING", handlePing)
	c.Handle("PONG", handlePong)
	c.Handle("VERSION", handleVersion)
	c.Handle("MOTD", handleMotd)
	c.Handle("CAP", handleCap)
	c.Handle("MODE", handleMode)
	c.Handle("STATS", handleStats)
}

// arguments returns the positional parameters followed by the trailing
// text, so that "NICK x" and "NICK :x" read the same
func arguments(msg *irc.Message) []string {
	args := append([]string{}, msg.Params...)
	if msg.HasTrailing() {
		args = append(args, msg.Text())
	}
	return args
}

// handleNick handles the NICK command
func handleNick(ctx *Context, msg *irc.Message) error {
	var requested string
	if args := arguments(msg); len(args) > 0 {
		requested = args[0]
	}

	nick, err := ctx.Limits().Nickname(requested)
	if err != nil {
		return err
	}

	_, renamed, err := ctx.Controller().SetNickname(ctx.Session(), nick)
	if err != nil {
		return err
	}

	if !renamed {
		ctx.SendReply(irc.RPL_WELCOME, []string{nick.String()}, "")
	}
	return nil
}

// handleUser handles the USER command
func handleUser(ctx *Context, msg *irc.Message) error {
	var requested string
	if args := arguments(msg); len(args) > 0 {
		requested = args[0]
	}

	user, err := ctx.Limits().UserName(requested)
	if err != nil {
		return err
	}

	ctx.Session().SetUser(user)
	return nil
}

// handleJoin handles the JOIN command
func handleJoin(ctx *Context, msg *irc.Message) error {
	args := arguments(msg)
	if len(args) < 1 {
		return irc.ErrNeedMoreParameters()
	}

	nick, err := ctx.Nick()
	if err != nil {
		return err
	}

	for _, requested := range strings.Split(args[0], ",") {
		if err := joinChannel(ctx, nick, requested); err != nil {
			return err
		}
	}
	return nil
}

func joinChannel(ctx *Context, nick irc.Nickname, requested string) error {
	name, err := ctx.Limits().ChannelName(requested)
	if err != nil {
		return err
	}

	result, err := ctx.Controller().JoinChannel(ctx.Session(), name)
	if err != nil {
		return err
	}

	ctx.SendReply(irc.RPL_TOPIC, []string{nick.String(), name.String()}, irc.Trailing(result.Channel.Topic.String()))
	sendNames(ctx, nick, name, result.Nicks)
	return nil
}

// sendNames sends one RPL_NAMREPLY per member followed by RPL_ENDOFNAMES
func sendNames(ctx *Context, nick irc.Nickname, name irc.ChannelName, members []irc.Nickname) {
	for _, member := range members {
		ctx.SendReply(irc.RPL_NAMREPLY, []string{nick.String(), "=", name.String()}, irc.Trailing(member.String()))
	}
	ctx.SendReply(irc.RPL_ENDOFNAMES, []string{nick.String(), name.String()}, "")
}

// handlePart handles the PART command
func handlePart(ctx *Context, msg *irc.Message) error {
	if len(msg.Params) < 1 {
		return irc.ErrNeedMoreParameters()
	}

	if _, err := ctx.Nick(); err != nil {
		return err
	}

	for _, requested := range strings.Split(msg.Params[0], ",") {
		name, err := ctx.Limits().ChannelName(requested)
		if err != nil {
			return err
		}
		if _, err := ctx.Controller().PartChannel(ctx.Session(), name); err != nil {
			return err
		}
	}
	return nil
}

// handleTopic handles the TOPIC command. Without a trailing parameter it
// reports the topic, with one it sets it.
func handleTopic(ctx *Context, msg *irc.Message) error {
	if len(msg.Params) < 1 {
		return irc.ErrNeedMoreParameters()
	}

	nick, err := ctx.Nick()
	if err != nil {
		return err
	}

	name, err := ctx.Limits().ChannelName(msg.Params[0])
	if err != nil {
		return err
	}

	if !msg.HasTrailing() {
		topic := ctx.Controller().Topic(name)
		ctx.SendReply(irc.RPL_TOPIC, []string{nick.String(), name.String()}, irc.Trailing(topic.String()))
		return nil
	}

	topic, err := ctx.Limits().Topic(msg.Text())
	if err != nil {
		return err
	}
	return ctx.Controller().SetTopic(ctx.Session(), name, topic)
}

// handlePrivmsg handles the PRIVMSG command
func handlePrivmsg(ctx *Context, msg *irc.Message) error {
	if len(msg.Params) < 1 || !msg.HasTrailing() {
		return irc.ErrNeedMoreParameters()
	}

	if _, err := ctx.Nick(); err != nil {
		return err
	}

	target := msg.Params[0]
	if strings.HasPrefix(target, "#") {
		name, err := ctx.Limits().ChannelName(target)
		if err != nil {
			return err
		}
		return ctx.Controller().SendChannelMessage(ctx.Session(), name, msg.Text())
	}

	nick, err := ctx.Limits().Nickname(target)
	if err != nil {
		return err
	}
	return ctx.Controller().SendDirectMessage(ctx.Session(), nick, msg.Text())
}

// handleNotice handles the NOTICE command. Failures are never reported
// back to the sender.
func handleNotice(ctx *Context, msg *irc.Message) error {
	if len(msg.Params) < 1 || !msg.HasTrailing() {
		return nil
	}
	if _, err := ctx.Nick(); err != nil {
		return nil
	}

	target := msg.Params[0]
	if strings.HasPrefix(target, "#") {
		if name, err := ctx.Limits().ChannelName(target); err == nil {
			ctx.Controller().SendChannelNotice(ctx.Session(), name, msg.Text())
		}
		return nil
	}

	if nick, err := ctx.Limits().Nickname(target); err == nil {
		ctx.Controller().SendDirectNotice(ctx.Session(), nick, msg.Text())
	}
	return nil
}

// handleNames handles the NAMES command
func handleNames(ctx *Context, msg *irc.Message) error {
	if len(msg.Params) < 1 {
		return irc.ErrNeedMoreParameters()
	}

	nick, err := ctx.Nick()
	if err != nil {
		return err
	}

	for _, requested := range strings.Split(msg.Params[0], ",") {
		name, err := ctx.Limits().ChannelName(requested)
		if err != nil {
			return err
		}
		sendNames(ctx, nick, name, ctx.Controller().ChannelNicks(name))
	}
	return nil
}

// handleList handles the LIST command
func handleList(ctx *Context, msg *irc.Message) error {
	nick, err := ctx.Nick()
	if err != nil {
		return err
	}

	ctx.SendReply(irc.RPL_LISTSTART, []string{nick.String(), "Channel"}, irc.Trailing("Users Name"))
	for _, ch := range ctx.Controller().Channels() {
		ctx.SendReply(irc.RPL_LIST,
			[]string{nick.String(), ch.Name.String(), strconv.Itoa(ch.Members)},
			irc.Trailing(ch.Topic.String()))
	}
	ctx.SendReply(irc.RPL_LISTEND, []string{nick.String()}, irc.Trailing("End of /LIST"))
	return nil
}

// handleQuit handles the QUIT command
func handleQuit(ctx *Context, msg *irc.Message) error {
	if msg.HasTrailing() {
		ctx.Session().setQuitReason(msg.Text())
	}
	return errQuit
}
