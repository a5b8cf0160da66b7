package server

import (
	"github.com/presbrey/ircd/irc"
)

// Handler executes one command for a session. Returning an *irc.Error
// replies to the client and keeps the session running; any other error ends
// the session.
type Handler func(ctx *Context, msg *irc.Message) error

// Context is what a handler sees of the session that received the command
type Context struct {
	session    *Session
	controller *Controller
}

// Session returns the session that received the command
func (c *Context) Session() *Session {
	return c.session
}

// Controller returns the controller owning the session
func (c *Context) Controller() *Controller {
	return c.controller
}

// Limits returns the configured name bounds
func (c *Context) Limits() irc.Limits {
	return c.controller.limits
}

// ServerName returns the server's name
func (c *Context) ServerName() string {
	return c.controller.ServerName()
}

// SendError queues err as a numeric reply to the session
func (c *Context) SendError(err *irc.Error) {
	c.session.Enqueue(err.Message(c.controller.ServerName()))
}

// SendCommand queues a command from the server
func (c *Context) SendCommand(command string, params []string, trailing string) {
	c.session.Enqueue(irc.NewMessage(c.controller.serverPrefix(), command, params, trailing))
}

// SendCommandFromUser queues a command that appears to come from user
func (c *Context) SendCommandFromUser(user irc.UserID, command string, params []string, trailing string) {
	c.session.Enqueue(irc.NewMessage(user.Prefix(), command, params, trailing))
}

// SendReply queues a numeric reply from the server
func (c *Context) SendReply(reply irc.Reply, params []string, trailing string) {
	c.SendCommand(reply.String(), params, trailing)
}

// Nick returns the session's nickname or ErrNotRegistered
func (c *Context) Nick() (irc.Nickname, error) {
	nick, ok := c.controller.Nickname(c.session)
	if !ok {
		return irc.Nickname{}, irc.ErrNotRegistered()
	}
	return nick, nil
}

// UserID returns the session's nick!user@host or ErrNotRegistered
func (c *Context) UserID() (irc.UserID, error) {
	uid, ok := c.controller.UserID(c.session)
	if !ok {
		return irc.UserID{}, irc.ErrNotRegistered()
	}
	return uid, nil
}
