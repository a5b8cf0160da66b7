package irc

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Default bounds for validated names
const (
	DefaultNickLength    = 30
	DefaultChannelLength = 50
	DefaultTopicLength   = 50
	DefaultUserLength    = 30

	// DefaultUser is the display user of a session that has not sent USER
	DefaultUser = "anonymous"
)

// Limits bounds the length of validated names. It is the only way to
// produce a Nickname, ChannelName, Topic or UserName.
type Limits struct {
	NickLength    int
	ChannelLength int
	TopicLength   int
	UserLength    int
}

// DefaultLimits returns the default name bounds
func DefaultLimits() Limits {
	return Limits{
		NickLength:    DefaultNickLength,
		ChannelLength: DefaultChannelLength,
		TopicLength:   DefaultTopicLength,
		UserLength:    DefaultUserLength,
	}
}

// Nickname is a validated, case-sensitive nickname
type Nickname struct{ name string }

// ChannelName is a validated channel name including its '#'
type ChannelName struct{ name string }

// Topic is a validated channel topic; the zero value is the empty topic
type Topic struct{ text string }

// UserName is a validated user (ident) name
type UserName struct{ name string }

func (n Nickname) String() string    { return n.name }
func (c ChannelName) String() string { return c.name }
func (t Topic) String() string       { return t.text }
func (u UserName) String() string    { return u.name }

// IsZero reports whether the nickname is unset
func (n Nickname) IsZero() bool { return n.name == "" }

// Nickname validates a nickname
func (l Limits) Nickname(s string) (Nickname, error) {
	if s == "" || len(s) > l.NickLength || !isValidNickname(s) {
		return Nickname{}, ErrNickInvalid()
	}
	return Nickname{name: s}, nil
}

// ChannelName validates a channel name
func (l Limits) ChannelName(s string) (ChannelName, error) {
	if len(s) < 2 || len(s) > l.ChannelLength || s[0] != '#' {
		return ChannelName{}, ErrChannelInvalid()
	}
	if strings.ContainsAny(s, " ,:\x00\x07\r\n") {
		return ChannelName{}, ErrChannelInvalid()
	}
	return ChannelName{name: s}, nil
}

// Topic validates a channel topic
func (l Limits) Topic(s string) (Topic, error) {
	if len(s) > l.TopicLength || strings.ContainsAny(s, "\x00\r\n") {
		return Topic{}, ErrTopicInvalid()
	}
	return Topic{text: s}, nil
}

// UserName validates a user name
func (l Limits) UserName(s string) (UserName, error) {
	if s == "" || len(s) > l.UserLength {
		return UserName{}, ErrUserInvalid()
	}
	for _, c := range s {
		if !isLetter(c) && !isDigit(c) && !strings.ContainsRune("-_.~", c) {
			return UserName{}, ErrUserInvalid()
		}
	}
	return UserName{name: s}, nil
}

// AnonymousUser is the user name every session starts with
func AnonymousUser() UserName {
	return UserName{name: DefaultUser}
}

func isValidNickname(nick string) bool {
	for i, c := range nick {
		switch {
		case isLetter(c), isSpecial(c):
		case i > 0 && (isDigit(c) || c == '-'):
		default:
			return false
		}
	}
	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isSpecial(c rune) bool {
	return strings.ContainsRune("[]\\`_^{|}", c)
}

// ConnectionID identifies one live connection. It doubles as the host part
// of the connection's user id.
type ConnectionID uint32

func (id ConnectionID) String() string {
	return fmt.Sprintf("%08x", uint32(id))
}

// RandomConnectionID draws a connection id from a fresh random UUID
func RandomConnectionID() ConnectionID {
	return ConnectionID(uuid.New().ID())
}

// UserID is the nick!user@host identity used as the prefix of relays
type UserID struct {
	Nick Nickname
	User UserName
	Host string
}

func (u UserID) String() string {
	return FormatHostmask(u.Nick.String(), u.User.String(), u.Host)
}

// Prefix returns the identity as a message prefix
func (u UserID) Prefix() string {
	return ":" + u.String()
}
