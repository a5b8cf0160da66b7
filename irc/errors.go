package irc

import "strings"

// ErrorKind classifies protocol errors reported back to a client
type ErrorKind int

const (
	InvalidName ErrorKind = iota
	NameCollision
	NicknameNonexistent
	ChannelNonexistent
	NotInChannel
	NeedMoreParameters
	CommandUnknown
	NotRegistered
)

var errorKindNames = map[ErrorKind]string{
	InvalidName:         "InvalidName",
	NameCollision:       "NameCollision",
	NicknameNonexistent: "NicknameNonexistent",
	ChannelNonexistent:  "ChannelNonexistent",
	NotInChannel:        "NotInChannel",
	NeedMoreParameters:  "NeedMoreParameters",
	CommandUnknown:      "CommandUnknown",
	NotRegistered:       "NotRegistered",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is a protocol error. It is delivered only to the session that
// caused it and never ends that session.
type Error struct {
	Kind   ErrorKind
	Code   Reply
	Params []string
	Text   string
}

func (e *Error) Error() string {
	var builder strings.Builder
	builder.WriteString(e.Code.String())
	for _, p := range e.Params {
		builder.WriteByte(' ')
		builder.WriteString(p)
	}
	builder.WriteString(" :")
	builder.WriteString(e.Text)
	return builder.String()
}

// Message formats the error as a numeric reply from the named server
func (e *Error) Message(serverName string) *Message {
	return NewMessage(":"+serverName, e.Code.String(), e.Params, Trailing(e.Text))
}

// Is matches errors of the same kind, code and text regardless of params
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code && t.Text == e.Text
}

func newError(kind ErrorKind, code Reply, text string, params ...string) *Error {
	return &Error{Kind: kind, Code: code, Params: params, Text: text}
}

func ErrNickInvalid() *Error {
	return newError(InvalidName, ERR_ERRONEUSNICKNAME, "invalid nickname")
}

func ErrUserInvalid() *Error {
	return newError(InvalidName, ERR_INVALIDINPUT, "invalid username")
}

func ErrChannelInvalid() *Error {
	return newError(InvalidName, ERR_INVALIDINPUT, "invalid channel name")
}

func ErrTopicInvalid() *Error {
	return newError(InvalidName, ERR_INVALIDINPUT, "invalid topic")
}

// ErrNickCollision reports that requested is taken. current is the name the
// client is trying to move away from, or requested when it has none.
func ErrNickCollision(requested, current Nickname) *Error {
	return newError(NameCollision, ERR_NICKCOLLISION, "nickname already used", requested.String(), current.String())
}

func ErrNickNonexistent() *Error {
	return newError(NicknameNonexistent, ERR_NOSUCHNICK, "no such nickname")
}

func ErrChannelNonexistent() *Error {
	return newError(ChannelNonexistent, ERR_NOSUCHCHANNEL, "no such channel")
}

func ErrNotInChannel() *Error {
	return newError(NotInChannel, ERR_NOTONCHANNEL, "not in channel")
}

func ErrNeedMoreParameters() *Error {
	return newError(NeedMoreParameters, ERR_NEEDMOREPARAMS, "need more parameters")
}

func ErrCommandUnknown(command string) *Error {
	return newError(CommandUnknown, ERR_UNKNOWNCOMMAND, "unknown command", command)
}

func ErrNotRegistered() *Error {
	return newError(NotRegistered, ERR_NOTREGISTERED, "not registered")
}
