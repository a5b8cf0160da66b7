package irc

import (
	"strings"
)

// Tag is a single IRCv3 message tag
type Tag struct {
	Key   string
	Value string
}

// Message represents an IRC message.
//
// Prefix and Trailing keep their leading colon exactly as they appear on the
// wire. A Message is not modified after it has been parsed or handed to a
// session queue.
type Message struct {
	Tags     []Tag
	Prefix   string
	Command  string
	Params   []string
	Trailing string
	Raw      string
}

// NewMessage builds an outbound message. Trailing must be empty or already
// start with a colon; see Trailing.
func NewMessage(prefix, command string, params []string, trailing string) *Message {
	return &Message{
		Prefix:   prefix,
		Command:  command,
		Params:   params,
		Trailing: trailing,
	}
}

// Trailing turns text into a trailing parameter
func Trailing(text string) string {
	return ":" + text
}

// ParseMessage parses an IRC message. It returns nil for blank lines and never
// fails otherwise: malformed input yields whatever fields could be extracted.
func ParseMessage(line string) *Message {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	msg := &Message{
		Params: make([]string, 0),
		Raw:    line,
	}

	rest := line
	if rest[0] == '@' {
		var raw string
		raw, rest = nextToken(rest[1:])
		msg.Tags = parseTags(raw)
	}

	rest = skipSpaces(rest)
	if strings.HasPrefix(rest, ":") {
		msg.Prefix, rest = nextToken(rest)
	}

	var command string
	command, rest = nextToken(skipSpaces(rest))
	msg.Command = strings.ToUpper(command)

	for rest = skipSpaces(rest); rest != ""; rest = skipSpaces(rest) {
		if rest[0] == ':' {
			msg.Trailing = rest
			break
		}

		var param string
		param, rest = nextToken(rest)
		msg.Params = append(msg.Params, param)
	}

	return msg
}

func nextToken(s string) (token, rest string) {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func skipSpaces(s string) string {
	return strings.TrimLeft(s, " ")
}

// Text returns the trailing parameter without its colon
func (m *Message) Text() string {
	return strings.TrimPrefix(m.Trailing, ":")
}

// HasTrailing reports whether the message carried a trailing parameter
func (m *Message) HasTrailing() bool {
	return m.Trailing != ""
}

// Param returns the i'th positional parameter, or "" if absent
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Tag returns the value of the named tag
func (m *Message) Tag(key string) (string, bool) {
	for _, t := range m.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// String returns the wire form of the message without the line terminator
func (m *Message) String() string {
	var builder strings.Builder

	if len(m.Tags) > 0 {
		builder.WriteByte('@')
		for i, t := range m.Tags {
			if i > 0 {
				builder.WriteByte(';')
			}
			builder.WriteString(t.Key)
			if t.Value != "" {
				builder.WriteByte('=')
				builder.WriteString(escapeTagValue(t.Value))
			}
		}
		builder.WriteByte(' ')
	}

	if m.Prefix != "" {
		builder.WriteString(m.Prefix)
		builder.WriteByte(' ')
	}

	builder.WriteString(m.Command)

	if len(m.Params) > 0 {
		builder.WriteByte(' ')
		builder.WriteString(strings.Join(m.Params, " "))
	}

	if m.Trailing != "" {
		builder.WriteByte(' ')
		builder.WriteString(m.Trailing)
	}

	return builder.String()
}

func parseTags(raw string) []Tag {
	if raw == "" {
		return nil
	}

	var tags []Tag
	for _, part := range strings.Split(raw, ";") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		tags = append(tags, Tag{Key: key, Value: unescapeTagValue(value)})
	}
	return tags
}

var (
	tagEscaper = strings.NewReplacer(
		"\\", "\\\\",
		";", "\\:",
		" ", "\\s",
		"\r", "\\r",
		"\n", "\\n",
	)
)

func escapeTagValue(v string) string {
	return tagEscaper.Replace(v)
}

func unescapeTagValue(v string) string {
	if !strings.Contains(v, "\\") {
		return v
	}

	var builder strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			builder.WriteByte(c)
			continue
		}
		if i+1 == len(v) {
			// a lone trailing backslash is dropped
			break
		}
		i++
		switch v[i] {
		case ':':
			builder.WriteByte(';')
		case 's':
			builder.WriteByte(' ')
		case 'r':
			builder.WriteByte('\r')
		case 'n':
			builder.WriteByte('\n')
		default:
			builder.WriteByte(v[i])
		}
	}
	return builder.String()
}

// FormatHostmask formats a hostmask
func FormatHostmask(nick, user, host string) string {
	return nick + "!" + user + "@" + host
}
