package server

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/config"
)

// Controller owns the identity and channel registries. Every registry read
// or write happens under mu; relays are queued on target sessions only
// after mu is released.
type Controller struct {
	config    *config.Config
	limits    irc.Limits
	startTime time.Time
	events    *Events
	metrics   *Metrics
	handlers  map[string]Handler

	mu       sync.Mutex
	clients  *clientMap
	channels *channelMap
}

// Option configures a Controller
type Option func(*Controller)

// WithIDSource replaces the random connection id source
func WithIDSource(ids IDSource) Option {
	return func(c *Controller) {
		c.clients = newClientMap(ids)
	}
}

// WithEvents shares an existing event dispatcher
func WithEvents(events *Events) Option {
	return func(c *Controller) {
		c.events = events
	}
}

// WithMetrics records controller activity into m
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// JoinResult describes a completed join
type JoinResult struct {
	Channel Channel
	Status  JoinStatus
	// Nicks lists the members after the join, sorted
	Nicks []irc.Nickname
}

// ChannelSummary is a channel with its member count
type ChannelSummary struct {
	Name    irc.ChannelName
	Topic   irc.Topic
	Members int
}

// NewController creates a controller with empty registries
func NewController(cfg *config.Config, opts ...Option) *Controller {
	c := &Controller{
		config:    cfg,
		limits:    cfg.NameLimits(),
		startTime: time.Now(),
		events:    NewEvents(),
		clients:   newClientMap(nil),
		channels:  newChannelMap(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.metrics != nil {
		c.events.SubscribeWithPriority("metrics", c.metrics.Observe, -100)
	}
	c.registerDefaultHandlers()
	return c
}

// Config returns the server configuration
func (c *Controller) Config() *config.Config {
	return c.config
}

// Limits returns the name bounds in force
func (c *Controller) Limits() irc.Limits {
	return c.limits
}

// Events returns the lifecycle event dispatcher
func (c *Controller) Events() *Events {
	return c.events
}

// ServerName returns the name used as the prefix of server replies
func (c *Controller) ServerName() string {
	return c.config.Server.Name
}

func (c *Controller) serverPrefix() string {
	return ":" + c.config.Server.Name
}

// locked runs fn with mu held. A panic in fn releases mu.
func (c *Controller) locked(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn()
}

// CreateSession registers a new session for conn and publishes
// SessionCreated. Whoever consumes that event is expected to call Run.
func (c *Controller) CreateSession(conn io.ReadWriteCloser) *Session {
	var session *Session
	c.locked(func() error {
		session = newSession(c.clients.freshID(), conn, c)
		c.clients.add(session)
		return nil
	})

	c.events.Publish(Event{Kind: SessionCreated, Session: session, ID: session.id})
	return session
}

// userIDLocked builds the nick!user@host identity of s
func (c *Controller) userIDLocked(s *Session) (irc.UserID, bool) {
	nick, ok := c.clients.nameOf(s.id)
	if !ok {
		return irc.UserID{}, false
	}
	return irc.UserID{Nick: nick, User: s.User(), Host: s.id.String()}, true
}

// mustUserIDLocked is for operations whose callers have already checked
// registration. An unregistered session here is a bug.
func (c *Controller) mustUserIDLocked(s *Session) irc.UserID {
	uid, ok := c.userIDLocked(s)
	if !ok {
		panic(fmt.Sprintf("server: session %s has no nickname", s.id))
	}
	return uid
}

// UserID returns the identity of s, if it has registered a nickname
func (c *Controller) UserID(s *Session) (irc.UserID, bool) {
	var uid irc.UserID
	var ok bool
	c.locked(func() error {
		uid, ok = c.userIDLocked(s)
		return nil
	})
	return uid, ok
}

// Nickname returns the nickname of s, if any
func (c *Controller) Nickname(s *Session) (irc.Nickname, bool) {
	var nick irc.Nickname
	var ok bool
	c.locked(func() error {
		nick, ok = c.clients.nameOf(s.id)
		return nil
	})
	return nick, ok
}

// watchingLocked returns s and everyone sharing a channel with it
func (c *Controller) watchingLocked(s *Session) []*Session {
	seen := map[irc.ConnectionID]struct{}{s.id: {}}
	watchers := []*Session{s}

	for _, name := range c.channels.channelsOf(s.id) {
		for _, id := range c.channels.membersOf(name) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if member, ok := c.clients.lookupByID(id); ok {
				watchers = append(watchers, member)
			}
		}
	}
	return watchers
}

// sessionsLocked resolves ids to live sessions, leaving out except
func (c *Controller) sessionsLocked(ids []irc.ConnectionID, except ...irc.ConnectionID) []*Session {
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if slices.Contains(except, id) {
			continue
		}
		if s, ok := c.clients.lookupByID(id); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func broadcast(msg *irc.Message, targets []*Session) {
	for _, s := range targets {
		s.Enqueue(msg)
	}
}

// SetNickname claims nick for s. When s already had a nickname the change is
// relayed to s and everyone sharing a channel with it, and renamed is true.
func (c *Controller) SetNickname(s *Session, nick irc.Nickname) (previous irc.Nickname, renamed bool, err error) {
	var before irc.UserID
	var watchers []*Session

	err = c.locked(func() error {
		before, _ = c.userIDLocked(s)

		previous, renamed, err = c.clients.registerOrRename(s.id, nick)
		if err != nil {
			return err
		}
		if renamed {
			watchers = c.watchingLocked(s)
		}
		return nil
	})
	if err != nil {
		return irc.Nickname{}, false, err
	}

	if renamed {
		broadcast(irc.NewMessage(before.Prefix(), "NICK", nil, irc.Trailing(nick.String())), watchers)
	}

	c.events.Publish(Event{Kind: NicknameChanged, Session: s, ID: s.id, Nick: nick, OldNick: previous})
	return previous, renamed, nil
}

// DestroySession removes s from both registries, relays QUIT to everyone
// watching it and closes its transport. Calls after the first are no-ops.
func (c *Controller) DestroySession(s *Session) {
	var uid irc.UserID
	var registered, live bool
	var watchers []*Session

	c.locked(func() error {
		current, ok := c.clients.lookupByID(s.id)
		if !ok || current != s {
			return nil
		}
		live = true

		uid, registered = c.userIDLocked(s)
		if registered {
			watchers = c.watchingLocked(s)
		}
		c.channels.leaveAll(s.id)
		c.clients.destroy(s.id)
		return nil
	})

	if !live {
		s.close()
		return
	}

	if registered {
		trailing := ""
		if reason := s.QuitReason(); reason != "" {
			trailing = irc.Trailing(reason)
		}
		broadcast(irc.NewMessage(uid.Prefix(), "QUIT", nil, trailing), watchers)
	}

	s.close()
	c.events.Publish(Event{Kind: SessionDestroyed, Session: s, ID: s.id, Nick: uid.Nick})
}

// JoinChannel adds s to the channel, creating it on first use. Everyone
// already in the channel and s itself receive the JOIN relay.
func (c *Controller) JoinChannel(s *Session, name irc.ChannelName) (JoinResult, error) {
	var result JoinResult
	var uid irc.UserID
	var targets []*Session

	err := c.locked(func() error {
		uid = c.mustUserIDLocked(s)

		channel, status, notify, err := c.channels.join(s.id, name, true)
		if err != nil {
			return err
		}

		result = JoinResult{Channel: channel, Status: status, Nicks: c.nicksLocked(name)}
		if status != AlreadyJoined {
			targets = append(c.sessionsLocked(notify), s)
		}
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	if result.Status == AlreadyJoined {
		return result, nil
	}

	broadcast(irc.NewMessage(uid.Prefix(), "JOIN", nil, irc.Trailing(name.String())), targets)

	if result.Status == JoinedCreated {
		c.events.Publish(Event{Kind: ChannelCreated, Session: s, ID: s.id, Nick: uid.Nick, Channel: name})
	}
	c.events.Publish(Event{Kind: ChannelJoined, Session: s, ID: s.id, Nick: uid.Nick, Channel: name})
	return result, nil
}

// PartChannel removes s from the channel. Everyone who was in the channel,
// s included, receives the PART relay.
func (c *Controller) PartChannel(s *Session, name irc.ChannelName) (Channel, error) {
	var channel Channel
	var uid irc.UserID
	var targets []*Session

	err := c.locked(func() error {
		uid = c.mustUserIDLocked(s)

		var notify []irc.ConnectionID
		var err error
		channel, notify, err = c.channels.part(s.id, name)
		if err != nil {
			return err
		}
		targets = c.sessionsLocked(notify)
		return nil
	})
	if err != nil {
		return Channel{}, err
	}

	broadcast(irc.NewMessage(uid.Prefix(), "PART", nil, irc.Trailing(name.String())), targets)

	c.events.Publish(Event{Kind: ChannelParted, Session: s, ID: s.id, Nick: uid.Nick, Channel: name})
	return channel, nil
}

// Topic returns the channel's topic, empty if the channel does not exist
func (c *Controller) Topic(name irc.ChannelName) irc.Topic {
	var topic irc.Topic
	c.locked(func() error {
		topic = c.channels.topic(name)
		return nil
	})
	return topic
}

// SetTopic changes the channel's topic and relays it to every member
func (c *Controller) SetTopic(s *Session, name irc.ChannelName, topic irc.Topic) error {
	var uid irc.UserID
	var targets []*Session

	err := c.locked(func() error {
		uid = c.mustUserIDLocked(s)

		if err := c.channels.setTopic(name, topic); err != nil {
			return err
		}
		targets = c.sessionsLocked(c.channels.membersOf(name))
		return nil
	})
	if err != nil {
		return err
	}

	broadcast(irc.NewMessage(uid.Prefix(), "TOPIC", []string{name.String()}, irc.Trailing(topic.String())), targets)

	c.events.Publish(Event{Kind: TopicChanged, Session: s, ID: s.id, Nick: uid.Nick, Channel: name, Topic: topic})
	return nil
}

// SendChannelMessage relays a PRIVMSG to every member except s
func (c *Controller) SendChannelMessage(s *Session, name irc.ChannelName, text string) error {
	return c.relayToChannel(s, "PRIVMSG", name, text)
}

// SendChannelNotice relays a NOTICE to every member except s
func (c *Controller) SendChannelNotice(s *Session, name irc.ChannelName, text string) error {
	return c.relayToChannel(s, "NOTICE", name, text)
}

func (c *Controller) relayToChannel(s *Session, command string, name irc.ChannelName, text string) error {
	var uid irc.UserID
	var targets []*Session

	err := c.locked(func() error {
		uid = c.mustUserIDLocked(s)

		if !c.channels.exists(name) {
			return irc.ErrChannelNonexistent()
		}
		targets = c.sessionsLocked(c.channels.membersOf(name), s.id)
		return nil
	})
	if err != nil {
		return err
	}

	broadcast(irc.NewMessage(uid.Prefix(), command, []string{name.String()}, irc.Trailing(text)), targets)
	return nil
}

// SendDirectMessage relays a PRIVMSG to the session holding target
func (c *Controller) SendDirectMessage(s *Session, target irc.Nickname, text string) error {
	return c.relayToNick(s, "PRIVMSG", target, text)
}

// SendDirectNotice relays a NOTICE to the session holding target
func (c *Controller) SendDirectNotice(s *Session, target irc.Nickname, text string) error {
	return c.relayToNick(s, "NOTICE", target, text)
}

func (c *Controller) relayToNick(s *Session, command string, target irc.Nickname, text string) error {
	var uid irc.UserID
	var recipient *Session

	err := c.locked(func() error {
		uid = c.mustUserIDLocked(s)

		id, ok := c.clients.lookupByName(target)
		if !ok {
			return irc.ErrNickNonexistent()
		}
		recipient, ok = c.clients.lookupByID(id)
		if !ok {
			return irc.ErrNickNonexistent()
		}
		return nil
	})
	if err != nil {
		return err
	}

	recipient.Enqueue(irc.NewMessage(uid.Prefix(), command, []string{target.String()}, irc.Trailing(text)))
	return nil
}

func (c *Controller) nicksLocked(name irc.ChannelName) []irc.Nickname {
	members := c.channels.membersOf(name)
	nicks := make([]irc.Nickname, 0, len(members))
	for _, id := range members {
		if nick, ok := c.clients.nameOf(id); ok {
			nicks = append(nicks, nick)
		}
	}
	sort.Slice(nicks, func(i, j int) bool { return nicks[i].String() < nicks[j].String() })
	return nicks
}

// ChannelNicks returns the nicknames in a channel, sorted
func (c *Controller) ChannelNicks(name irc.ChannelName) []irc.Nickname {
	var nicks []irc.Nickname
	c.locked(func() error {
		nicks = c.nicksLocked(name)
		return nil
	})
	return nicks
}

// ChannelsOf returns the channels s is in, sorted
func (c *Controller) ChannelsOf(s *Session) []irc.ChannelName {
	var names []irc.ChannelName
	c.locked(func() error {
		names = c.channels.channelsOf(s.id)
		return nil
	})
	return names
}

// Channels lists every channel, sorted by name
func (c *Controller) Channels() []ChannelSummary {
	var summaries []ChannelSummary
	c.locked(func() error {
		channels := c.channels.all()
		summaries = make([]ChannelSummary, 0, len(channels))
		for _, ch := range channels {
			summaries = append(summaries, ChannelSummary{
				Name:    ch.Name,
				Topic:   ch.Topic,
				Members: len(c.channels.membersOf(ch.Name)),
			})
		}
		return nil
	})
	return summaries
}

// ClientCount returns the number of live sessions
func (c *Controller) ClientCount() int {
	var n int
	c.locked(func() error {
		n = c.clients.count()
		return nil
	})
	return n
}

// ChannelCount returns the number of channels ever created
func (c *Controller) ChannelCount() int {
	var n int
	c.locked(func() error {
		n = c.channels.channelCount()
		return nil
	})
	return n
}

// Uptime returns how long the controller has existed
func (c *Controller) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Close closes every live session and empties both registries. It does not
// wait for queued output to be written.
func (c *Controller) Close() {
	var sessions []*Session
	c.locked(func() error {
		sessions = c.clients.all()
		c.clients.clear()
		c.channels.clear()
		return nil
	})

	for _, s := range sessions {
		s.close()
	}
}
