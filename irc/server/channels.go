package server

import (
	"sort"

	"github.com/presbrey/ircd/irc"
)

// Channel is a snapshot of a channel's stored state
type Channel struct {
	Name  irc.ChannelName
	Topic irc.Topic
}

// JoinStatus says what a join did
type JoinStatus int

const (
	AlreadyJoined JoinStatus = iota
	JoinedExisting
	JoinedCreated
)

func (s JoinStatus) String() string {
	switch s {
	case AlreadyJoined:
		return "AlreadyJoined"
	case JoinedExisting:
		return "JoinedExisting"
	case JoinedCreated:
		return "JoinedCreated"
	}
	return "Unknown"
}

type idSet map[irc.ConnectionID]struct{}

type nameSet map[irc.ChannelName]struct{}

// channelMap is the channel registry. Channels are created on first join and
// are never removed, so a channel whose last member left stays listed with
// its topic. Callers hold Controller.mu.
type channelMap struct {
	channels         map[irc.ChannelName]*Channel
	channelToMembers map[irc.ChannelName]idSet
	memberToChannels map[irc.ConnectionID]nameSet
}

func newChannelMap() *channelMap {
	return &channelMap{
		channels:         make(map[irc.ChannelName]*Channel),
		channelToMembers: make(map[irc.ChannelName]idSet),
		memberToChannels: make(map[irc.ConnectionID]nameSet),
	}
}

// join adds id to name. notify holds the members before the join.
func (m *channelMap) join(id irc.ConnectionID, name irc.ChannelName, create bool) (ch Channel, status JoinStatus, notify []irc.ConnectionID, err error) {
	channel, exists := m.channels[name]
	if !exists {
		if !create {
			return Channel{}, 0, nil, irc.ErrChannelNonexistent()
		}
		channel = &Channel{Name: name}
		m.channels[name] = channel
		m.channelToMembers[name] = make(idSet)
	}

	members := m.channelToMembers[name]
	notify = members.list()

	if _, joined := members[id]; joined {
		return *channel, AlreadyJoined, notify, nil
	}

	members[id] = struct{}{}
	channels, ok := m.memberToChannels[id]
	if !ok {
		channels = make(nameSet)
		m.memberToChannels[id] = channels
	}
	channels[name] = struct{}{}

	status = JoinedExisting
	if !exists {
		status = JoinedCreated
	}
	return *channel, status, notify, nil
}

// part removes id from name. notify holds the members before the removal,
// including id itself.
func (m *channelMap) part(id irc.ConnectionID, name irc.ChannelName) (ch Channel, notify []irc.ConnectionID, err error) {
	channel, exists := m.channels[name]
	if !exists {
		return Channel{}, nil, irc.ErrNotInChannel()
	}

	members := m.channelToMembers[name]
	if _, joined := members[id]; !joined {
		return Channel{}, nil, irc.ErrNotInChannel()
	}

	notify = members.list()
	m.remove(id, name)
	return *channel, notify, nil
}

func (m *channelMap) remove(id irc.ConnectionID, name irc.ChannelName) {
	delete(m.channelToMembers[name], id)
	if channels, ok := m.memberToChannels[id]; ok {
		delete(channels, name)
		if len(channels) == 0 {
			delete(m.memberToChannels, id)
		}
	}
}

// leaveAll removes id from every channel it is in
func (m *channelMap) leaveAll(id irc.ConnectionID) {
	for name := range m.memberToChannels[id] {
		delete(m.channelToMembers[name], id)
	}
	delete(m.memberToChannels, id)
}

func (m *channelMap) membersOf(name irc.ChannelName) []irc.ConnectionID {
	return m.channelToMembers[name].list()
}

func (m *channelMap) isMember(id irc.ConnectionID, name irc.ChannelName) bool {
	_, ok := m.channelToMembers[name][id]
	return ok
}

func (m *channelMap) channelsOf(id irc.ConnectionID) []irc.ChannelName {
	channels := m.memberToChannels[id]
	names := make([]irc.ChannelName, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sortChannelNames(names)
	return names
}

func (m *channelMap) exists(name irc.ChannelName) bool {
	_, ok := m.channels[name]
	return ok
}

// topic returns the empty topic for unknown channels
func (m *channelMap) topic(name irc.ChannelName) irc.Topic {
	if channel, ok := m.channels[name]; ok {
		return channel.Topic
	}
	return irc.Topic{}
}

func (m *channelMap) setTopic(name irc.ChannelName, topic irc.Topic) error {
	channel, ok := m.channels[name]
	if !ok {
		return irc.ErrChannelNonexistent()
	}
	channel.Topic = topic
	return nil
}

func (m *channelMap) channelCount() int {
	return len(m.channels)
}

// all returns every channel sorted by name
func (m *channelMap) all() []Channel {
	names := make([]irc.ChannelName, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sortChannelNames(names)

	channels := make([]Channel, 0, len(names))
	for _, name := range names {
		channels = append(channels, *m.channels[name])
	}
	return channels
}

func (m *channelMap) clear() {
	m.channels = make(map[irc.ChannelName]*Channel)
	m.channelToMembers = make(map[irc.ChannelName]idSet)
	m.memberToChannels = make(map[irc.ConnectionID]nameSet)
}

func (s idSet) list() []irc.ConnectionID {
	ids := make([]irc.ConnectionID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortChannelNames(names []irc.ChannelName) {
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
}
