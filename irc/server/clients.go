package server

import (
	"github.com/presbrey/ircd/irc"
)

// IDSource draws candidate connection ids
type IDSource func() irc.ConnectionID

// clientMap is the identity registry: the live sessions and the bijection
// between their ids and their nicknames. Callers hold Controller.mu.
type clientMap struct {
	ids      IDSource
	sessions map[irc.ConnectionID]*Session
	byNick   map[irc.Nickname]irc.ConnectionID
	byID     map[irc.ConnectionID]irc.Nickname
}

func newClientMap(ids IDSource) *clientMap {
	if ids == nil {
		ids = irc.RandomConnectionID
	}
	return &clientMap{
		ids:      ids,
		sessions: make(map[irc.ConnectionID]*Session),
		byNick:   make(map[irc.Nickname]irc.ConnectionID),
		byID:     make(map[irc.ConnectionID]irc.Nickname),
	}
}

// freshID draws ids until one is not held by a live session
func (m *clientMap) freshID() irc.ConnectionID {
	for {
		id := m.ids()
		if _, taken := m.sessions[id]; !taken {
			return id
		}
	}
}

func (m *clientMap) add(s *Session) {
	m.sessions[s.id] = s
}

// registerOrRename claims nick for id. If id already had a nickname the
// mapping is moved and the old name is returned with ok set.
func (m *clientMap) registerOrRename(id irc.ConnectionID, nick irc.Nickname) (previous irc.Nickname, ok bool, err error) {
	previous, ok = m.byID[id]

	if _, taken := m.byNick[nick]; taken {
		current := nick
		if ok {
			current = previous
		}
		return irc.Nickname{}, false, irc.ErrNickCollision(nick, current)
	}

	if ok {
		delete(m.byNick, previous)
	}
	m.byNick[nick] = id
	m.byID[id] = nick
	return previous, ok, nil
}

func (m *clientMap) lookupByName(nick irc.Nickname) (irc.ConnectionID, bool) {
	id, ok := m.byNick[nick]
	return id, ok
}

func (m *clientMap) lookupByID(id irc.ConnectionID) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

func (m *clientMap) nameOf(id irc.ConnectionID) (irc.Nickname, bool) {
	nick, ok := m.byID[id]
	return nick, ok
}

// destroy forgets id in every direction. Unknown ids are ignored.
func (m *clientMap) destroy(id irc.ConnectionID) {
	if nick, ok := m.byID[id]; ok {
		delete(m.byNick, nick)
		delete(m.byID, id)
	}
	delete(m.sessions, id)
}

func (m *clientMap) count() int {
	return len(m.sessions)
}

func (m *clientMap) all() []*Session {
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func (m *clientMap) clear() {
	m.sessions = make(map[irc.ConnectionID]*Session)
	m.byNick = make(map[irc.Nickname]irc.ConnectionID)
	m.byID = make(map[irc.ConnectionID]irc.Nickname)
}
