package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/irc"
)

func TestClientMapRegister(t *testing.T) {
	m := newClientMap(sequentialIDs())

	previous, renamed, err := m.registerOrRename(1, nick(t, "alice"))
	require.NoError(t, err)
	assert.False(t, renamed)
	assert.True(t, previous.IsZero())

	id, ok := m.lookupByName(nick(t, "alice"))
	require.True(t, ok)
	assert.Equal(t, irc.ConnectionID(1), id)

	name, ok := m.nameOf(1)
	require.True(t, ok)
	assert.Equal(t, "alice", name.String())
}

func TestClientMapCollision(t *testing.T) {
	m := newClientMap(sequentialIDs())

	_, _, err := m.registerOrRename(1, nick(t, "x"))
	require.NoError(t, err)

	_, _, err = m.registerOrRename(2, nick(t, "x"))
	require.Error(t, err)
	assert.Equal(t, "436 x x :nickname already used", err.Error())

	_, _, err = m.registerOrRename(2, nick(t, "y"))
	require.NoError(t, err)

	// renaming into a taken name reports the name being left
	_, _, err = m.registerOrRename(2, nick(t, "x"))
	require.Error(t, err)
	assert.Equal(t, "436 x y :nickname already used", err.Error())

	name, _ := m.nameOf(2)
	assert.Equal(t, "y", name.String())
}

func TestClientMapRename(t *testing.T) {
	m := newClientMap(sequentialIDs())

	_, _, err := m.registerOrRename(1, nick(t, "old"))
	require.NoError(t, err)

	previous, renamed, err := m.registerOrRename(1, nick(t, "new"))
	require.NoError(t, err)
	assert.True(t, renamed)
	assert.Equal(t, "old", previous.String())

	_, ok := m.lookupByName(nick(t, "old"))
	assert.False(t, ok, "old name is released")

	id, ok := m.lookupByName(nick(t, "new"))
	require.True(t, ok)
	assert.Equal(t, irc.ConnectionID(1), id)

	// the released name can be claimed by someone else
	_, _, err = m.registerOrRename(2, nick(t, "old"))
	assert.NoError(t, err)
}

func TestClientMapDestroy(t *testing.T) {
	c := newTestController()
	s := registered(t, c, "alice")
	anon := pipeSession(t, c)

	m := c.clients
	require.Equal(t, 2, m.count())

	m.destroy(s.id)
	_, ok := m.lookupByName(nick(t, "alice"))
	assert.False(t, ok)
	_, ok = m.nameOf(s.id)
	assert.False(t, ok)
	_, ok = m.lookupByID(s.id)
	assert.False(t, ok)

	// unregistered ids are fine too, and repeat calls are no-ops
	m.destroy(anon.id)
	m.destroy(anon.id)
	assert.Equal(t, 0, m.count())
}

func TestClientMapFreshIDSkipsLiveIDs(t *testing.T) {
	draws := []irc.ConnectionID{7, 7, 7, 9}
	m := newClientMap(func() irc.ConnectionID {
		id := draws[0]
		draws = draws[1:]
		return id
	})

	first := m.freshID()
	m.sessions[first] = &Session{id: first}
	second := m.freshID()

	assert.Equal(t, irc.ConnectionID(7), first)
	assert.Equal(t, irc.ConnectionID(9), second)
	assert.Empty(t, draws)
}

func TestNicknameUniqueness(t *testing.T) {
	m := newClientMap(sequentialIDs())
	names := []string{"a", "b", "c", "a", "b", "d", "c", "e"}

	for i := 0; i < 200; i++ {
		id := irc.ConnectionID(i%5 + 1)
		m.registerOrRename(id, nick(t, names[i%len(names)]))
		if i%17 == 0 {
			m.destroy(id)
		}

		require.Equal(t, len(m.byNick), len(m.byID))
		for n, id := range m.byNick {
			back, ok := m.byID[id]
			require.True(t, ok)
			require.Equal(t, n, back)
		}
	}
}
