package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/irc"
)

// runSession starts a session on an in-memory pipe and returns the client end
func runSession(t *testing.T, c *Controller) (*testClient, *Session) {
	t.Helper()

	conn, peer := net.Pipe()
	s := c.CreateSession(conn)
	go s.Run()
	return newTestClient(t, peer), s
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatal("session did not close")
	}
}

func TestSessionRegister(t *testing.T) {
	c := newTestController()
	client, s := runSession(t, c)

	client.send("NICK x", "USER x x x :Unknown")
	client.expect(":irc.test 001 x")

	assert.Eventually(t, func() bool { return s.User().String() == "x" }, testTimeout, 10*time.Millisecond)
	assert.Equal(t, Running, s.State())
}

func TestSessionJoinOrdering(t *testing.T) {
	c := newTestController()
	client, _ := runSession(t, c)
	client.register("irc.test", "x")

	client.send("JOIN #main")
	client.expect(
		":x!anonymous@00000001 JOIN :#main",
		":irc.test 332 x #main :",
		":irc.test 353 x = #main :x",
		":irc.test 366 x #main",
	)
}

func TestSessionUnknownCommand(t *testing.T) {
	c := newTestController()
	client, _ := runSession(t, c)

	client.send("FOO bar")
	client.expect(":irc.test 421 FOO :unknown command")
	assert.Equal(t, 1, c.ClientCount())
	assert.Equal(t, 0, c.ChannelCount())

	// still reading after the error
	client.send("PING")
	client.expect(":irc.test PONG irc.test")
}

func TestSessionIgnoresBlankLines(t *testing.T) {
	c := newTestController()
	client, _ := runSession(t, c)

	client.send("", "   ", "PING")
	client.expect(":irc.test PONG irc.test")
}

func TestSessionProtocolErrors(t *testing.T) {
	c := newTestController()
	client, _ := runSession(t, c)

	client.send("JOIN #main")
	client.expect(":irc.test 451 :not registered")

	client.send("NICK")
	client.expect(":irc.test 432 :invalid nickname")

	client.send("NICK 9lives")
	client.expect(":irc.test 432 :invalid nickname")

	client.register("irc.test", "x")

	client.send("JOIN")
	client.expect(":irc.test 461 :need more parameters")

	client.send("JOIN main")
	client.expect(":irc.test 400 :invalid channel name")

	client.send("PART #main")
	client.expect(":irc.test 442 :not in channel")

	client.send("PRIVMSG #nowhere :hi")
	client.expect(":irc.test 403 :no such channel")

	client.send("USER bad/name")
	client.expect(":irc.test 400 :invalid username")
}

func TestSessionQuit(t *testing.T) {
	c := newTestController()
	client, s := runSession(t, c)
	client.register("irc.test", "x")

	client.send("QUIT :gone fishing")
	client.expectClosed()
	waitDone(t, s)

	assert.Eventually(t, func() bool { return c.ClientCount() == 0 }, testTimeout, 10*time.Millisecond)
	assert.Equal(t, "gone fishing", s.QuitReason())
}

func TestSessionDisconnectDestroys(t *testing.T) {
	c := newTestController()
	client, s := runSession(t, c)
	client.register("irc.test", "x")

	client.conn.Close()
	waitDone(t, s)
	assert.Eventually(t, func() bool { return c.ClientCount() == 0 }, testTimeout, 10*time.Millisecond)
}

func TestSessionHandlerPanicDestroys(t *testing.T) {
	c := newTestController()
	c.Handle("BOOM", func(ctx *Context, msg *irc.Message) error {
		panic("handler bug")
	})

	other, _ := runSession(t, c)
	other.register("irc.test", "other")

	client, s := runSession(t, c)
	client.send("BOOM")
	client.expectClosed()
	waitDone(t, s)

	// other sessions keep working
	other.send("PING")
	other.expect(":irc.test PONG irc.test")
	assert.Equal(t, 1, c.ClientCount())
}

func TestSessionRunOnce(t *testing.T) {
	c := newTestController()
	client, s := runSession(t, c)
	client.register("irc.test", "x")

	// a second Run returns immediately
	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("second Run blocked")
	}
	require.Equal(t, Running, s.State())
}

func TestSessionClosedByController(t *testing.T) {
	c := newTestController()
	client, s := runSession(t, c)
	client.register("irc.test", "x")

	c.Close()
	waitDone(t, s)
	client.expectClosed()
}
