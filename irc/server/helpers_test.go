package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/config"
)

const testTimeout = 2 * time.Second

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Name = "irc.test"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.TLS.Host = "127.0.0.1"
	cfg.TLS.Port = 0
	cfg.Session.WriteTimeout = testTimeout
	return cfg
}

// sequentialIDs hands out 1, 2, 3, ...
func sequentialIDs() IDSource {
	var mu sync.Mutex
	var next irc.ConnectionID
	return func() irc.ConnectionID {
		mu.Lock()
		defer mu.Unlock()
		next++
		return next
	}
}

func newTestController(opts ...Option) *Controller {
	opts = append([]Option{WithIDSource(sequentialIDs())}, opts...)
	return NewController(testConfig(), opts...)
}

func nick(t *testing.T, s string) irc.Nickname {
	t.Helper()
	n, err := irc.DefaultLimits().Nickname(s)
	require.NoError(t, err)
	return n
}

func channel(t *testing.T, s string) irc.ChannelName {
	t.Helper()
	c, err := irc.DefaultLimits().ChannelName(s)
	require.NoError(t, err)
	return c
}

func topic(t *testing.T, s string) irc.Topic {
	t.Helper()
	tp, err := irc.DefaultLimits().Topic(s)
	require.NoError(t, err)
	return tp
}

// pipeSession creates a session on one end of an in-memory pipe without
// running it, so queued output can be inspected with drained.
func pipeSession(t *testing.T, c *Controller) *Session {
	t.Helper()
	conn, peer := net.Pipe()
	t.Cleanup(func() { peer.Close() })
	return c.CreateSession(conn)
}

// registered is a pipeSession holding name
func registered(t *testing.T, c *Controller, name string) *Session {
	t.Helper()
	s := pipeSession(t, c)
	_, _, err := c.SetNickname(s, nick(t, name))
	require.NoError(t, err)
	s.outbox.drain()
	return s
}

func drained(s *Session) []string {
	var lines []string
	for _, msg := range s.outbox.drain() {
		lines = append(lines, msg.String())
	}
	return lines
}

// testClient speaks to a running session the way a real client would
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *textproto.Reader
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Helper()
	t.Cleanup(func() { conn.Close() })
	return &testClient{
		t:      t,
		conn:   conn,
		reader: textproto.NewReader(bufio.NewReader(conn)),
	}
}

func dialClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, testTimeout)
	require.NoError(t, err)
	return newTestClient(t, conn)
}

func (c *testClient) send(lines ...string) {
	c.t.Helper()
	for _, line := range lines {
		require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(testTimeout)))
		_, err := io.WriteString(c.conn, line+"\r\n")
		require.NoError(c.t, err)
	}
}

func (c *testClient) readLine() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
	line, err := c.reader.ReadLine()
	require.NoError(c.t, err)
	return line
}

// expect reads one line per entry and requires them to match in order
func (c *testClient) expect(lines ...string) {
	c.t.Helper()
	for _, want := range lines {
		require.Equal(c.t, want, c.readLine())
	}
}

// expectSilence requires that nothing arrives for a short while
func (c *testClient) expectSilence() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	line, err := c.reader.ReadLine()
	require.Error(c.t, err, "unexpected line %q", line)
	var netErr net.Error
	require.ErrorAs(c.t, err, &netErr)
	require.True(c.t, netErr.Timeout())
}

// expectClosed reads until the server closes the connection
func (c *testClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
	for {
		if _, err := c.reader.ReadLine(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				c.t.Fatalf("connection still open after %s", testTimeout)
			}
			return
		}
	}
}

// register sends NICK and consumes the welcome
func (c *testClient) register(serverName, name string) {
	c.t.Helper()
	c.send("NICK " + name)
	c.expect(":" + serverName + " 001 " + name)
}
