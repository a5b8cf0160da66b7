package irc_test

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/admind"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/eventlog"
	"github.com/presbrey/ircd/irc/server"
)

type IRCClient struct {
	Conn   net.Conn
	Reader *bufio.Reader
}

// NewIRCClient creates a new IRC client
func NewIRCClient(t *testing.T, address string) *IRCClient {
	conn, err := net.Dial("tcp", address)
	require.NoError(t, err, "Should connect to the server")

	return &IRCClient{
		Conn:   conn,
		Reader: bufio.NewReader(conn),
	}
}

// Send sends a message to the server
func (c *IRCClient) Send(message string) error {
	_, err := c.Conn.Write([]byte(message + "\r\n"))
	return err
}

// Expect waits for a message containing the expected string
func (c *IRCClient) Expect(t *testing.T, expected string, timeout time.Duration) (string, error) {
	c.Conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.Conn.SetReadDeadline(time.Time{})

	for {
		line, err := c.Reader.ReadString('\n')
		if err != nil {
			return "", err
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.Contains(line, expected) {
			return line, nil
		}
	}
}

// ReadUntil reads until a specific pattern is found
func (c *IRCClient) ReadUntil(t *testing.T, pattern string, timeout time.Duration) ([]string, error) {
	c.Conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.Conn.SetReadDeadline(time.Time{})

	lines := []string{}
	for {
		line, err := c.Reader.ReadString('\n')
		if err != nil {
			return lines, err
		}

		line = strings.TrimRight(line, "\r\n")
		lines = append(lines, line)

		if strings.Contains(line, pattern) {
			return lines, nil
		}
	}
}

// Close closes the connection
func (c *IRCClient) Close() error {
	return c.Conn.Close()
}

// TestIntegration runs two clients through a server loaded from a config
// file, with the event log and admin API attached
func TestIntegration(t *testing.T) {
	tempDir := t.TempDir()

	configPath := filepath.Join(tempDir, "config.yaml")
	configContent := `
server:
  name: test.irc.local
  host: 127.0.0.1
  port: 0
  banner: ircd-test
  motd:
    - Welcome to the test network

limits:
  nick_length: 16
  channel_length: 32
  topic_length: 80
  user_length: 16

eventlog:
  enabled: true
  driver: sqlite
  dsn: ` + filepath.Join(tempDir, "events.db") + `
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err, "Should write the config file")

	cfg, err := config.Load(configPath)
	require.NoError(t, err, "Should load the configuration")

	metrics := server.NewMetrics()
	srv, err := server.NewServer(cfg, server.WithMetrics(metrics))
	require.NoError(t, err, "Should create the server")

	store, err := eventlog.Open(cfg.EventLog.Driver, cfg.EventLog.DSN)
	require.NoError(t, err, "Should open the event log")
	defer store.Close()
	store.Subscribe(srv.Controller().Events())

	admin := admind.New(cfg.GetAdminListenAddress(), srv.Controller(),
		admind.WithRegistry(metrics.Registry),
		admind.WithEventSource(store))

	require.NoError(t, srv.Start(), "Should start the server")
	defer srv.Stop()
	address := srv.Addr().String()

	t.Run("ServerIntegrationTest", func(t *testing.T) {
		client1 := NewIRCClient(t, address)
		defer client1.Close()

		client2 := NewIRCClient(t, address)
		defer client2.Close()

		client1.Send("NICK user1")
		client1.Send("USER user1 0 * :Test User 1")
		client2.Send("NICK user2")
		client2.Send("USER user2 0 * :Test User 2")

		_, err := client1.Expect(t, ":test.irc.local 001 user1", 5*time.Second)
		assert.NoError(t, err, "Should receive welcome message")
		_, err = client2.Expect(t, ":test.irc.local 001 user2", 5*time.Second)
		assert.NoError(t, err, "Should receive welcome message")

		// too long for the configured limit
		client2.Send("NICK abcdefghijklmnopq")
		_, err = client2.Expect(t, "432 :invalid nickname", time.Second)
		assert.NoError(t, err, "Should reject the long nickname")

		client1.Send("JOIN #test")
		lines, err := client1.ReadUntil(t, "366 user1 #test", time.Second)
		require.NoError(t, err, "Should join the channel")
		require.Len(t, lines, 4)
		assert.True(t, strings.HasPrefix(lines[0], ":user1!user1@"), lines[0])
		assert.True(t, strings.HasSuffix(lines[0], " JOIN :#test"), lines[0])
		assert.Equal(t, []string{
			":test.irc.local 332 user1 #test :",
			":test.irc.local 353 user1 = #test :user1",
			":test.irc.local 366 user1 #test",
		}, lines[1:])

		client2.Send("JOIN #test")
		_, err = client2.Expect(t, "366 user2 #test", time.Second)
		assert.NoError(t, err, "Should join the channel")
		_, err = client1.Expect(t, "JOIN :#test", time.Second)
		assert.NoError(t, err, "Client 1 should see client 2 join")

		client1.Send("PRIVMSG #test :Hello, world!")
		msg, err := client2.Expect(t, "PRIVMSG #test :Hello, world!", time.Second)
		assert.NoError(t, err, "Client 2 should receive the message")
		assert.True(t, strings.HasPrefix(msg, ":user1!user1@"), msg)

		client2.Send("TOPIC #test :integration")
		_, err = client1.Expect(t, "TOPIC #test :integration", time.Second)
		assert.NoError(t, err, "Client 1 should see the topic change")

		client2.Send("NICK renamed")
		_, err = client1.Expect(t, "NICK :renamed", time.Second)
		assert.NoError(t, err, "Client 1 should see the rename")

		client2.Send("PART #test")
		_, err = client1.Expect(t, "PART :#test", time.Second)
		assert.NoError(t, err, "Client 1 should see the part")

		client2.Send("QUIT :done")
		_, err = client2.Reader.ReadString('\n')
		for err == nil {
			_, err = client2.Reader.ReadString('\n')
		}

		client1.Send("STATS c")
		_, err = client1.Expect(t, "Clients:  1 connected", time.Second)
		assert.NoError(t, err, "Only client 1 should remain")
	})

	t.Run("AdminAPI", func(t *testing.T) {
		rec := httptest.NewRecorder()
		admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/channels", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"name":"#test","topic":"integration","members":1}]`, rec.Body.String())

		// the last destroy is published just after the registry update
		kinds := map[string]int{}
		require.Eventually(t, func() bool {
			store.Flush()

			rec := httptest.NewRecorder()
			admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?limit=100", nil))
			if rec.Code != http.StatusOK {
				return false
			}

			var records []eventlog.Record
			if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
				return false
			}

			kinds = map[string]int{}
			for _, r := range records {
				kinds[r.Kind]++
			}
			return kinds["SessionDestroyed"] == 1
		}, 5*time.Second, 20*time.Millisecond)

		assert.Equal(t, 2, kinds["SessionCreated"])
		assert.Equal(t, 1, kinds["ChannelCreated"])
		assert.Equal(t, 2, kinds["ChannelJoined"])
		assert.Equal(t, 1, kinds["ChannelParted"])
		assert.Equal(t, 1, kinds["TopicChanged"])
		assert.Equal(t, 3, kinds["NicknameChanged"])

		rec = httptest.NewRecorder()
		admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ircd_sessions 1")
	})
}

// TestMessageParsing tests message parsing
func TestMessageParsing(t *testing.T) {
	msg := irc.ParseMessage("PING :server1")
	require.NotNil(t, msg, "Should parse the message")
	assert.Equal(t, "PING", msg.Command, "Should parse the command")
	assert.Empty(t, msg.Params, "The trailing parameter is kept apart")
	assert.Equal(t, "server1", msg.Text(), "Should parse the trailing value")

	msg = irc.ParseMessage(":nick!user@host PRIVMSG #channel :Hello, world!")
	require.NotNil(t, msg, "Should parse the message")
	assert.Equal(t, ":nick!user@host", msg.Prefix, "Should parse the prefix")
	assert.Equal(t, "PRIVMSG", msg.Command, "Should parse the command")
	assert.Equal(t, []string{"#channel"}, msg.Params, "Should parse the parameters")
	assert.Equal(t, ":Hello, world!", msg.Trailing, "Should keep the colon on the trailing parameter")

	msg = irc.ParseMessage("MODE #channel +o-v user1 user2")
	require.NotNil(t, msg, "Should parse the message")
	assert.Equal(t, "MODE", msg.Command, "Should parse the command")
	assert.Equal(t, []string{"#channel", "+o-v", "user1", "user2"}, msg.Params, "Should parse the parameters")
	assert.False(t, msg.HasTrailing())
}
