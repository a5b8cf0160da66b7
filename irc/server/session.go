package server

import (
	"bufio"
	"errors"
	"io"
	"log"
	"net"
	"net/textproto"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/presbrey/ircd/irc"
)

// SessionState is the lifecycle stage of a session
type SessionState int32

const (
	Connected SessionState = iota
	Running
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Running:
		return "Running"
	case Closed:
		return "Closed"
	}
	return "Unknown"
}

// errQuit ends a session after its pending output has been written
var errQuit = errors.New("client quit")

// Session is one client connection
type Session struct {
	id         irc.ConnectionID
	conn       io.ReadWriteCloser
	controller *Controller
	outbox     *outbox
	remote     string

	mu         sync.Mutex
	user       irc.UserName
	quitReason string

	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id irc.ConnectionID, conn io.ReadWriteCloser, controller *Controller) *Session {
	remote := id.String()
	if nc, ok := conn.(net.Conn); ok && nc.RemoteAddr() != nil {
		remote = nc.RemoteAddr().String()
	}

	return &Session{
		id:         id,
		conn:       conn,
		controller: controller,
		outbox:     newOutbox(),
		remote:     remote,
		user:       irc.AnonymousUser(),
		done:       make(chan struct{}),
	}
}

// ID returns the connection id
func (s *Session) ID() irc.ConnectionID {
	return s.id
}

// RemoteAddr returns the peer address, or the connection id when the
// transport has none
func (s *Session) RemoteAddr() string {
	return s.remote
}

// State returns the current lifecycle stage
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// User returns the display user name
func (s *Session) User() irc.UserName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser replaces the display user name
func (s *Session) SetUser(user irc.UserName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// QuitReason returns the reason given with QUIT, if any
func (s *Session) QuitReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quitReason
}

func (s *Session) setQuitReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quitReason = reason
}

// Enqueue queues msg for delivery. It never blocks.
func (s *Session) Enqueue(msg *irc.Message) {
	s.outbox.push(msg)
}

// Done is closed once the session's transport has been closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// close shuts the transport and stops delivery. Safe to call repeatedly.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closed))
		s.outbox.close()
		close(s.done)
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("Error closing connection %s: %v", s.remote, err)
		}
	})
}

// Run reads and dispatches commands until the transport closes, the client
// quits or an I/O error occurs. The session is destroyed on return.
func (s *Session) Run() {
	if !s.state.CompareAndSwap(int32(Connected), int32(Running)) {
		return
	}

	defer s.controller.DestroySession(s)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in session %s: %v\n%s", s.id, r, debug.Stack())
		}
	}()

	log.Printf("Client connected: %s (%s)", s.remote, s.id)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go s.readLoop(lines, readErr)

	writer := bufio.NewWriter(s.conn)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil && !isClosedError(err) {
					log.Printf("Error reading from %s: %v", s.remote, err)
				}
				log.Printf("Client disconnected: %s (%s)", s.remote, s.id)
				return
			}
			if err := s.handleLine(line); err != nil {
				if errors.Is(err, errQuit) {
					s.flush(writer)
					log.Printf("Client quit: %s (%s)", s.remote, s.id)
				} else {
					log.Printf("Closing %s: %v", s.remote, err)
				}
				return
			}
		case <-s.outbox.ready:
		case <-s.done:
			return
		}

		if err := s.flush(writer); err != nil {
			if !isClosedError(err) {
				log.Printf("Error writing to %s: %v", s.remote, err)
			}
			return
		}
	}
}

func (s *Session) readLoop(lines chan<- string, readErr chan<- error) {
	defer close(lines)

	reader := textproto.NewReader(bufio.NewReader(s.conn))
	for {
		line, err := reader.ReadLine()
		if err != nil {
			readErr <- err
			return
		}

		select {
		case lines <- line:
		case <-s.done:
			readErr <- nil
			return
		}
	}
}

func (s *Session) handleLine(line string) error {
	if s.controller.config.Server.Debug {
		log.Printf("[%s] <= %s", s.id, line)
	}

	msg := irc.ParseMessage(line)
	if msg == nil || msg.Command == "" {
		return nil
	}

	handler, ok := s.controller.handler(msg.Command)
	s.controller.metrics.received(msg.Command, ok)

	ctx := &Context{session: s, controller: s.controller}

	var err error
	if ok {
		err = handler(ctx, msg)
	} else {
		err = irc.ErrCommandUnknown(msg.Command)
	}

	var protocolErr *irc.Error
	if errors.As(err, &protocolErr) {
		s.controller.metrics.protocolError(protocolErr)
		ctx.SendError(protocolErr)
		return nil
	}
	return err
}

// flush writes everything queued and flushes the transport
func (s *Session) flush(writer *bufio.Writer) error {
	msgs := s.outbox.drain()
	if len(msgs) == 0 {
		return nil
	}

	if timeout := s.controller.config.Session.WriteTimeout; timeout > 0 {
		if nc, ok := s.conn.(net.Conn); ok {
			nc.SetWriteDeadline(time.Now().Add(timeout))
		}
	}

	trace := s.controller.config.Server.Debug
	for _, msg := range msgs {
		line := msg.String()
		if trace {
			log.Printf("[%s] => %s", s.id, line)
		}
		writer.WriteString(line)
		writer.WriteString("\r\n")
	}
	s.controller.metrics.sent(len(msgs))

	return writer.Flush()
}

func isClosedError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
