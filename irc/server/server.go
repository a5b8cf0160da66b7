package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/presbrey/ircd/irc/config"
)

// Server accepts connections and hands them to a Controller
type Server struct {
	config     *config.Config
	controller *Controller

	mu          sync.Mutex
	listener    net.Listener
	tlsListener net.Listener
	quit        chan struct{}
	wg          sync.WaitGroup
}

// NewServer creates a server and its controller. Sessions created by the
// controller are run on their own goroutine.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	srv := &Server{
		config: cfg,
		quit:   make(chan struct{}),
	}
	srv.controller = NewController(cfg, opts...)
	srv.controller.Events().Subscribe("sessions", srv.runSession)

	return srv, nil
}

// Controller returns the server's controller
func (s *Server) Controller() *Controller {
	return s.controller
}

func (s *Server) runSession(ev Event) error {
	if ev.Kind != SessionCreated {
		return nil
	}

	select {
	case <-s.quit:
		s.controller.DestroySession(ev.Session)
		return nil
	default:
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ev.Session.Run()
	}()
	return nil
}

// Start starts the plaintext listener and, when enabled, the TLS listener
func (s *Server) Start() error {
	if err := s.StartIRCServer(); err != nil {
		return err
	}

	if s.config.TLS.Enabled {
		if err := s.StartTLSServer(); err != nil {
			s.StopIRCServer()
			return err
		}
	}

	return nil
}

// StartIRCServer starts only the plaintext listener
func (s *Server) StartIRCServer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.GetListenAddress())
	if err != nil {
		return fmt.Errorf("failed to start IRC listener: %w", err)
	}
	s.listener = listener
	log.Printf("IRC server listening on %s", listener.Addr().String())

	go s.acceptConnections(listener, false)
	return nil
}

// StopIRCServer stops only the plaintext listener
func (s *Server) StopIRCServer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		err := s.listener.Close()
		s.listener = nil
		if err != nil {
			return fmt.Errorf("error closing IRC listener: %w", err)
		}
		log.Printf("IRC server stopped")
	}
	return nil
}

// StartTLSServer starts the TLS listener, using the configured certificate
// or a generated self-signed one
func (s *Server) StartTLSServer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tlsListener != nil {
		return nil
	}

	tlsConfig, err := s.tlsConfig()
	if err != nil {
		return err
	}

	listener, err := tls.Listen("tcp", s.config.GetTLSListenAddress(), tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to start TLS listener: %w", err)
	}
	s.tlsListener = listener
	log.Printf("TLS IRC server listening on %s", listener.Addr().String())

	go s.acceptConnections(listener, true)
	return nil
}

// StopTLSServer stops only the TLS listener
func (s *Server) StopTLSServer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tlsListener != nil {
		err := s.tlsListener.Close()
		s.tlsListener = nil
		if err != nil {
			return fmt.Errorf("error closing TLS listener: %w", err)
		}
		log.Printf("TLS IRC server stopped")
	}
	return nil
}

// Addr returns the plaintext listener address, or nil if not listening
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// TLSAddr returns the TLS listener address, or nil if not listening
func (s *Server) TLSAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tlsListener == nil {
		return nil
	}
	return s.tlsListener.Addr()
}

// Stop closes the listeners, then every session. It waits for session
// goroutines to return.
func (s *Server) Stop() error {
	log.Printf("Stopping IRC server...")

	select {
	case <-s.quit:
		return nil
	default:
		close(s.quit)
	}

	var errMsgs []string
	if err := s.StopIRCServer(); err != nil {
		errMsgs = append(errMsgs, err.Error())
	}
	if err := s.StopTLSServer(); err != nil {
		errMsgs = append(errMsgs, err.Error())
	}

	s.controller.Close()
	s.wg.Wait()

	if len(errMsgs) > 0 {
		return fmt.Errorf("errors during shutdown: %s", strings.Join(errMsgs, "; "))
	}

	log.Printf("IRC server completely stopped")
	return nil
}

func (s *Server) acceptConnections(listener net.Listener, secure bool) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Error accepting connection: %v", err)
			continue
		}

		if !secure {
			s.controller.CreateSession(conn)
			continue
		}

		go s.handshake(conn)
	}
}

// handshake completes the TLS handshake before the connection becomes a
// session
func (s *Server) handshake(conn net.Conn) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		s.controller.CreateSession(conn)
		return
	}

	ctx := context.Background()
	if timeout := s.config.Session.HandshakeTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		log.Printf("TLS handshake with %s failed: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	s.controller.CreateSession(tlsConn)
}

func (s *Server) tlsConfig() (*tls.Config, error) {
	if s.config.TLS.Cert != "" && s.config.TLS.Key != "" {
		cert, err := tls.LoadX509KeyPair(s.config.TLS.Cert, s.config.TLS.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		log.Printf("Using TLS certificate from %s and key from %s", s.config.TLS.Cert, s.config.TLS.Key)
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}, nil
	}

	if !s.config.TLS.Generation {
		return nil, errors.New("TLS enabled without a certificate and auto_generate is off")
	}

	log.Println("No TLS certificate provided, generating a self-signed certificate")
	cert, err := generateSelfSignedCert(s.config.Server.Name, s.config.TLS.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// generateSelfSignedCert generates a self-signed certificate for serverName
func generateSelfSignedCert(serverName, host string) (*tls.Certificate, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(365 * 24 * time.Hour)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: serverName,
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{serverName},
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = append(template.IPAddresses, ip)
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{derBytes},
		PrivateKey:  privateKey,
	}, nil
}
