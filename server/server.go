// Package mbserver implements the server side of the MODBUS TCP protocol
// engine: a per-connection request dispatcher that decodes framed
// requests, delegates to a pluggable RequestHandler, and synthesises
// normal or exception replies.
package mbserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fieldbus-go/modbus"
)

// Option configures a Server at construction time.
type Option func(*Server) error

// Logger overrides the server's default logger.
func Logger(logger modbus.LeveledLogger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// Timeout sets the idle-connection read timeout. Zero disables it.
func Timeout(timeout time.Duration) Option {
	return func(s *Server) error {
		s.timeout = timeout
		return nil
	}
}

// Server accepts TCP connections and dispatches MODBUS requests on them
// to a RequestHandler.
type Server struct {
	timeout time.Duration
	logger  modbus.LeveledLogger
	handler RequestHandler

	lock     sync.Mutex
	listener net.Listener
	conns    []net.Conn
	connSem  *semaphore.Weighted
}

// New returns a Server backed by handler. handler.MaxConcurrentConnections
// is read once here to size the connection-admission semaphore.
func New(handler RequestHandler, opts ...Option) (*Server, error) {
	s := &Server{
		handler: handler,
		logger:  modbus.NewStdLogger("mbserver"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if max := handler.MaxConcurrentConnections(); max > 0 {
		s.connSem = semaphore.NewWeighted(int64(max))
	}

	return s, nil
}

// Start begins accepting connections on l.
func (s *Server) Start(l net.Listener) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.listener != nil {
		return errors.New("mbserver: server already started")
	}
	s.listener = l

	go s.acceptClients()

	return nil
}

// Stop closes the listener and every active connection.
func (s *Server) Stop() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.listener == nil {
		return errors.New("mbserver: server not started")
	}

	err := s.listener.Close()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.listener = nil

	return err
}

func (s *Server) acceptClients() {
	for {
		sock, err := s.listener.Accept()
		if err != nil {
			s.lock.Lock()
			stopped := s.listener == nil
			s.lock.Unlock()
			if stopped {
				return
			}
			s.logger.Warningf("failed to accept client connection: %v", err)
			continue
		}

		clientAddr := sock.RemoteAddr().String()

		if !s.handler.AcceptConnection(clientAddr) {
			s.logger.Warningf("handler rejected connection from %v", clientAddr)
			sock.Close()
			continue
		}

		if s.connSem != nil && !s.connSem.TryAcquire(1) {
			s.logger.Warningf("max. number of concurrent connections reached, rejecting %v", clientAddr)
			sock.Close()
			continue
		}

		s.lock.Lock()
		s.conns = append(s.conns, sock)
		s.lock.Unlock()

		go s.handleConnection(sock, clientAddr)
	}
}

func (s *Server) handleConnection(sock net.Conn, clientAddr string) {
	s.pump(sock, clientAddr)

	s.lock.Lock()
	for i := range s.conns {
		if s.conns[i] == sock {
			s.conns[i] = s.conns[len(s.conns)-1]
			s.conns = s.conns[:len(s.conns)-1]
			break
		}
	}
	s.lock.Unlock()

	if s.connSem != nil {
		s.connSem.Release(1)
	}
	sock.Close()
	s.handler.Disconnected(clientAddr)
}

// pump reads framed requests off conn until the connection closes or a
// terminal framing error occurs, dispatching each request on its own
// goroutine bounded by the handler's per-connection request limit.
func (s *Server) pump(sock net.Conn, clientAddr string) {
	conn := modbus.NewConnection(sock)

	var reqSem *semaphore.Weighted
	if max := s.handler.MaxConcurrentRequests(); max > 0 {
		reqSem = semaphore.NewWeighted(int64(max))
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if s.timeout > 0 {
			sock.SetReadDeadline(time.Now().Add(s.timeout))
		}

		req, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if reqSem != nil {
			if err := reqSem.Acquire(context.Background(), 1); err != nil {
				return
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if reqSem != nil {
				defer reqSem.Release(1)
			}
			s.dispatch(conn, clientAddr, req)
		}()
	}
}

// dispatch decodes and validates req, invokes the handler, and writes
// back a normal or exception reply.
func (s *Server) dispatch(conn *modbus.Connection, clientAddr string, req *modbus.Message) {
	res := s.handle(clientAddr, req)

	if err := conn.WriteMessage(res); err != nil {
		s.logger.Warningf("failed to write response to %v: %v", clientAddr, err)
	}
}

func exceptionReply(req *modbus.Message, code modbus.ExceptionCode) *modbus.Message {
	return &modbus.Message{
		TransactionID: req.TransactionID,
		ProtocolID:    req.ProtocolID,
		UnitID:        req.UnitID,
		FunctionCode:  req.FunctionCode.AsException(),
		Body:          []byte{byte(code)},
	}
}

func reply(req *modbus.Message, body []byte) *modbus.Message {
	return &modbus.Message{
		TransactionID: req.TransactionID,
		ProtocolID:    req.ProtocolID,
		UnitID:        req.UnitID,
		FunctionCode:  req.FunctionCode,
		Body:          body,
	}
}

// asException maps a handler-returned error to the exception code placed
// in a reply: a modbus.ModbusException is carried through verbatim,
// anything else becomes ServerDeviceFailure.
func asException(err error) modbus.ExceptionCode {
	var modbusErr modbus.ModbusException
	if errors.As(err, &modbusErr) {
		return modbusErr.Code()
	}
	return modbus.ExServerDeviceFailure
}
