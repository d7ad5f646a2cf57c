package os2l

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Handler receives validated inbound messages. Calls for one connection
// arrive in wire order; implementations should return quickly, extraction
// of later messages is decoupled from handling but the per-connection
// dispatch queue is bounded.
type Handler interface {
	HandleBeat(Beat)
	HandleButton(Button)
	HandleCommand(Command)
}

// Server accepts DJ-software connections and dispatches their messages.
type Server struct {
	addr    string
	handler Handler
	logger  *slog.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[*serverConn]struct{}
}

// NewServer creates a server that will listen on addr. Nothing is bound
// until Run is called.
func NewServer(addr string, handler Handler, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  logger,
		conns:   make(map[*serverConn]struct{}),
	}
}

// Run listens and serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("os2l server listening", "addr", ln.Addr())

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		if err := ln.Close(); err != nil {
			return errors.Wrap(err, "failed to close listener")
		}
		return ctx.Err()
	})
	errg.Go(func() error {
		for {
			netConn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.Wrap(err, "accept failed")
			}
			c := s.addConn(netConn)
			go c.serve(ctx)
		}
	})

	err = errg.Wait()
	s.closeConns()
	if errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

// Addr returns the bound listener address, or nil before Run has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// SendFeedback encodes a feedback message and broadcasts it to every live
// connection, newline-terminated. An invalid message is returned to the
// caller; write failures on individual connections are logged and skipped.
func (s *Server) SendFeedback(fb Feedback) error {
	text, err := EncodeFeedback(fb)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.writeRecord(text); err != nil {
			s.logger.Warn("failed to send feedback",
				"peer", c.netConn.RemoteAddr(),
				"error", err)
		}
	}
	return nil
}

func (s *Server) addConn(netConn net.Conn) *serverConn {
	c := &serverConn{
		server:   s,
		netConn:  netConn,
		dispatch: make(chan string, 64),
	}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	return c
}

func (s *Server) removeConn(c *serverConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.netConn.Close()
	}
}

type serverConn struct {
	server  *Server
	netConn net.Conn

	// dispatch decouples message handling from frame extraction so a slow
	// handler cannot stall the read loop.
	dispatch chan string

	writeMu sync.Mutex
}

func (c *serverConn) serve(ctx context.Context) {
	logger := c.server.logger.With("peer", c.netConn.RemoteAddr())
	logger.Info("client connected")

	defer func() {
		c.server.removeConn(c)
		c.netConn.Close()
		logger.Info("client disconnected")
	}()

	go c.handleLoop(logger)
	defer close(c.dispatch)

	var framer Framer
	buf := make([]byte, 4096)
	for {
		n, err := c.netConn.Read(buf)
		if n > 0 {
			for _, text := range framer.Push(buf[:n]) {
				select {
				case c.dispatch <- text:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				logger.Debug("read loop ended", "error", err)
			}
			return
		}
	}
}

func (c *serverConn) handleLoop(logger *slog.Logger) {
	for text := range c.dispatch {
		msg, err := Decode(text)
		if err != nil {
			// Bad messages are dropped; the stream goes on.
			logger.Warn("dropping invalid message", "text", text, "error", err)
			continue
		}

		switch msg := msg.(type) {
		case Beat:
			c.server.handler.HandleBeat(msg)
		case Button:
			c.server.handler.HandleButton(msg)
		case Command:
			c.server.handler.HandleCommand(msg)
		}
	}
}

func (c *serverConn) writeRecord(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.netConn.Write(append([]byte(text), '\n'))
	return err
}
