// Package server implements the connection handler (§2/§6): a TCP
// listener, one goroutine per connection, and the line-oriented
// whitespace-tokenized wire protocol that turns client text into
// Payloads for the directory and renders replies back to text.
//
// The accept loop, connection bookkeeping and graceful shutdown follow
// the teacher's RedisServer/acceptConnections/handleConnection shape;
// the protocol itself is this store's own simpler-than-RESP framing in
// place of the teacher's protocol.ParseCommand.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"keyvaultd/internal/actor"
	"keyvaultd/internal/directory"
	"keyvaultd/internal/registry"
)

// Server owns the listener and the set of live connections.
type Server struct {
	config   *Config
	dir      *directory.Directory
	log      *logrus.Logger
	listener net.Listener

	connIDCounter   atomic.Int64
	activeConnCount atomic.Int64
	connections     sync.Map
	wg              sync.WaitGroup

	mu         sync.Mutex
	isShutdown bool
	shutdownCh chan struct{}
}

// New wires a Server around an already-constructed Directory.
func New(cfg *Config, dir *directory.Directory, log *logrus.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		config:     cfg,
		dir:        dir,
		log:        log,
		shutdownCh: make(chan struct{}),
	}
}

// Start binds the listener and runs the accept loop until ctx is done
// or Shutdown is called. Returns an error only if the bind itself
// fails — exit-code-worthy per §6.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	s.listener = listener
	s.log.WithField("addr", addr).Info("listening")

	go s.acceptLoop(ctx)
	<-ctx.Done()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			shuttingDown := s.isShutdown
			s.mu.Unlock()
			if shuttingDown {
				return
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}

		if s.activeConnCount.Load() >= int64(s.config.MaxConnections) {
			s.log.WithField("remote", conn.RemoteAddr()).Warn("max connections reached, rejecting")
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	id := s.connIDCounter.Add(1)
	s.activeConnCount.Add(1)
	defer s.activeConnCount.Add(-1)

	s.connections.Store(id, conn)
	defer s.connections.Delete(id)
	defer conn.Close()

	log := s.log.WithFields(logrus.Fields{"conn": id, "remote": conn.RemoteAddr()})
	sink := &clientSink{conn: conn, writer: bufio.NewWriterSize(conn, 4096)}

	s.serve(ctx, conn, sink, log)
	log.Debug("connection closed")
}

// serve is the per-connection read loop: one request per line, routed
// to the directory, reply rendered back on its own writer.
func (s *Server) serve(ctx context.Context, conn net.Conn, sink *clientSink, log *logrus.Entry) {
	reader := bufio.NewReaderSize(conn, s.config.ReadBufferSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		s.handleLine(line, sink, log)
	}
}

func (s *Server) handleLine(line string, sink *clientSink, log *logrus.Entry) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	cmd := strings.ToLower(fields[0])
	spec, ok := registry.Lookup(cmd)
	if !ok {
		sink.Reply("Unknown command")
		return
	}

	var key string
	var args []string
	if spec.Owning == registry.OwnKeys {
		args = fields[1:]
	} else {
		if len(fields) < 2 {
			sink.Reply("Missing key")
			return
		}
		key = fields[1]
		args = fields[2:]
	}

	if !registry.ArgsInRange(cmd, args) {
		sink.Reply("Invalid number of args")
		return
	}

	if registry.NotImplemented[cmd] {
		sink.Reply("Not implemented")
		return
	}

	log.WithFields(logrus.Fields{"cmd": cmd, "key": key}).Debug("dispatch")
	s.dir.Submit(&actor.Payload{Command: cmd, Key: key, Args: args, ToClient: sink})
}

// Shutdown stops accepting connections, closes every live connection,
// and waits (bounded) for their goroutines to finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return
	}
	s.isShutdown = true
	s.mu.Unlock()

	close(s.shutdownCh)
	if s.listener != nil {
		s.listener.Close()
	}

	s.connections.Range(func(_, v any) bool {
		if conn, ok := v.(net.Conn); ok {
			conn.Close()
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all connections closed gracefully")
	case <-time.After(5 * time.Second):
		s.log.Warn("shutdown timeout reached, forcing exit")
	}
}

// clientSink implements actor.ReplySink, rendering a Reply to the wire
// text §6/§4.2 describe and writing it to this connection.
type clientSink struct {
	mu     sync.Mutex
	conn   net.Conn
	writer *bufio.Writer
}

func (c *clientSink) Reply(r actor.Reply) {
	text, ok := renderTop(r)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.writer, text)
	c.writer.Flush()
}

// renderTop applies the top-level suppression rule: the unit response
// (actor.NoReply) emits nothing at all; every other reply, nil
// included, is rendered.
func renderTop(r actor.Reply) (string, bool) {
	if r == actor.NoReply {
		return "", false
	}
	return renderElem(r), true
}

// renderElem renders one value's textual form. A nil reply, at the top
// level or nested inside a multi-value reply (e.g. an mget miss),
// renders as the literal "nil", so slot alignment survives.
func renderElem(r actor.Reply) string {
	switch v := r.(type) {
	case nil:
		return "nil"
	case *actor.ExecError:
		return "error"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case []string:
		return strings.Join(v, "\n")
	case []actor.Reply:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = renderElem(e)
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprintf("%v", v)
	}
}
