package session

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"venuetrader/internal/codec"
	"venuetrader/internal/obs"
	"venuetrader/internal/schema"
	"venuetrader/pkg/exception"
)

const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultPollWait          = 10 * time.Millisecond
	DefaultDialTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 5 * time.Second

	readChunk = 64 << 10
)

// Config describes one venue connection.
type Config struct {
	Name              string        `yaml:"name"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// PollWait bounds how long Receive waits for bytes before returning.
	PollWait     time.Duration `yaml:"poll_wait"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.PollWait <= 0 {
		c.PollWait = DefaultPollWait
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Session is one framed connection to the venue. Send is safe for concurrent
// use; Receive is meant for a single receive loop. There is no reconnect:
// after any transport fault the session stays down.
type Session struct {
	cfg     Config
	metrics *obs.Metrics

	connected atomic.Bool

	mu     sync.Mutex // guards conn, stop, hbDone and done across connect/disconnect
	conn   net.Conn
	stop   chan struct{}
	hbDone chan struct{}
	done   chan struct{}

	sendMu sync.Mutex
	wbuf   []byte

	recvMu sync.Mutex
	asm    *codec.Assembler
	rbuf   []byte
}

// New creates a disconnected session. metrics may be nil.
func New(cfg Config, metrics *obs.Metrics) *Session {
	cfg = cfg.withDefaults()
	if cfg.Name == "" {
		cfg.Name = "session"
	}
	done := make(chan struct{})
	close(done)
	return &Session{
		cfg:     cfg,
		metrics: metrics,
		done:    done,
		asm:     codec.NewAssembler(readChunk),
		rbuf:    make([]byte, readChunk),
	}
}

// Name returns the session name used in logs and metrics.
func (s *Session) Name() string {
	return s.cfg.Name
}

// Connected reports whether the session is up.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Done is closed when the current connection is torn down.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Connect dials the venue. A failed dial leaves the session disconnected.
func (s *Session) Connect(ctx context.Context) error {
	if s.connected.Load() {
		return nil
	}
	if s.cfg.Host == "" {
		return exception.ErrSessionEmptyHost
	}
	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		logs.Errorf("session[%s]: connect %s, err: %+v", s.cfg.Name, s.cfg.Addr(), err)
		return errors.Wrapf(err, "connect %s", s.cfg.Addr())
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	s.Attach(conn)
	return nil
}

// Attach starts the session on an established connection.
func (s *Session) Attach(conn net.Conn) {
	s.mu.Lock()
	if s.connected.Load() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.stop = make(chan struct{})
	s.hbDone = make(chan struct{})
	s.done = make(chan struct{})
	s.recvMu.Lock()
	s.asm.Reset()
	s.recvMu.Unlock()
	s.connected.Store(true)
	stop, hbDone := s.stop, s.hbDone
	s.mu.Unlock()

	go s.heartbeat(stop, hbDone)
	logs.Infof("session[%s]: connected to %s", s.cfg.Name, conn.RemoteAddr())
}

// Send frames and writes one envelope. Writes never interleave. A write
// failure disconnects the session.
func (s *Session) Send(env schema.Envelope) error {
	if err := s.write(env); err != nil {
		if !stderrors.Is(err, exception.ErrSessionNotConnected) {
			logs.Errorf("session[%s]: send %s, err: %+v", s.cfg.Name, env.Type(), err)
			s.Disconnect()
		}
		return err
	}
	return nil
}

func (s *Session) write(env schema.Envelope) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.connected.Load() {
		return exception.ErrSessionNotConnected
	}
	s.wbuf = codec.AppendFrame(s.wbuf[:0], env)
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if _, err := s.conn.Write(s.wbuf); err != nil {
		return errors.Wrap(err, "write")
	}
	s.metrics.ObserveSent(s.cfg.Name, env.Type())
	return nil
}

// Receive returns the next complete envelope, waiting at most PollWait for
// bytes. ok is false when nothing complete has arrived yet. Peer close,
// read errors and corrupt frames disconnect the session.
func (s *Session) Receive() (schema.Envelope, bool) {
	if !s.connected.Load() {
		return schema.Envelope{}, false
	}
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if env, ok := s.next(); ok {
		return env, true
	}
	if !s.connected.Load() {
		return schema.Envelope{}, false
	}

	conn := s.conn
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PollWait))
	n, err := conn.Read(s.rbuf)
	if n > 0 {
		s.asm.Feed(s.rbuf[:n])
	}
	if err != nil && !isTimeout(err) {
		if stderrors.Is(err, io.EOF) {
			logs.Errorf("session[%s]: %+v", s.cfg.Name, exception.ErrSessionPeerClosed)
		} else if s.connected.Load() {
			logs.Errorf("session[%s]: recv, err: %+v", s.cfg.Name, err)
		}
		s.Disconnect()
		return schema.Envelope{}, false
	}
	return s.next()
}

func (s *Session) next() (schema.Envelope, bool) {
	env, ok, err := s.asm.Next()
	if err != nil {
		logs.Errorf("session[%s]: corrupt frame, err: %+v", s.cfg.Name, err)
		s.Disconnect()
		return schema.Envelope{}, false
	}
	if ok {
		s.metrics.ObserveReceived(s.cfg.Name, env.Type())
	}
	return env, ok
}

func (s *Session) heartbeat(stop <-chan struct{}, hbDone chan<- struct{}) {
	defer close(hbDone)
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.connected.Load() {
				return
			}
			if err := s.write(schema.NewEnvelope(schema.MsgHeartbeat, nil)); err != nil {
				if stderrors.Is(err, exception.ErrSessionNotConnected) {
					return
				}
				logs.Errorf("session[%s]: heartbeat, err: %+v", s.cfg.Name, err)
				// Disconnect waits for this goroutine.
				go s.Disconnect()
				return
			}
		}
	}
}

// Disconnect tears the session down. It is idempotent and safe from any
// goroutine, including Send and Receive error paths.
func (s *Session) Disconnect() {
	if !s.connected.CompareAndSwap(true, false) {
		return
	}
	s.mu.Lock()
	conn, stop, hbDone, done := s.conn, s.stop, s.hbDone, s.done
	s.mu.Unlock()

	close(stop)
	// unblock a heartbeat stuck on a stalled peer
	_ = conn.SetWriteDeadline(time.Now())
	<-hbDone

	// wait out an in-flight write so a heartbeat never lands after close
	s.sendMu.Lock()
	err := conn.Close()
	s.sendMu.Unlock()
	if err != nil {
		logs.Errorf("session[%s]: close, err: %+v", s.cfg.Name, err)
	}
	close(done)

	s.metrics.IncDisconnect(s.cfg.Name)
	logs.Infof("session[%s]: disconnected", s.cfg.Name)
}

func isTimeout(err error) bool {
	if stderrors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}
