package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/villain/pkg/compiler"
	"github.com/vango-dev/villain/pkg/protocol"
	"github.com/vango-dev/villain/pkg/scheduler"
	"github.com/vango-dev/villain/pkg/vdom"
)

// Session is one mounted root component and the client it renders to.
// The session outlives its connection: a client reconnecting within the
// resume window gets the batches it missed, or a full mount of the
// current tree, and keeps its state.
type Session struct {
	ID string

	// Component is the name of the root component.
	Component string

	config  *SessionConfig
	sched   *scheduler.Scheduler
	history *History
	logger  *slog.Logger
	metrics *Metrics

	// mu guards the fields below.
	mu         sync.Mutex
	conn       *websocket.Conn
	codec      protocol.Codec
	seq        uint64
	lastActive time.Time
	detachedAt time.Time

	// writeMu serializes writes on conn.
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

// generateSessionID creates a cryptographically secure session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// SECURITY: Fatal on entropy failure - weak IDs are dangerous
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

func newSession(component string, reg *compiler.Registry, config *SessionConfig, logger *slog.Logger, metrics *Metrics, sm *scheduler.Metrics) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         generateSessionID(),
		Component:  component,
		config:     config,
		history:    NewHistory(config.HistorySize),
		metrics:    metrics,
		lastActive: time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.logger = logger.With("session_id", s.ID)
	s.sched = scheduler.New(reg, scheduler.SinkFunc(s.apply),
		scheduler.WithLogger(s.logger),
		scheduler.WithMetrics(sm),
		scheduler.WithMaxRendersPerTick(config.MaxRendersPerTick),
		scheduler.WithErrorHandler(s.renderFailed),
	)
	return s
}

// start runs the scheduler until the session closes.
func (s *Session) start() {
	go func() {
		defer close(s.done)
		if err := s.sched.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// Scheduler returns the scheduler of the session. Use Do to touch it.
func (s *Session) Scheduler() *scheduler.Scheduler { return s.sched }

// Do runs fn on the goroutine owning the scheduler.
func (s *Session) Do(ctx context.Context, fn func() error) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.sched.Do(ctx, fn)
}

// Seq returns the sequence of the last batch sent.
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Attached reports whether a client is connected.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == nil && !s.detachedAt.IsZero() && now.Sub(s.detachedAt) > s.config.ResumeWindow
}

// apply is the scheduler sink: every committed op list becomes one
// numbered batch. Batches sent while detached are only kept in history.
func (s *Session) apply(ops []vdom.Op) error {
	if s.closed.Load() {
		return nil
	}
	s.mu.Lock()
	s.seq++
	batch := &protocol.Ops{Seq: s.seq, Ops: append([]vdom.Op(nil), ops...)}
	s.history.Add(batch)
	conn, codec := s.conn, s.codec
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := s.send(conn, codec, batch); err != nil {
		// The read loop notices the broken connection; the batch waits in
		// history for the resume.
		s.logger.Warn("op batch not delivered", "seq", batch.Seq, "error", err)
	}
	return nil
}

// attach binds conn to the session and brings the client up to date. A
// resuming client that applied every batch up to lastSeq gets the batches
// it missed; any other client is told to clear its mount point and gets
// the whole tree. It runs on the scheduler goroutine so that no tick
// interleaves with the catch-up.
func (s *Session) attach(ctx context.Context, conn *websocket.Conn, codec protocol.Codec, resume bool, lastSeq uint64) error {
	return s.Do(ctx, func() error {
		s.mu.Lock()
		s.conn, s.codec = conn, codec
		s.detachedAt = time.Time{}
		s.lastActive = time.Now()
		seq := s.seq
		s.mu.Unlock()

		welcome := &protocol.Welcome{
			Status:     protocol.HandshakeOK,
			Session:    s.ID,
			Component:  s.Component,
			ServerTime: uint64(time.Now().UnixMilli()),
		}

		if resume {
			if missed, ok := s.history.Since(lastSeq, seq); ok {
				welcome.Resumed = true
				welcome.NextSeq = lastSeq + 1
				if err := s.send(conn, codec, welcome); err != nil {
					return err
				}
				for _, b := range missed {
					if err := s.send(conn, codec, b); err != nil {
						return err
					}
				}
				s.metrics.resumes.WithLabelValues("replayed").Inc()
				s.logger.Info("session resumed", "last_seq", lastSeq, "replayed", len(missed))
				return nil
			}
			s.metrics.resumes.WithLabelValues("remounted").Inc()
			s.logger.Info("session remounted", "last_seq", lastSeq, "seq", seq)
		}

		welcome.NextSeq = seq + 1
		if err := s.send(conn, codec, welcome); err != nil {
			return err
		}
		if s.sched.Root() == nil {
			return nil
		}
		return s.apply(vdom.MountOps(vdom.RootID, s.sched.Snapshot()))
	})
}

// mount mounts the root component. Its ops go out as the first batch.
func (s *Session) mount(ctx context.Context, def *compiler.Definition, props map[string]any) error {
	return s.Do(ctx, func() error {
		if _, err := s.sched.Mount(s.ctx, def, props); err != nil {
			return &SessionError{SessionID: s.ID, Op: "mount " + def.Name, Err: err}
		}
		return nil
	})
}

// detach forgets conn if it is still the session's connection.
func (s *Session) detach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
		s.detachedAt = time.Now()
	}
}

// send encodes m with codec and writes it on conn.
func (s *Session) send(conn *websocket.Conn, codec protocol.Codec, m protocol.Message) error {
	f, err := protocol.Encode(codec, m)
	if err != nil {
		return &SessionError{SessionID: s.ID, Op: "encode " + m.FrameType().String(), Err: err}
	}
	data := f.Encode()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return &SessionError{SessionID: s.ID, Op: "write " + f.Type.String(), Err: err}
	}
	s.metrics.framesSent.WithLabelValues(f.Type.String()).Inc()
	s.metrics.bytesSent.Add(float64(len(data)))
	return nil
}

// sendError reports err to the attached client, if any.
func (s *Session) sendError(code protocol.ErrorCode, message string) {
	s.mu.Lock()
	conn, codec := s.conn, s.codec
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := s.send(conn, codec, protocol.NewError(code, message)); err != nil {
		s.logger.Debug("error not delivered", "code", code, "error", err)
	}
}

func (s *Session) renderFailed(err error) {
	s.logger.Error("render failed", "error", err)
	s.sendError(protocol.ErrRenderFailed, err.Error())
}

// readLoop reads frames from conn until it fails or the client closes the
// session, which is reported as ErrClientClosed.
func (s *Session) readLoop(conn *websocket.Conn, codec protocol.Codec) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return err
		}

		s.mu.Lock()
		s.lastActive = time.Now()
		s.mu.Unlock()
		s.metrics.bytesReceived.Add(float64(len(msg)))

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Warn("frame decode error", "error", err)
			s.sendError(protocol.ErrInvalidFrame, err.Error())
			continue
		}
		s.metrics.framesReceived.WithLabelValues(frame.Type.String()).Inc()

		m, err := protocol.Decode(frame)
		if err != nil {
			s.logger.Warn("payload decode error", "type", frame.Type, "error", err)
			code := protocol.ErrInvalidFrame
			if frame.Type == protocol.FrameEvent {
				code = protocol.ErrInvalidEvent
			}
			s.sendError(code, err.Error())
			continue
		}

		switch m := m.(type) {
		case *protocol.Event:
			s.handleEvent(m)
		case *protocol.Control:
			if err := s.handleControl(conn, codec, m); err != nil {
				return err
			}
		default:
			s.logger.Warn("unexpected frame", "type", frame.Type)
		}
	}
}

// handleEvent dispatches a client event on the scheduler goroutine. The
// renders it causes run in the tick that follows.
func (s *Session) handleEvent(ev *protocol.Event) {
	err := s.Do(s.ctx, func() error {
		return s.sched.Dispatch(ev.Node, ev.Name, ev.Payload)
	})
	if err == nil {
		s.metrics.events.WithLabelValues("ok").Inc()
		return
	}
	s.metrics.events.WithLabelValues("error").Inc()

	code := protocol.ErrHandlerFailed
	switch {
	case errors.Is(err, scheduler.ErrUnknownNode), errors.Is(err, scheduler.ErrNoListener):
		code = protocol.ErrUnknownNode
	case errors.Is(err, ErrSessionClosed), errors.Is(err, context.Canceled):
		code = protocol.ErrSessionExpired
	}
	s.sendError(code, err.Error())
}

func (s *Session) handleControl(conn *websocket.Conn, codec protocol.Codec, c *protocol.Control) error {
	switch c.Kind {
	case protocol.ControlPing:
		return s.send(conn, codec, &protocol.Control{Kind: protocol.ControlPong, Timestamp: c.Timestamp})
	case protocol.ControlPong:
		s.logger.Debug("received pong")
	case protocol.ControlResync:
		s.logger.Info("resync requested", "last_seq", c.LastSeq)
		return s.attach(s.ctx, conn, codec, true, c.LastSeq)
	case protocol.ControlClose:
		s.logger.Info("client closing")
		return ErrClientClosed
	}
	return nil
}

// heartbeat pings conn until stop is closed.
func (s *Session) heartbeat(conn *websocket.Conn, codec protocol.Codec, stop <-chan struct{}) {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ping := &protocol.Control{Kind: protocol.ControlPing, Timestamp: uint64(time.Now().UnixMilli())}
			if err := s.send(conn, codec, ping); err != nil {
				s.logger.Debug("ping failed", "error", err)
				return
			}
		case <-stop:
			return
		case <-s.done:
			return
		}
	}
}

// Close stops the scheduler, unmounts the tree and closes the connection.
// It is safe to call more than once.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	<-s.done
	if err := s.sched.Unmount(); err != nil {
		s.logger.Debug("unmount failed", "error", err)
	}

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	s.logger.Info("session closed")
}
