/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package ws

import (
	"bufio"
	"crypto/rand"
	"net"
	"sync"
	"time"
	"unicode/utf8"
)

// State is the session's position in its lifecycle:
// Pending -> Open -> Closed.
type State int

const (
	StatePending State = iota
	StateOpen
	StateClosed
)

// Handlers is the set of application callbacks a Session dispatches
// to. All fields are optional; a nil handler silently discards the
// corresponding frame type.
type Handlers struct {
	Text   func(s *Session, text string)
	Binary func(s *Session, data []byte)
	Ping   func(s *Session, data []byte)
	Pong   func(s *Session, data []byte)
	Close  func(s *Session, status Status, reason string)
}

// Config bundles a session's tunables.
type Config struct {
	IdleTimeout     time.Duration // 0 = infinite
	MessageCapacity int64         // accumulated message bytes cap; 0 = DefaultMessageCapacity
	PayloadLimit    int           // outgoing per-frame payload cap; 0 = DefaultPayloadLimit
	Compress        bool          // permessage-deflate negotiated during Upgrade
}

const (
	DefaultMessageCapacity = 32 << 20
	DefaultPayloadLimit    = 64 << 10
)

// Session binds a WebSocket frame reader/writer to an established
// socket, assembling fragmented messages, dispatching to Handlers,
// and serializing outgoing writes behind one lock. Frame-level
// mechanics are delegated to frame.go/deflate.go.
type Session struct {
	conn     net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer
	isServer bool
	cfg      Config

	stateMu   sync.Mutex
	state     State
	sentClose bool // guarded by stateMu

	writeMu sync.Mutex

	handlers Handlers

	fragOpcode     Opcode
	fragCompressed bool
	fragBuf        []byte
	fragInProgress bool

	done chan struct{}
}

// New constructs a Session in State Pending over conn.
func New(conn net.Conn, isServer bool, cfg Config, h Handlers) *Session {
	return NewBuffered(conn, bufio.NewReader(conn), bufio.NewWriter(conn), isServer, cfg, h)
}

// NewBuffered is New with caller-supplied buffered reader/writer, for
// sockets taken over mid-stream — an HTTP Upgrade whose reader may
// already hold frames the peer pipelined behind the handshake.
func NewBuffered(conn net.Conn, br *bufio.Reader, bw *bufio.Writer, isServer bool, cfg Config, h Handlers) *Session {
	if cfg.MessageCapacity <= 0 {
		cfg.MessageCapacity = DefaultMessageCapacity
	}
	if cfg.PayloadLimit <= 0 {
		cfg.PayloadLimit = DefaultPayloadLimit
	}
	return &Session{
		conn:     conn,
		br:       br,
		bw:       bw,
		isServer: isServer,
		cfg:      cfg,
		handlers: h,
		done:     make(chan struct{}),
	}
}

// State reports the session's current state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Open transitions Pending -> Open and starts the reader task.
func (s *Session) Open() {
	s.stateMu.Lock()
	if s.state != StatePending {
		s.stateMu.Unlock()
		return
	}
	s.state = StateOpen
	s.stateMu.Unlock()
	go s.readLoop()
}

// Wait blocks until the reader task has exited (orderly close or
// socket abort).
func (s *Session) Wait() { <-s.done }

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		if s.State() == StateClosed {
			return
		}
		if s.cfg.IdleTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		f, err := ReadFrame(s.br, s.isServer, s.cfg.MessageCapacity)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.closeLocally(StatusGoingAway, "idle timeout")
				return
			}
			if err == ErrMessageTooBig {
				s.closeLocally(StatusMessageTooBig, "frame too large")
				return
			}
			s.closeLocally(StatusAbnormalClosure, "")
			return
		}
		if !s.handleFrame(f) {
			return
		}
	}
}

// handleFrame validates and dispatches one frame, returning false
// when the reader loop should stop.
func (s *Session) handleFrame(f Frame) bool {
	if f.Opcode.isControl() {
		return s.handleControl(f)
	}

	switch f.Opcode {
	case OpContinuation:
		if !s.fragInProgress {
			s.closeLocally(StatusProtocolError, "continuation without a preceding data frame")
			return false
		}
		s.fragBuf = append(s.fragBuf, f.Payload...)
		if int64(len(s.fragBuf)) > s.cfg.MessageCapacity {
			s.closeLocally(StatusMessageTooBig, "message exceeds capacity")
			return false
		}
		if f.Fin {
			return s.finishMessage(s.fragOpcode, s.fragCompressed, s.fragBuf)
		}
		return true

	case OpText, OpBinary:
		if s.fragInProgress {
			s.closeLocally(StatusProtocolError, "data frame before prior message completed")
			return false
		}
		if f.Fin {
			return s.finishMessage(f.Opcode, f.Compressed, f.Payload)
		}
		s.fragInProgress = true
		s.fragOpcode = f.Opcode
		s.fragCompressed = f.Compressed
		s.fragBuf = append([]byte{}, f.Payload...)
		return true

	default:
		s.closeLocally(StatusProtocolError, "unsupported opcode")
		return false
	}
}

func (s *Session) finishMessage(opcode Opcode, compressed bool, payload []byte) bool {
	s.fragInProgress = false
	s.fragBuf = nil

	if compressed {
		inflated, err := deflateDecompress(payload)
		if err != nil {
			s.closeLocally(StatusProtocolError, "invalid compressed payload")
			return false
		}
		payload = inflated
	}

	switch opcode {
	case OpText:
		if !utf8.Valid(payload) {
			s.closeLocally(StatusInvalidPayload, "invalid UTF-8")
			return false
		}
		if s.handlers.Text != nil {
			s.handlers.Text(s, string(payload))
		}
	case OpBinary:
		if s.handlers.Binary != nil {
			s.handlers.Binary(s, payload)
		}
	}
	return true
}

func (s *Session) handleControl(f Frame) bool {
	switch f.Opcode {
	case OpPing:
		if s.handlers.Ping != nil {
			s.handlers.Ping(s, f.Payload)
		}
		return true
	case OpPong:
		if s.handlers.Pong != nil {
			s.handlers.Pong(s, f.Payload)
		}
		return true
	case OpClose:
		status := StatusNoStatusPresent
		reason := ""
		if len(f.Payload) >= 2 {
			status = Status(int(f.Payload[0])<<8 | int(f.Payload[1]))
			reason = string(f.Payload[2:])
		}
		if s.handlers.Close != nil {
			s.handlers.Close(s, status, reason)
		}
		s.stateMu.Lock()
		already := s.sentClose
		s.sentClose = true
		s.state = StateClosed
		s.stateMu.Unlock()
		if !already {
			s.sendClose(status, "")
		}
		s.conn.Close()
		return false
	}
	return true
}

// closeLocally sends a Close frame (if one hasn't already gone out)
// mirroring status, transitions to Closed, and closes the socket —
// used when the reader loop itself detects an error (idle timeout,
// protocol violation, oversized message) rather than receiving a peer
// Close.
func (s *Session) closeLocally(status Status, reason string) {
	s.stateMu.Lock()
	already := s.sentClose
	s.sentClose = true
	s.state = StateClosed
	s.stateMu.Unlock()
	if !already {
		s.sendClose(status, reason)
	}
	s.conn.Close()
}

// Close begins the orderly close handshake from application code:
// send a Close frame (unless the peer closed first) and transition to
// Closed.
func (s *Session) Close(status Status, reason string) error {
	s.stateMu.Lock()
	already := s.sentClose
	s.sentClose = true
	s.state = StateClosed
	s.stateMu.Unlock()
	if already {
		return nil
	}
	return s.sendClose(status, reason)
}

// sendClose writes the Close frame; the caller has already claimed
// sentClose under stateMu so at most one goroutine gets here.
func (s *Session) sendClose(status Status, reason string) error {
	payload := []byte(reason)
	if status.sendable() {
		payload = append([]byte{byte(status >> 8), byte(status)}, payload...)
	} else {
		payload = nil
	}
	s.writeMu.Lock()
	err := s.writeFrame(Frame{Fin: true, Opcode: OpClose, Payload: payload})
	s.writeMu.Unlock()
	return err
}

// randomMaskKey generates a nonzero 32-bit masking key; the all-zero
// key means "no key" and must never go on the wire.
func randomMaskKey() [4]byte {
	var key [4]byte
	for {
		rand.Read(key[:])
		if key != ([4]byte{}) {
			return key
		}
	}
}

func (s *Session) writeFrame(f Frame) error {
	if err := WriteFrame(s.bw, f, s.isServer, randomMaskKey); err != nil {
		return err
	}
	return s.bw.Flush()
}

// writeMessage sends one data message, splitting payloads larger
// than the per-frame limit across continuation frames with FIN on the
// last. Writes are serialized by writeMu so fragments of one outgoing
// message are contiguous on the wire.
func (s *Session) writeMessage(opcode Opcode, payload []byte) error {
	compressed := false
	if s.cfg.Compress && (opcode == OpText || opcode == OpBinary) {
		out, err := deflateCompress(payload)
		if err == nil {
			payload = out
			compressed = true
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	limit := s.cfg.PayloadLimit
	if len(payload) <= limit {
		return s.writeFrame(Frame{Fin: true, Compressed: compressed, Opcode: opcode, Payload: payload})
	}
	for i := 0; i < len(payload); i += limit {
		end := i + limit
		if end > len(payload) {
			end = len(payload)
		}
		fin := end == len(payload)
		op := opcode
		comp := compressed
		if i > 0 {
			op = OpContinuation
			comp = false // RSV1 only on the first frame of a message
		}
		if err := s.writeFrame(Frame{Fin: fin, Compressed: comp, Opcode: op, Payload: payload[i:end]}); err != nil {
			return err
		}
	}
	return nil
}

// WriteText sends text as one (possibly fragmented) Text message.
func (s *Session) WriteText(text string) error { return s.writeMessage(OpText, []byte(text)) }

// WriteBinary sends data as one (possibly fragmented) Binary message.
func (s *Session) WriteBinary(data []byte) error { return s.writeMessage(OpBinary, data) }

// Ping sends a Ping control frame carrying data (<=125 bytes).
func (s *Session) Ping(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeFrame(Frame{Fin: true, Opcode: OpPing, Payload: data})
}

// Pong sends a Pong control frame, normally from a Ping handler that
// wants to echo the peer. The session itself never auto-pongs.
func (s *Session) Pong(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeFrame(Frame{Fin: true, Opcode: OpPong, Payload: data})
}
