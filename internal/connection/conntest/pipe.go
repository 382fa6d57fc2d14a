// Package conntest provides an in-memory transport for exercising
// connections, pipelines and meetings without sockets.
package conntest

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"meetinghost/internal/connection"
	"meetinghost/pkg/protocol"
)

// ErrPipeClosed is returned once the pipe is closed.
var ErrPipeClosed = errors.New("pipe closed")

// Pipe is a Transport whose inbound frames are pushed by the test and whose
// outbound frames are recorded.
type Pipe struct {
	name string

	mu      sync.Mutex
	cond    *sync.Cond
	inbound [][]byte
	sent    [][]byte
	closed  bool
	sendErr error
	recvErr error
	pollErr error
}

// NewPipe creates an open pipe.
func NewPipe(name string) *Pipe {
	p := &Pipe{name: name}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// NewConn returns a Conn backed by a fresh pipe.
func NewConn(name string) (*connection.Conn, *Pipe) {
	p := NewPipe(name)
	return connection.New(p), p
}

// Push queues a raw frame for the server to receive. The end marker is
// stripped, as the TCP transport would.
func (p *Pipe) Push(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound = append(p.inbound, bytes.TrimSuffix(append([]byte(nil), frame...), []byte(protocol.PayloadEndMarker)))
	p.cond.Broadcast()
}

// PushMessage queues a message in the current wire form.
func (p *Pipe) PushMessage(m *protocol.Message) {
	p.Push(m.Encode())
}

// PushSignal queues a message built from signal and payload.
func (p *Pipe) PushSignal(signal string, payload []byte) {
	p.PushMessage(protocol.MustMessage(signal, payload))
}

// FailSends makes every following Send return err.
func (p *Pipe) FailSends(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = err
}

// FailReceive makes the next Receive return err.
func (p *Pipe) FailReceive(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recvErr = err
	p.cond.Broadcast()
}

// FailPoll makes every following WillReadBlock return err.
func (p *Pipe) FailPoll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollErr = err
}

func (p *Pipe) Receive() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.inbound) == 0 && !p.closed && p.recvErr == nil {
		p.cond.Wait()
	}
	if p.recvErr != nil {
		err := p.recvErr
		p.recvErr = nil
		return nil, err
	}
	if len(p.inbound) == 0 {
		return nil, ErrPipeClosed
	}
	frame := p.inbound[0]
	p.inbound = p.inbound[1:]
	return frame, nil
}

func (p *Pipe) Send(packet []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	if p.closed {
		return ErrPipeClosed
	}
	p.sent = append(p.sent, append([]byte(nil), packet...))
	p.cond.Broadcast()
	return nil
}

func (p *Pipe) WillReadBlock() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pollErr != nil {
		return true, p.pollErr
	}
	if p.recvErr != nil {
		return false, nil
	}
	if p.closed && len(p.inbound) == 0 {
		return true, ErrPipeClosed
	}
	return len(p.inbound) == 0, nil
}

func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

func (p *Pipe) RemoteName() string {
	return p.name
}

// Closed reports whether the transport was closed.
func (p *Pipe) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// SentFrames returns copies of every frame sent so far.
func (p *Pipe) SentFrames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.sent))
	for i, f := range p.sent {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Sent decodes every frame sent so far. Frames that fail to decode are
// skipped.
func (p *Pipe) Sent() []*protocol.Message {
	var out []*protocol.Message
	for _, f := range p.SentFrames() {
		if m, err := protocol.DecodeAny(f); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// SentSignals lists the signals of every decodable frame sent so far.
func (p *Pipe) SentSignals() []string {
	var out []string
	for _, m := range p.Sent() {
		out = append(out, m.Signal())
	}
	return out
}

// WaitForSent blocks until at least n frames were sent or timeout elapses.
func (p *Pipe) WaitForSent(n int, timeout time.Duration) []*protocol.Message {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		count := len(p.sent)
		p.mu.Unlock()
		if count >= n {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	return p.Sent()
}

// Pending returns the number of pushed frames not yet received.
func (p *Pipe) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inbound)
}
