/*
@Author: Lzww
@LastEditTime: 2025-10-03 10:20:00
@Description: Batched UDP receive loop feeding the reassembly queue
@Language: Go 1.23.4
*/

package transport

import (
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/moonlight-stream/rtpafec"
)

// Receiver owns the UDP socket and decryption hook that sit in front of a
// rtpafec.Queue - the queue itself never touches a net.Conn.
//
// rtpafec.Queue is single-threaded by design: it must only ever
// be driven from the goroutine that calls ReadOnce. Receiver enforces that by
// returning control to the caller on every read deadline instead of handing
// the queue to a second goroutine for timeout polling; see the pollInterval
// argument to NewReceiver.
type Receiver struct {
	conn  net.PacketConn
	pc    *ipv4.PacketConn
	xconn batchConn
	crypt BlockCrypt
	queue *rtpafec.Queue
	log   *zap.Logger

	pollInterval time.Duration

	bufs [][]byte
	msgs []ipv4.Message
}

// NewReceiver wraps conn for batched reads and pairs it with queue. crypt
// may be NoCrypt() for an unencrypted session. pollInterval bounds how long
// ReadOnce may block when no datagram arrives, so the caller can drive
// queue.PollTimeouts from the same goroutine during silence.
func NewReceiver(conn net.PacketConn, crypt BlockCrypt, queue *rtpafec.Queue, log *zap.Logger, pollInterval time.Duration) *Receiver {
	if log == nil {
		log = zap.NewNop()
	}
	pc := ipv4.NewPacketConn(conn)

	bufs := make([][]byte, batchSize)
	msgs := make([]ipv4.Message, batchSize)
	for i := range msgs {
		bufs[i] = make([]byte, 65535)
		msgs[i].Buffers = [][]byte{bufs[i]}
	}

	return &Receiver{conn: conn, pc: pc, xconn: pc, crypt: crypt, queue: queue, log: log, pollInterval: pollInterval, bufs: bufs, msgs: msgs}
}

// ReadOnce performs one batched (or, if unsupported by the kernel, single)
// read and feeds every decrypted datagram through AddPacket. It returns the
// number of datagrams processed, which is 0 (with a nil error) if the read
// deadline elapsed with nothing to receive - the caller should treat that as
// a cue to call queue.PollTimeouts. HANDLE_NOW and PACKET_READY statuses are
// left for the caller to act on via handle, e.g. draining GetQueuedPacket or
// dispatching the just-admitted packet straight to the decoder.
func (r *Receiver) ReadOnce(handle func(status rtpafec.Status)) (int, error) {
	n, err := r.readBatch()
	if err != nil {
		if isTimeout(err) {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		raw := r.bufs[i][:r.msgs[i].N]
		plaintext, derr := r.crypt.Decrypt(raw)
		if derr != nil {
			r.log.Debug("transport: dropping undecryptable datagram", zap.Error(derr), zap.Int("len", len(raw)))
			continue
		}
		handle(r.queue.AddPacket(plaintext))
	}
	return n, nil
}

func (r *Receiver) readBatch() (int, error) {
	if r.pollInterval > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.pollInterval)); err != nil {
			r.log.Warn("transport: failed to set read deadline", zap.Error(err))
		}
	}

	if r.xconn != nil {
		n, err := r.xconn.ReadBatch(r.msgs, 0)
		if err == nil {
			return n, nil
		}
		if isTimeout(err) {
			return 0, err
		}
		r.log.Warn("transport: batch read failed, falling back to single reads", zap.Error(err))
		r.xconn = nil
	}

	nread, _, err := r.conn.ReadFrom(r.bufs[0])
	if err != nil {
		return 0, err
	}
	r.msgs[0].N = nread
	return 1, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Close releases the underlying socket.
func (r *Receiver) Close() error {
	return r.pc.Close()
}
