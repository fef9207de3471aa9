/*
@Author: Lzww
@LastEditTime: 2025-10-02 23:30:00
@Description: Queue - top level sequencing, assembly and FEC recovery state machine
@Language: Go 1.23.4
*/

package rtpafec

import (
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures a Queue at construction. AudioPacketDurationMs is fixed
// for the lifetime of the session; D, P and T are compile time constants and
// are not part of Config (see constants.go).
type Config struct {
	// AudioPacketDurationMs is the fixed milliseconds-per-packet value
	// negotiated at session start.
	AudioPacketDurationMs uint32

	// Logger receives structured diagnostics for drops and contract
	// violations. Defaults to a no-op logger.
	Logger *zap.Logger

	// Registerer receives the queue's Prometheus collectors. May be nil.
	Registerer prometheus.Registerer

	// Clock is the monotonic time source for block timeout enforcement.
	// Defaults to a real wall clock; tests inject a FakeClock.
	Clock Clock

	// DebugValidateRecovery forces an extra self-check reconstruction on
	// every completed block that holds at least one parity shard, with one
	// received data shard artificially hidden; blocks with no parity are not
	// checked. Off by default; roughly doubles RS work per completed block.
	DebugValidateRecovery bool
}

// Queue is the top-level aggregate: the block list, the free-block cache,
// the Reed-Solomon handle, and all sequencer state. It is not safe for
// concurrent use: a single network-receive task owns it and drives every
// call.
type Queue struct {
	blocks blockList
	cache  blockCache
	rs     *rsHandle

	nextRtpSequenceNumber       uint16
	oldestRtpBaseSequenceNumber uint16
	synchronizing               bool
	seenFirstPacket             bool
	receivedOosData             bool
	lastOosSequenceNumber       uint16
	incompatibleServer          bool

	audioPacketDurationMs uint32
	clock                 Clock
	logger                queueLogger
	metrics               *Metrics
	debugValidateRecovery bool
	lastCompletedBlock    *FecBlock

	events RingBuffer[Event]
}

// Initialize constructs a new Queue in synchronising mode.
func Initialize(cfg Config) *Queue {
	clock := cfg.Clock
	if clock == nil {
		clock = newSystemClock()
	}

	rs, err := newRSHandle()
	if err != nil {
		// The only failure mode of reedsolomon.New for our fixed, valid
		// (dataShards, fecShards) is a programmer error in constants.go;
		// there is no sensible degraded mode, so surface it loudly rather
		// than silently running without FEC.
		panic(err)
	}

	q := &Queue{
		rs:                    rs,
		synchronizing:         true,
		audioPacketDurationMs: cfg.AudioPacketDurationMs,
		clock:                 clock,
		logger:                newQueueLogger(cfg.Logger),
		metrics:               NewMetrics(cfg.Registerer),
		debugValidateRecovery: cfg.DebugValidateRecovery,
		events:                *NewRingBuffer[Event](eventHistoryCapacity),
	}
	return q
}

// Cleanup drains the block list and free cache and releases the
// Reed-Solomon handle. The Queue must not be used afterward.
func (q *Queue) Cleanup() {
	q.blocks = blockList{}
	q.cache = blockCache{}
	q.rs = nil
	q.lastCompletedBlock = nil
}

// AddPacket ingests one inbound RTP packet (audio data or FEC parity) and
// reports what the caller should do next: nothing, decode the packet it just
// passed in, or drain GetQueuedPacket.
func (q *Queue) AddPacket(raw []byte) Status {
	if q.incompatibleServer {
		return q.addPacketIncompatible(raw)
	}

	id, err := q.deriveIdentity(raw)
	if err != nil {
		q.logger.malformed(err, raw)
		return StatusNone
	}

	if !q.admitSequencing(id) {
		return StatusNone
	}

	block, err := q.findOrCreateBlock(id)
	if err != nil || block == nil {
		return StatusNone
	}

	switch id.kind {
	case shardKindData:
		return q.admitDataShardPacket(raw, id, block)
	default:
		return q.admitFecShardPacket(raw, id, block)
	}
}

// addPacketIncompatible handles the latched incompatible-server state:
// audio data bypasses the queue entirely and FEC is ignored outright.
func (q *Queue) addPacketIncompatible(raw []byte) Status {
	if len(raw) < rtpHeaderSize {
		return StatusNone
	}
	hdr, err := parseRTPHeader(raw)
	if err != nil {
		return StatusNone
	}
	if hdr.PayloadType == audioPayloadType {
		return StatusHandleNow
	}
	return StatusNone
}

func (q *Queue) admitDataShardPacket(raw []byte, id shardIdentity, block *FecBlock) Status {
	idx := int(id.seq - id.baseSeq)
	if !block.admitDataShard(raw, idx) {
		q.recordEvent(EventShardDuplicate, id.baseSeq, id.seq)
		return StatusNone
	}
	q.recordEvent(EventShardAdmitted, id.baseSeq, id.seq)
	// The fast path below may itself complete the block (every data shard
	// now arrived natively); detect that directly rather than falling
	// through to tryRecover, which the fast path must never do - it would
	// risk invoking Reed-Solomon.
	q.completeIfAllDataArrived(block)

	// The fast path always lands in the head block (the consumer's expected
	// sequence number can only live there), so the non-head timeout check
	// below does not apply - running it after advanceEmission frees the head
	// would instantly time out whatever block follows.
	if id.seq == q.nextRtpSequenceNumber {
		q.recordEvent(EventPacketEmitted, id.baseSeq, id.seq)
		q.advanceEmission(block)
		return StatusHandleNow
	}

	q.tryRecover(block)
	q.enforceTimeoutsAfter(id.baseSeq)

	if q.queueHasPacketReady() {
		return StatusPacketReady
	}
	return StatusNone
}

func (q *Queue) admitFecShardPacket(raw []byte, id shardIdentity, block *FecBlock) Status {
	if !block.admitFecShard(raw, id.fecShardIndex) {
		q.recordEvent(EventShardDuplicate, id.baseSeq, id.seq)
		return StatusNone
	}
	q.recordEvent(EventShardAdmitted, id.baseSeq, id.seq)

	q.tryRecover(block)
	q.enforceTimeoutsAfter(id.baseSeq)

	if q.queueHasPacketReady() {
		return StatusPacketReady
	}
	return StatusNone
}
