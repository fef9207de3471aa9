/*
@Author: Lzww
@LastEditTime: 2025-10-02 23:48:00
@Description: Sequencer: synchronisation, OOS tracking, and block timeout policy
@Language: Go 1.23.4
*/

package rtpafec

// admitSequencing gates a packet on the sequencer state. It returns false
// if the packet must be dropped before ever reaching block lookup - either because it's
// the session's very first packet (used only to establish the sequence
// space) or because it's older than the oldest currently admissible base.
func (q *Queue) admitSequencing(id shardIdentity) bool {
	if !q.seenFirstPacket {
		q.seenFirstPacket = true
		q.oldestRtpBaseSequenceNumber = addSeq16(id.baseSeq, dataShards)
		q.nextRtpSequenceNumber = addSeq16(id.baseSeq, dataShards)
		return false
	}

	if isBefore16(id.seq, q.oldestRtpBaseSequenceNumber) {
		q.receivedOosData = true
		q.lastOosSequenceNumber = id.seq
		q.metrics.oosEvents.Inc()
		return false
	}

	return true
}

// refreshOldest advances oldestRtpBaseSequenceNumber to the block-aligned
// floor of nextRtpSequenceNumber. Anything before that base can never be
// emitted again; anything at or after it - including late arrivals for a
// gap block that sits behind the current head - is still admissible. It
// also flips receivedOosData back to fast mode once oldest has circled all
// the way past lastOosSequenceNumber.
func (q *Queue) refreshOldest() {
	offset := q.nextRtpSequenceNumber % dataShardsU16
	q.oldestRtpBaseSequenceNumber = q.nextRtpSequenceNumber - offset

	if q.receivedOosData && isBefore16(q.oldestRtpBaseSequenceNumber, q.lastOosSequenceNumber) {
		q.receivedOosData = false
	}
}

// enforceTimeoutsAfter applies the head-block timeout policy. It is
// invoked after admitting a packet that belongs to a block other than the
// current head.
func (q *Queue) enforceTimeoutsAfter(admittedBaseSeq uint16) {
	head := q.blocks.head
	if head == nil || head.baseSeq == admittedBaseSeq {
		return
	}
	if !q.blockTimedOut(head) {
		return
	}

	head.allowDiscontinuity = true
	q.metrics.blocksTimedOut.Inc()
	q.logger.blockTimedOut(head)
	q.recordEvent(EventBlockTimedOut, head.baseSeq, 0)

	if isBefore16(q.nextRtpSequenceNumber, head.baseSeq) {
		q.nextRtpSequenceNumber = head.baseSeq
	}
}

func (q *Queue) blockTimedOut(b *FecBlock) bool {
	if !q.receivedOosData {
		return true
	}
	deadline := uint64(dataShards)*uint64(q.audioPacketDurationMs) + oosWaitTimeMs
	return q.clock.NowMs()-b.queueTimeMs > deadline
}

// PollTimeouts re-evaluates the head block's timeout without a new packet
// arriving. Timeouts are otherwise only checked inline in AddPacket (the
// queue starts no goroutines and owns no timers); PollTimeouts exists for
// the receive loop to call during idle silence, when no packet will ever
// arrive to trigger the inline check - see transport.Receiver.
//
// Unlike the inline check, silence carries no a-later-block-arrived signal,
// so the fast-mode shortcut does not apply here: only the wall-clock
// deadline can declare the head lost.
func (q *Queue) PollTimeouts() {
	head := q.blocks.head
	if head == nil {
		return
	}
	deadline := uint64(dataShards)*uint64(q.audioPacketDurationMs) + oosWaitTimeMs
	if q.clock.NowMs()-head.queueTimeMs <= deadline {
		return
	}
	head.allowDiscontinuity = true
	q.metrics.blocksTimedOut.Inc()
	q.logger.blockTimedOut(head)
	q.recordEvent(EventBlockTimedOut, head.baseSeq, 0)
	if isBefore16(q.nextRtpSequenceNumber, head.baseSeq) {
		q.nextRtpSequenceNumber = head.baseSeq
	}
}
