/*
@Author: Lzww
@LastEditTime: 2025-10-03 13:05:00
@Description: Property checks: global invariants under loss, reorder and duplication
@Language: Go 1.23.4
*/

package rtpafec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// checkInvariants asserts the six global invariants that must hold on entry
// and exit of every public call.
func checkInvariants(t *testing.T, q *Queue) {
	t.Helper()

	// 1: head and tail are nil together
	if q.blocks.head == nil || q.blocks.tail == nil {
		require.Nil(t, q.blocks.head)
		require.Nil(t, q.blocks.tail)
	} else {
		// 2: list ends are terminated
		require.Nil(t, q.blocks.head.prev)
		require.Nil(t, q.blocks.tail.next)
	}

	// 3: strict ordering and identity agreement between neighbours
	for b := q.blocks.head; b != nil && b.next != nil; b = b.next {
		require.True(t, isBefore16(b.baseSeq, b.next.baseSeq))
		require.True(t, isBefore32(b.baseTs, b.next.baseTs))
		require.Equal(t, b.blockSize, b.next.blockSize)
		require.Equal(t, b.ssrc, b.next.ssrc)
		require.Equal(t, b.payloadType, b.next.payloadType)
	}

	// 4: the consumer position never trails the admissible base
	if !q.synchronizing {
		require.False(t, isBefore16(q.nextRtpSequenceNumber, q.oldestRtpBaseSequenceNumber))
	}

	// 5: the head block brackets the consumer position
	if head := q.blocks.head; head != nil {
		require.True(t, isBefore16(q.nextRtpSequenceNumber, addSeq16(head.baseSeq, dataShards)))
		require.False(t, isBefore16(head.baseSeq, q.oldestRtpBaseSequenceNumber))
	}

	// 6: shard counters agree with the presence marks
	for b := q.blocks.head; b != nil; b = b.next {
		present := 0
		for _, missing := range b.marks {
			if !missing {
				present++
			}
		}
		require.Equal(t, present, b.dataShardsReceived+b.fecShardsReceived)
	}
}

// drainAndCheck pulls everything currently emittable and asserts each
// emission - packet or placeholder - occupies exactly one sequence slot, and
// that every real packet carries the sequence number the consumer position
// said it would.
func drainAndCheck(t *testing.T, q *Queue) {
	t.Helper()
	for {
		before := q.nextRtpSequenceNumber
		out, n, ok := q.GetQueuedPacket(0)
		if !ok {
			return
		}
		require.Equal(t, addSeq16(before, 1), q.nextRtpSequenceNumber)
		if n > 0 {
			hdr, err := parseRTPHeader(out[:n])
			require.NoError(t, err)
			require.Equal(t, before, hdr.SequenceNumber)
		}
	}
}

func TestInvariantsHoldUnderRandomLossAndReorder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	clock := NewFakeClock()
	q := newTestQueue(clock)

	q.AddPacket(buildAudioPacket(17, 1000, make([]byte, testBlockSize)))
	checkInvariants(t, q)

	feed := func(pkts [][]byte) {
		for _, raw := range pkts {
			var fedSeq uint16
			isData := raw[1] == audioPayloadType
			if isData {
				hdr, err := parseRTPHeader(raw)
				require.NoError(t, err)
				fedSeq = hdr.SequenceNumber
			}

			before := q.nextRtpSequenceNumber
			status := q.AddPacket(raw)
			checkInvariants(t, q)

			switch status {
			case StatusHandleNow:
				// the fast path emitted the fed packet itself
				require.True(t, isData)
				require.Equal(t, before, fedSeq)
				require.Equal(t, addSeq16(before, 1), q.nextRtpSequenceNumber)
			case StatusPacketReady:
				drainAndCheck(t, q)
				checkInvariants(t, q)
			}
		}
	}

	const numBlocks = 120
	var window [][]byte

	for blk := 0; blk < numBlocks; blk++ {
		base := uint16(20 + blk*dataShards)
		data, parity := blockPayloads(base)

		var pkts [][]byte
		for i := 0; i < dataShards; i++ {
			if rng.Float64() < 0.2 {
				continue // lost
			}
			seq := base + uint16(i)
			pkts = append(pkts, buildAudioPacket(seq, uint32(seq)*testFrameMs, data[i]))
		}
		for j := 0; j < fecShards; j++ {
			if rng.Float64() < 0.2 {
				continue
			}
			pkts = append(pkts, buildFecPacket(base, uint32(base)*testFrameMs, uint8(j), parity[j]))
		}
		if len(pkts) > 0 && rng.Float64() < 0.15 {
			pkts = append(pkts, append([]byte(nil), pkts[rng.Intn(len(pkts))]...)) // duplicate
		}

		// hold packets back and interleave with the next block's to simulate
		// in-flight reordering
		window = append(window, pkts...)
		if blk%2 == 1 || blk == numBlocks-1 {
			rng.Shuffle(len(window), func(i, j int) {
				window[i], window[j] = window[j], window[i]
			})
			feed(window)
			window = nil

			clock.Advance(uint64(rng.Intn(int(oosWaitTimeMs))))
			drainAndCheck(t, q)
			checkInvariants(t, q)
		}
	}

	// flush whatever is still queued
	for q.blocks.head != nil {
		clock.Advance(dataShards*testFrameMs + oosWaitTimeMs + 1)
		q.PollTimeouts()
		checkInvariants(t, q)
		drainAndCheck(t, q)
		checkInvariants(t, q)
	}
}
