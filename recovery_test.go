/*
@Author: Lzww
@LastEditTime: 2025-10-03 12:10:00
@Description: Reed-Solomon recovery paths and shard-loss combinations
@Language: Go 1.23.4
*/

package rtpafec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubleDataLossRecoveredByBothParities(t *testing.T) {
	q := newTestQueue(nil)
	q.AddPacket(buildAudioPacket(17, 1000, make([]byte, testBlockSize)))

	data, parity := blockPayloads(20)
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(20, 20*testFrameMs, data[0])))
	// seq 21 and 22 both dropped
	require.Equal(t, StatusNone, q.AddPacket(buildAudioPacket(23, 23*testFrameMs, data[3])))

	require.Equal(t, StatusNone, q.AddPacket(buildFecPacket(20, 20*testFrameMs, 0, parity[0])))
	status := q.AddPacket(buildFecPacket(20, 20*testFrameMs, 1, parity[1]))
	require.Equal(t, StatusPacketReady, status)

	for _, want := range []struct {
		seq     uint16
		payload []byte
	}{
		{21, data[1]},
		{22, data[2]},
		{23, data[3]},
	} {
		out, n, ok := q.GetQueuedPacket(0)
		require.True(t, ok)
		hdr, err := parseRTPHeader(out[:n])
		require.NoError(t, err)
		assert.Equal(t, want.seq, hdr.SequenceNumber)
		assert.Equal(t, uint32(want.seq)*testFrameMs, hdr.Timestamp)
		assert.Equal(t, want.payload, out[rtpHeaderSize:n])
	}

	_, _, ok := q.GetQueuedPacket(0)
	assert.False(t, ok)
	assert.True(t, q.blocks.empty())
}

func TestMixedDataAndParityLossRecovered(t *testing.T) {
	q := newTestQueue(nil)
	q.AddPacket(buildAudioPacket(17, 1000, make([]byte, testBlockSize)))

	data, parity := blockPayloads(20)
	// lose data shard 22 and parity shard 1: 3 data + 1 parity still recovers
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(20, 20*testFrameMs, data[0])))
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(21, 21*testFrameMs, data[1])))
	require.Equal(t, StatusNone, q.AddPacket(buildAudioPacket(23, 23*testFrameMs, data[3])))

	status := q.AddPacket(buildFecPacket(20, 20*testFrameMs, 0, parity[0]))
	require.Equal(t, StatusPacketReady, status)

	out, n, ok := q.GetQueuedPacket(0)
	require.True(t, ok)
	hdr, err := parseRTPHeader(out[:n])
	require.NoError(t, err)
	assert.Equal(t, uint16(22), hdr.SequenceNumber)
	assert.Equal(t, data[2], out[rtpHeaderSize:n])
}

func TestMoreThanParityLossesStayUnrecovered(t *testing.T) {
	q := newTestQueue(nil)
	q.AddPacket(buildAudioPacket(17, 1000, make([]byte, testBlockSize)))

	data, parity := blockPayloads(20)
	// only one data shard arrives; 1 + 2 parity < dataShards
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(20, 20*testFrameMs, data[0])))
	require.Equal(t, StatusNone, q.AddPacket(buildFecPacket(20, 20*testFrameMs, 0, parity[0])))
	require.Equal(t, StatusNone, q.AddPacket(buildFecPacket(20, 20*testFrameMs, 1, parity[1])))

	head := q.blocks.head
	require.NotNil(t, head)
	assert.False(t, head.fullyReassembled)
	assert.Equal(t, 1, head.dataShardsReceived)
	assert.Equal(t, 2, head.fecShardsReceived)
}

func TestDuplicateFecShardRejected(t *testing.T) {
	q := newTestQueue(nil)
	q.AddPacket(buildAudioPacket(17, 1000, make([]byte, testBlockSize)))

	_, parity := blockPayloads(20)
	require.Equal(t, StatusNone, q.AddPacket(buildFecPacket(20, 20*testFrameMs, 0, parity[0])))
	require.Equal(t, StatusNone, q.AddPacket(buildFecPacket(20, 20*testFrameMs, 0, parity[0])))

	head := q.blocks.head
	require.NotNil(t, head)
	assert.Equal(t, 1, head.fecShardsReceived)
}

func TestLateShardForReassembledBlockDropped(t *testing.T) {
	q := newTestQueue(nil)
	q.AddPacket(buildAudioPacket(17, 1000, make([]byte, testBlockSize)))

	data, parity := blockPayloads(20)
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(20, 20*testFrameMs, data[0])))
	// seq 21 lost; 22 and 23 arrive out of order so the block stays queued
	require.Equal(t, StatusNone, q.AddPacket(buildAudioPacket(22, 22*testFrameMs, data[2])))
	require.Equal(t, StatusNone, q.AddPacket(buildAudioPacket(23, 23*testFrameMs, data[3])))
	require.Equal(t, StatusPacketReady, q.AddPacket(buildFecPacket(20, 20*testFrameMs, 0, parity[0])))

	head := q.blocks.head
	require.NotNil(t, head)
	require.True(t, head.fullyReassembled)

	// the real seq 21 finally shows up; the block is already complete
	received := head.dataShardsReceived
	assert.Equal(t, StatusNone, q.AddPacket(buildAudioPacket(21, 21*testFrameMs, data[1])))
	assert.Equal(t, received, head.dataShardsReceived)
}

func TestDebugValidationLeavesBlockIntact(t *testing.T) {
	q := Initialize(Config{
		AudioPacketDurationMs: testFrameMs,
		Clock:                 NewFakeClock(),
		DebugValidateRecovery: true,
	})
	q.AddPacket(buildAudioPacket(17, 1000, make([]byte, testBlockSize)))

	data, parity := blockPayloads(20)
	// parity lands first so the self-check has a shard to reconstruct
	// against when the last native data shard completes the block
	require.Equal(t, StatusNone, q.AddPacket(buildFecPacket(20, 20*testFrameMs, 0, parity[0])))
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(20, 20*testFrameMs, data[0])))
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(21, 21*testFrameMs, data[1])))
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(22, 22*testFrameMs, data[2])))
	require.Equal(t, StatusHandleNow, q.AddPacket(buildAudioPacket(23, 23*testFrameMs, data[3])))
	assert.Equal(t, uint16(24), q.nextRtpSequenceNumber)
	assert.True(t, q.blocks.empty())
}
