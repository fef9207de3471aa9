/*
@Author: Lzww
@LastEditTime: 2025-10-02 21:14:00
@Description: Compile-time shard layout and queue tuning constants
@Language: Go 1.23.4
*/

package rtpafec

// Shard counts are fixed at compile time; the wire protocol and the sender's
// Reed-Solomon encoder assume exactly these values and nothing in this
// package makes them runtime-configurable.
const (
	dataShards  = 4 // RTPA_DATA_SHARDS
	fecShards   = 2 // RTPA_FEC_SHARDS
	totalShards = dataShards + fecShards

	dataShardsU16 = uint16(dataShards)
)

const (
	rtpHeaderSize = 12 // version/flags, payload type, seq, ts, ssrc
	fecHeaderSize = 12 // inner payload type, shard index, base seq, base ts, ssrc

	audioPayloadType uint8 = 97
	fecPayloadType   uint8 = 127

	rtpVersionFlags byte = 0x80 // RTPv2, no padding, no extension, no CSRC
)

const (
	// cachedFecBlockLimit caps the LIFO free-block cache (RTPA_CACHED_FEC_BLOCK_LIMIT).
	cachedFecBlockLimit = 8

	// oosWaitTimeMs extends a block's grace period past D*AudioPacketDuration
	// once an out-of-sequence arrival has been observed (RTPQ_OOS_WAIT_TIME_MS).
	// At typical 5ms framing this is twenty packets' worth of slack, five
	// times the 20ms D*AudioPacketDuration base window.
	oosWaitTimeMs uint64 = 100
)

// Status is the AddPacket return-code contract.
type Status int

const (
	// StatusNone means the packet was accepted (or dropped) but there is
	// nothing further for the caller to do right now.
	StatusNone Status = iota
	// StatusHandleNow means the packet just passed to AddPacket is itself
	// the next packet the decoder expects; the caller may bypass
	// GetQueuedPacket for this one packet.
	StatusHandleNow
	// StatusPacketReady means the caller must drain GetQueuedPacket until
	// it reports nothing queued.
	StatusPacketReady
)

func (s Status) String() string {
	switch s {
	case StatusHandleNow:
		return "handle-now"
	case StatusPacketReady:
		return "packet-ready"
	default:
		return "none"
	}
}
