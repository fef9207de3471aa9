/*
@Author: Lzww
@LastEditTime: 2025-10-02 21:32:00
@Description: RTP and FEC header wire codec
@Language: Go 1.23.4
*/

package rtpafec

import (
	"encoding/binary"

	"github.com/pion/rtp"
)

// fecWireHeader is the 12-byte header immediately following the RTP header
// on a payload-type-127 (parity) packet. All multi-byte fields are big-endian.
type fecWireHeader struct {
	payloadType   uint8
	fecShardIndex uint8
	baseSeq       uint16
	baseTs        uint32
	ssrc          uint32
}

func parseRTPHeader(raw []byte) (rtp.Header, error) {
	var hdr rtp.Header
	if len(raw) < rtpHeaderSize {
		return hdr, errPacketTooShort
	}
	if _, err := hdr.Unmarshal(raw); err != nil {
		return hdr, err
	}
	return hdr, nil
}

func parseFecWireHeader(raw []byte) fecWireHeader {
	return fecWireHeader{
		payloadType:   raw[0],
		fecShardIndex: raw[1],
		baseSeq:       binary.BigEndian.Uint16(raw[2:4]),
		baseTs:        binary.BigEndian.Uint32(raw[4:8]),
		ssrc:          binary.BigEndian.Uint32(raw[8:12]),
	}
}

// writeRTPHeader synthesises a bare 12-byte RTPv2 header (no padding,
// extension or CSRC) into dst, which must be at least rtpHeaderSize long.
func writeRTPHeader(dst []byte, payloadType uint8, seq uint16, ts uint32, ssrc uint32) {
	hdr := rtp.Header{
		Version:        2,
		PayloadType:    payloadType,
		SequenceNumber: seq,
		Timestamp:      ts,
		SSRC:           ssrc,
	}
	n, err := hdr.MarshalTo(dst)
	if err != nil || n != rtpHeaderSize {
		// The header above never carries CSRC/extensions, so its marshalled
		// size is always exactly rtpHeaderSize; fall back to a manual encode
		// only if a future pion/rtp release changes that invariant.
		dst[0] = rtpVersionFlags
		dst[1] = payloadType
		binary.BigEndian.PutUint16(dst[2:4], seq)
		binary.BigEndian.PutUint32(dst[4:8], ts)
		binary.BigEndian.PutUint32(dst[8:12], ssrc)
	}
}
