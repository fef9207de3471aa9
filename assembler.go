/*
@Author: Lzww
@LastEditTime: 2025-10-02 22:35:00
@Description: Block identity derivation, lookup/creation, and shard admission
@Language: Go 1.23.4
*/

package rtpafec

// shardKind distinguishes an inbound packet's role.
type shardKind int

const (
	shardKindData shardKind = iota
	shardKindFEC
)

// shardIdentity is everything AddPacket needs to find or create the target
// block and admit the shard, derived once per packet in deriveIdentity.
type shardIdentity struct {
	kind          shardKind
	seq           uint16 // representative sequence number for OOS tracking
	baseSeq       uint16
	baseTs        uint32
	ssrc          uint32
	payloadType   uint8
	fecShardIndex int
	blockSize     int
}

// deriveIdentity computes the target block's identity from an inbound
// audio-data or FEC packet, rejecting anything else.
func (q *Queue) deriveIdentity(raw []byte) (shardIdentity, error) {
	hdr, err := parseRTPHeader(raw)
	if err != nil {
		return shardIdentity{}, err
	}

	switch hdr.PayloadType {
	case audioPayloadType:
		offset := hdr.SequenceNumber % dataShardsU16
		baseSeq := hdr.SequenceNumber - offset
		baseTs := hdr.Timestamp - uint32(offset)*q.audioPacketDurationMs
		return shardIdentity{
			kind:        shardKindData,
			seq:         hdr.SequenceNumber,
			baseSeq:     baseSeq,
			baseTs:      baseTs,
			ssrc:        hdr.SSRC,
			payloadType: hdr.PayloadType,
			blockSize:   len(raw) - rtpHeaderSize,
		}, nil

	case fecPayloadType:
		if len(raw) < rtpHeaderSize+fecHeaderSize {
			return shardIdentity{}, errPacketTooShort
		}
		fh := parseFecWireHeader(raw[rtpHeaderSize:])
		if int(fh.fecShardIndex) >= fecShards {
			return shardIdentity{}, errFecShardOutOfRange
		}
		return shardIdentity{
			kind:          shardKindFEC,
			seq:           fh.baseSeq,
			baseSeq:       fh.baseSeq,
			baseTs:        fh.baseTs,
			ssrc:          fh.ssrc,
			payloadType:   fh.payloadType,
			fecShardIndex: int(fh.fecShardIndex),
			blockSize:     len(raw) - rtpHeaderSize - fecHeaderSize,
		}, nil

	default:
		return shardIdentity{}, errUnsupportedPayload
	}
}

// findOrCreateBlock walks the ordered list for the block identified by id,
// creating and inserting one if none exists. A nil block means "admit
// nothing": nil, nil for an already-reassembled block, and a nil block with
// errBlockIdentityMismatch or (having just latched incompatibleServer)
// errBlockSizeMismatch for a packet that disagrees with the existing block.
func (q *Queue) findOrCreateBlock(id shardIdentity) (*FecBlock, error) {
	walker := q.blocks.head
	for walker != nil {
		if walker.baseSeq == id.baseSeq {
			if walker.ssrc != id.ssrc || walker.payloadType != id.payloadType || walker.baseTs != id.baseTs {
				q.logger.identityMismatch(walker, id)
				return nil, errBlockIdentityMismatch
			}
			if walker.blockSize != id.blockSize {
				q.latchIncompatibleServer(walker, id)
				return nil, errBlockSizeMismatch
			}
			if walker.fullyReassembled {
				return nil, nil
			}
			return walker, nil
		}
		if isBefore16(id.baseSeq, walker.baseSeq) {
			return q.allocateBlock(id, walker), nil
		}
		walker = walker.next
	}
	return q.allocateBlock(id, nil), nil
}

func (q *Queue) allocateBlock(id shardIdentity, before *FecBlock) *FecBlock {
	b, ok := q.cache.pop(id.blockSize)
	if !ok {
		b = newFecBlock(id.blockSize)
		q.metrics.blocksAllocated.Inc()
	} else {
		q.metrics.blocksReused.Inc()
	}
	b.baseSeq = id.baseSeq
	b.baseTs = id.baseTs
	b.ssrc = id.ssrc
	b.payloadType = id.payloadType
	b.queueTimeMs = q.clock.NowMs()

	q.blocks.insertBefore(b, before)
	return b
}

func (q *Queue) latchIncompatibleServer(walker *FecBlock, id shardIdentity) {
	if q.incompatibleServer {
		return
	}
	q.incompatibleServer = true
	q.logger.incompatibleServer(walker, id)
	q.metrics.incompatibleServer.Set(1)
	q.recordEvent(EventIncompatibleServer, walker.baseSeq, id.seq)
}

// admitDataShard stores a data shard at index i = seq-baseSeq, returning
// true if it was newly admitted (false on duplicate).
func (b *FecBlock) admitDataShard(raw []byte, i int) bool {
	if !b.marks[i] {
		return false
	}
	copy(b.dataPackets[i], raw[:rtpHeaderSize+b.blockSize])
	b.marks[i] = false
	b.dataShardsReceived++
	return true
}

// admitFecShard stores a parity shard's payload (skipping RTP+FEC headers)
// at index j, returning true if newly admitted.
func (b *FecBlock) admitFecShard(raw []byte, j int) bool {
	if !b.marks[dataShards+j] {
		return false
	}
	copy(b.fecPackets[j], raw[rtpHeaderSize+fecHeaderSize:rtpHeaderSize+fecHeaderSize+b.blockSize])
	b.marks[dataShards+j] = false
	b.fecShardsReceived++
	return true
}

// freeBlock removes b from the live list (if still linked) and offers it to
// the free cache.
func (q *Queue) freeBlock(b *FecBlock) {
	if b.prev != nil || b.next != nil || q.blocks.head == b {
		q.blocks.remove(b)
	}
	q.cache.push(b)
	q.refreshOldest()
}
