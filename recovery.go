/*
@Author: Lzww
@LastEditTime: 2025-10-02 22:05:00
@Description: Reed-Solomon handle construction and FEC recovery
@Language: Go 1.23.4
*/

package rtpafec

import (
	"github.com/klauspost/reedsolomon"

	"github.com/pkg/errors"
)

// nvidiaParityMatrix is the fixed parity-row override the sender's encoder
// uses in place of whatever default matrix a Reed-Solomon implementation
// would compute for (dataShards, fecShards): fecShards rows of dataShards
// coefficients each. Recovery against any other matrix silently produces
// wrong bytes in the recovered shards.
var nvidiaParityMatrix = []byte{0x77, 0x40, 0x38, 0x0E, 0xC7, 0xA7, 0x0D, 0x6C}

type rsHandle struct {
	codec reedsolomon.Encoder
}

func newRSHandle() (*rsHandle, error) {
	parity := make([][]byte, fecShards)
	for j := range parity {
		parity[j] = nvidiaParityMatrix[j*dataShards : (j+1)*dataShards]
	}
	codec, err := reedsolomon.New(dataShards, fecShards, reedsolomon.WithCustomMatrix(parity))
	if err != nil {
		return nil, errors.Wrap(err, "construct reed-solomon codec")
	}
	return &rsHandle{codec: codec}, nil
}

// reconstructData fills in any nil entries of shards (length totalShards)
// using the present data and parity shards. Only the data-shard region is
// guaranteed valid on success; callers that don't need recovered parity
// shards should leave trailing nils there to save work.
func (h *rsHandle) reconstructData(shards [][]byte) error {
	return h.codec.ReconstructData(shards)
}

// completeIfAllDataArrived marks b fullyReassembled and runs block-completion
// bookkeeping (onBlockComplete) when every data shard has arrived natively -
// no Reed-Solomon call needed. This is the one completion path the fast path
// (admitDataShardPacket) is allowed to take directly - the fast path never
// invokes Reed-Solomon; tryRecover below shares the same check for the slow
// path.
func (q *Queue) completeIfAllDataArrived(b *FecBlock) bool {
	if b.fullyReassembled || b.dataShardsReceived != dataShards {
		return false
	}
	b.fullyReassembled = true
	q.onBlockComplete(b)
	return true
}

// tryRecover attempts FEC recovery on b:
//   - if every data shard already arrived, no RS call is needed.
//   - otherwise, if enough shards (data+parity) are present, invoke RS and
//     synthesise RTP headers for whatever data shards it fills in.
//
// Returns true if the block became fullyReassembled as a result of this call.
func (q *Queue) tryRecover(b *FecBlock) bool {
	if b.fullyReassembled {
		return false
	}
	if q.completeIfAllDataArrived(b) {
		return true
	}
	if b.readyShardCount() < dataShards {
		return false
	}

	shards := make([][]byte, totalShards)
	for i := 0; i < dataShards; i++ {
		if !b.marks[i] {
			shards[i] = b.dataPayload(i)
		}
	}
	for j := 0; j < fecShards; j++ {
		if !b.marks[dataShards+j] {
			shards[dataShards+j] = b.fecPackets[j]
		}
	}

	if err := q.rs.reconstructData(shards); err != nil {
		q.logger.recoveryFailed(b, errors.Wrap(errReconstructFailed, err.Error()))
		q.metrics.recoveryFailures.Inc()
		return false
	}

	for i := 0; i < dataShards; i++ {
		if !b.marks[i] {
			continue
		}
		copy(b.dataPayload(i), shards[i])
		writeRTPHeader(b.dataPackets[i], b.payloadType, addSeq16(b.baseSeq, i), b.baseTs+uint32(i)*q.audioPacketDurationMs, b.ssrc)
		b.marks[i] = false
		b.dataShardsReceived++
		q.metrics.shardsRecovered.Inc()
	}

	b.fullyReassembled = true
	q.metrics.blocksRecovered.Inc()
	q.onBlockComplete(b)
	return true
}

func (q *Queue) onBlockComplete(b *FecBlock) {
	if q.synchronizing {
		q.synchronizing = false
	}
	q.lastCompletedBlock = b
	q.recordEvent(EventBlockRecovered, b.baseSeq, 0)
	if q.debugValidateRecovery {
		q.runDebugValidation()
	}
}
