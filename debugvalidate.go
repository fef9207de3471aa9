/*
@Author: Lzww
@LastEditTime: 2025-10-02 22:18:00
@Description: Off-by-default recovery self-check for testing
@Language: Go 1.23.4
*/

package rtpafec

import "math/rand"

// runDebugValidation re-runs Reed-Solomon reconstruction on the most
// recently completed block (lastCompletedBlock), with one received data shard
// artificially hidden, and checks that the recovered bytes are bit-identical
// to what actually arrived. It never changes the block's externally visible
// state; any mismatch is a logged contract violation of the RS backend, not
// a panic - this is a diagnostic aid, not a correctness gate.
//
// Disabled by default (Config.DebugValidateRecovery); intended for test
// harnesses and CI, not production traffic, since it doubles the RS work
// per completed block.
func (q *Queue) runDebugValidation() {
	b := q.lastCompletedBlock
	if b == nil || b.dataShardsReceived != dataShards {
		return
	}
	// With no parity on hand, hiding a data shard leaves fewer than
	// dataShards total and reconstruction cannot succeed; nothing to check.
	if b.fecShardsReceived == 0 {
		return
	}

	hidden := rand.Intn(dataShards) //nolint:gosec // diagnostic only, not security sensitive
	original := append([]byte(nil), b.dataPayload(hidden)...)

	shards := make([][]byte, totalShards)
	for i := 0; i < dataShards; i++ {
		if i != hidden {
			shards[i] = b.dataPayload(i)
		}
	}
	for j := 0; j < fecShards; j++ {
		if !b.marks[dataShards+j] {
			shards[dataShards+j] = b.fecPackets[j]
		}
	}

	if err := q.rs.reconstructData(shards); err != nil {
		q.logger.debugValidationFailed(b, hidden, err)
		return
	}

	for i, got := range original {
		if shards[hidden][i] != got {
			q.logger.debugValidationMismatch(b, hidden)
			return
		}
	}
}
