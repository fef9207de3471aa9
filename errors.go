/*
@Author: Lzww
@LastEditTime: 2025-10-02 21:24:00
@Description: Error classification for malformed input and contract violations
@Language: Go 1.23.4
*/

package rtpafec

import "github.com/pkg/errors"

// These are classification sentinels, not fatal errors: every call site that
// returns one of these still returns StatusNone to the caller and continues
// operating. They exist so logging and metrics can distinguish the reason a
// packet was dropped.
var (
	errPacketTooShort        = errors.New("rtpafec: packet shorter than RTP header")
	errUnsupportedPayload    = errors.New("rtpafec: unsupported payload type")
	errFecShardOutOfRange    = errors.New("rtpafec: fec shard index out of range")
	errBlockIdentityMismatch = errors.New("rtpafec: packet disagrees with existing block identity")
	errBlockSizeMismatch     = errors.New("rtpafec: block size mismatch, server incompatible")
	errReconstructFailed     = errors.New("rtpafec: reed-solomon reconstruction failed despite sufficient shards")
)
