/*
@Author: Lzww
@LastEditTime: 2025-10-02 22:48:00
@Description: Structured logging for drops and contract violations
@Language: Go 1.23.4
*/

package rtpafec

import "go.uber.org/zap"

// queueLogger wraps a *zap.Logger so every call site in the package logs
// with consistent fields instead of building them ad hoc. Every path that
// reaches one of these methods degrades to a drop or a continued block
// timeout - none of them escalates to a panic or process abort.
type queueLogger struct {
	z *zap.Logger
}

func newQueueLogger(z *zap.Logger) queueLogger {
	if z == nil {
		z = zap.NewNop()
	}
	return queueLogger{z: z}
}

func (l queueLogger) malformed(err error, raw []byte) {
	l.z.Debug("rtpafec: dropping malformed packet", zap.Error(err), zap.Int("len", len(raw)))
}

func (l queueLogger) identityMismatch(block *FecBlock, id shardIdentity) {
	l.z.Warn("rtpafec: packet identity disagrees with existing block, dropping",
		zap.Uint16("baseSeq", id.baseSeq),
		zap.Uint32("blockSSRC", block.ssrc),
		zap.Uint32("packetSSRC", id.ssrc),
	)
}

func (l queueLogger) incompatibleServer(block *FecBlock, id shardIdentity) {
	l.z.Error("rtpafec: block size mismatch, latching incompatibleServer and disabling FEC",
		zap.Int("blockSize", block.blockSize),
		zap.Int("packetBlockSize", id.blockSize),
	)
}

func (l queueLogger) recoveryFailed(b *FecBlock, err error) {
	l.z.Error("rtpafec: reed-solomon reconstruction failed despite sufficient shards",
		zap.Uint16("baseSeq", b.baseSeq),
		zap.Error(err),
	)
}

func (l queueLogger) blockTimedOut(b *FecBlock) {
	l.z.Info("rtpafec: block timed out, emitting discontinuity placeholders",
		zap.Uint16("baseSeq", b.baseSeq),
		zap.Int("dataShardsReceived", b.dataShardsReceived),
	)
}

func (l queueLogger) debugValidationFailed(b *FecBlock, hidden int, err error) {
	l.z.Error("rtpafec: debug recovery self-check failed to reconstruct",
		zap.Uint16("baseSeq", b.baseSeq), zap.Int("hiddenShard", hidden), zap.Error(err))
}

func (l queueLogger) debugValidationMismatch(b *FecBlock, hidden int) {
	l.z.Error("rtpafec: debug recovery self-check produced non-identical bytes",
		zap.Uint16("baseSeq", b.baseSeq), zap.Int("hiddenShard", hidden))
}
