/*
@Author: Lzww
@LastEditTime: 2025-10-02 21:10:00
@Description: rtpafec - receive-side RTP audio reassembly and FEC queue
@Language: Go 1.23.4
*/

// Package rtpafec implements the receive-side sequencing, block-assembly and
// Reed-Solomon FEC recovery state machine for a low-latency audio RTP stream.
//
// The queue ingests RTP audio packets (payload type 97) and RTP-carried FEC
// parity packets (payload type 127), reorders them into fixed-size blocks of
// D data shards plus P parity shards, recovers missing data shards via
// Reed-Solomon reconstruction when possible, and emits a monotonically
// increasing stream of audio packets - or loss placeholders - to a decoder.
//
// Socket I/O, decryption, the audio decoder, the Reed-Solomon codec's finite
// field arithmetic, the clock source, and the control channel are all
// external collaborators; see package transport and cmd/replay for an
// end-to-end wiring of those concerns.
package rtpafec
