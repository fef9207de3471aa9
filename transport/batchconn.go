/*
@Author: Lzww
@LastEditTime: 2025-10-03 10:05:00
@Description: Batch UDP connection handling for the receive path
@Language: Go 1.23.4
*/

package transport

import "golang.org/x/net/ipv4"

// batchSize bounds how many datagrams one ReadBatch call retrieves; it is
// also the size of the ipv4.Message slice Receiver recycles between calls.
const batchSize = 16

// batchConn is satisfied by *ipv4.PacketConn. It is narrowed to the one
// method the receive path actually calls so Receiver can be driven by a fake
// in tests without dragging in real sockets.
type batchConn interface {
	ReadBatch(ms []ipv4.Message, flags int) (int, error)
}
