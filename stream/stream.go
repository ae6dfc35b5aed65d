// Package stream provides small big-endian read/write helpers shared by
// every wire codec package. It is adapted from the teacher's stream
// package: the original Read busy-looped on short reads and swallowed
// I/O errors; ReadFull here uses io.ReadFull and returns the error
// instead, since the protocol handler (spec §4.4) needs real I/O errors
// to close the connection and drive the FSM to IDLE with backoff.
package stream

import (
	"bytes"
	"encoding/binary"
	"io"
)

// ReadFull reads exactly count bytes from r, blocking until they arrive,
// EOF, or an error. A short read before EOF is reported via the returned
// error (io.ErrUnexpectedEOF), never retried silently.
func ReadFull(r io.Reader, count int) ([]byte, error) {
	if count == 0 {
		return nil, nil
	}
	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadBytes reads n bytes from the byte buffer and returns them.
func ReadBytes(n int, buf *bytes.Buffer) []byte {
	bs := make([]byte, n)
	buf.Read(bs)
	return bs
}

// ReadByte reads a single byte off the given byte buffer.
func ReadByte(buf *bytes.Buffer) byte {
	b, _ := buf.ReadByte()
	return b
}

// ReadUint16 reads 2 bytes off the buffer as a big-endian uint16.
func ReadUint16(buf *bytes.Buffer) uint16 {
	return binary.BigEndian.Uint16(ReadBytes(2, buf))
}

// ReadUint32 reads 4 bytes off the buffer as a big-endian uint32.
func ReadUint32(buf *bytes.Buffer) uint32 {
	return binary.BigEndian.Uint32(ReadBytes(4, buf))
}

// WriteUint16 appends v to buf in big-endian order.
func WriteUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

// WriteUint32 appends v to buf in big-endian order.
func WriteUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
