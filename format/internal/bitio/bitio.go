// Package bitio provides the little-endian bit-level reader and writer the
// binary codecs share.
package bitio

import "io"

type Writer struct {
	buf []byte
	acc uint64
	n   uint8
}

func NewWriter() *Writer { return &Writer{buf: make([]byte, 0, 256)} }

func (w *Writer) WriteBits(v uint64, bits uint8) {
	w.acc |= (v & (1<<bits - 1)) << w.n
	w.n += bits
	for w.n >= 8 {
		w.buf = append(w.buf, byte(w.acc&0xFF))
		w.acc >>= 8
		w.n -= 8
	}
}

// Bytes flushes any partial byte and returns the stream.
func (w *Writer) Bytes() []byte {
	if w.n > 0 {
		w.buf = append(w.buf, byte(w.acc&0xFF))
		w.acc = 0
		w.n = 0
	}
	return w.buf
}

type Reader struct {
	data []byte
	acc  uint64
	n    uint8
	pos  int
}

func NewReader(b []byte) *Reader { return &Reader{data: b} }

func (r *Reader) ReadBits(bits uint8) (uint64, error) {
	for r.n < bits {
		if r.pos >= len(r.data) {
			return 0, io.ErrUnexpectedEOF
		}
		r.acc |= uint64(r.data[r.pos]) << r.n
		r.n += 8
		r.pos++
	}
	v := r.acc & (1<<bits - 1)
	r.acc >>= bits
	r.n -= bits
	return v, nil
}
