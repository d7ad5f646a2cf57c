package os2l

import "bytes"

// Framer extracts complete message texts from an arbitrarily-chunked byte
// stream. A message is the span from the first `{` in the buffer to the
// next `}` at or after it, both inclusive. The scan is deliberately not
// nesting-aware: a literal `}` inside a message body would end it early.
// That mirrors what the senders of this protocol actually produce and
// tolerate, so it stays that way.
//
// Bytes before the first `{` can never become a message and are dropped,
// which lets the stream resync after garbage. A Framer is not safe for
// concurrent use.
type Framer struct {
	buf []byte
}

// Push appends a chunk of input and returns every complete message text now
// available, in arrival order. It never blocks and may return nothing.
func (f *Framer) Push(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)

	var msgs []string
	for {
		start := bytes.IndexByte(f.buf, '{')
		if start < 0 {
			// No message can ever complete from this data.
			f.buf = f.buf[:0]
			return msgs
		}

		end := bytes.IndexByte(f.buf[start:], '}')
		if end < 0 {
			// A message is still arriving; keep it, drop the junk before it.
			f.buf = append(f.buf[:0], f.buf[start:]...)
			return msgs
		}
		end += start + 1

		msgs = append(msgs, string(f.buf[start:end]))
		f.buf = append(f.buf[:0], f.buf[end:]...)
	}
}

// Pending returns the number of buffered bytes awaiting completion.
func (f *Framer) Pending() int {
	return len(f.buf)
}
