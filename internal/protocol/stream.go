package protocol

import (
	"bytes"
	"io"
)

const doneSentinel = "[DONE]"

const readChunkSize = 4096

// frameReader reassembles SSE "data:" payloads from an arbitrarily chunked
// reader. An unterminated trailing line is retained across reads, so frames
// are independent of how the transport happened to split the body. Comment
// and keep-alive lines are skipped. Both the buffered and the incremental
// call paths consume this one reader.
type frameReader struct {
	r       io.Reader
	chunk   []byte
	pending []byte   // bytes after the last newline seen so far
	lines   [][]byte // complete lines not yet handed out
	readErr error    // deferred until queued lines are drained
	done    bool
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: r, chunk: make([]byte, readChunkSize)}
}

// Next returns the payload of the next data line. io.EOF means the stream
// ended, either naturally or via the [DONE] sentinel; any other error is the
// underlying read failure (including context cancellation surfaced through
// the response body).
func (f *frameReader) Next() ([]byte, error) {
	for {
		for len(f.lines) > 0 {
			line := f.lines[0]
			f.lines = f.lines[1:]
			payload, ok := dataPayload(line)
			if !ok {
				continue
			}
			if string(payload) == doneSentinel {
				f.done = true
				return nil, io.EOF
			}
			return payload, nil
		}

		if f.done {
			if f.readErr != nil {
				return nil, f.readErr
			}
			return nil, io.EOF
		}

		n, err := f.r.Read(f.chunk)
		if n > 0 {
			f.pending = append(f.pending, f.chunk[:n]...)
			for {
				idx := bytes.IndexByte(f.pending, '\n')
				if idx < 0 {
					break
				}
				line := make([]byte, idx)
				copy(line, f.pending[:idx])
				f.pending = f.pending[idx+1:]
				f.lines = append(f.lines, line)
			}
		}
		if err != nil {
			f.done = true
			if err != io.EOF {
				f.readErr = err
			}
			// A trailing line without a final newline still counts.
			if len(f.pending) > 0 {
				f.lines = append(f.lines, f.pending)
				f.pending = nil
			}
		}
	}
}

// dataPayload extracts the payload of an SSE data line. Returns false for
// blank lines, comments, and any other field.
func dataPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}
	rest, found := bytes.CutPrefix(line, []byte("data:"))
	if !found {
		return nil, false
	}
	return bytes.TrimPrefix(rest, []byte(" ")), true
}
