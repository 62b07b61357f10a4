package protocol

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader yields its input in fixed-size chunks to exercise frame
// reassembly across read boundaries.
type chunkReader struct {
	data  []byte
	size  int
	pos   int
	final error // returned after the data is exhausted, defaults to io.EOF
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		if c.final != nil {
			return 0, c.final
		}
		return 0, io.EOF
	}
	end := c.pos + c.size
	if end > len(c.data) {
		end = len(c.data)
	}
	n := copy(p, c.data[c.pos:end])
	c.pos += n
	return n, nil
}

func collectFrames(t *testing.T, r io.Reader) ([]string, error) {
	t.Helper()
	frames := newFrameReader(r)
	var out []string
	for {
		payload, err := frames.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, string(payload))
	}
}

func TestFrameReader_SingleLine(t *testing.T) {
	got, err := collectFrames(t, strings.NewReader("data: {\"a\":1}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != `{"a":1}` {
		t.Fatalf("expected one frame, got %v", got)
	}
}

func TestFrameReader_ChunkBoundaryIndependence(t *testing.T) {
	body := "data: {\"type\":\"status\",\"data\":{}}\n" +
		"data: {\"type\":\"final_answer\",\"data\":{\"answer\":\"hi\"}}\n"

	// Every chunk size must yield identical frames: no losses, no
	// double-parses, regardless of where reads split the lines.
	want, err := collectFrames(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for size := 1; size <= len(body); size++ {
		got, err := collectFrames(t, &chunkReader{data: []byte(body), size: size})
		if err != nil {
			t.Fatalf("chunk size %d: unexpected error: %v", size, err)
		}
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: expected %d frames, got %d", size, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk size %d: frame %d = %q, want %q", size, i, got[i], want[i])
			}
		}
	}
}

func TestFrameReader_SkipsKeepAlivesAndBlanks(t *testing.T) {
	body := ": keep-alive\n\ndata: {\"a\":1}\n\nevent: ping\ndata: {\"b\":2}\n"
	got, err := collectFrames(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != `{"a":1}` || got[1] != `{"b":2}` {
		t.Fatalf("expected two payload frames, got %v", got)
	}
}

func TestFrameReader_DoneSentinelEndsStream(t *testing.T) {
	body := "data: {\"a\":1}\ndata: [DONE]\ndata: {\"never\":true}\n"
	got, err := collectFrames(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != `{"a":1}` {
		t.Fatalf("expected stream to end at sentinel, got %v", got)
	}
}

func TestFrameReader_UnterminatedTrailingLine(t *testing.T) {
	got, err := collectFrames(t, strings.NewReader("data: {\"a\":1}\ndata: {\"b\":2}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1] != `{"b":2}` {
		t.Fatalf("expected trailing unterminated line to count, got %v", got)
	}
}

func TestFrameReader_CRLFLines(t *testing.T) {
	got, err := collectFrames(t, strings.NewReader("data: {\"a\":1}\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != `{"a":1}` {
		t.Fatalf("expected CR to be stripped, got %v", got)
	}
}

func TestFrameReader_ReadErrorAfterFrames(t *testing.T) {
	boom := errors.New("connection reset")
	r := &chunkReader{data: []byte("data: {\"a\":1}\n"), size: 64, final: boom}
	frames := newFrameReader(r)

	payload, err := frames.Next()
	if err != nil || string(payload) != `{"a":1}` {
		t.Fatalf("expected first frame before the error, got %q, %v", payload, err)
	}
	if _, err := frames.Next(); !errors.Is(err, boom) {
		t.Fatalf("expected read error to surface, got %v", err)
	}
}
