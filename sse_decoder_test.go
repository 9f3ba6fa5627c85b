package securenotify

import (
	"testing"
	"time"
)

type decodedFrame struct {
	eventType string
	id        string
	data      string
}

func collectFrames() (*frameDecoder, *[]decodedFrame, *[]time.Duration) {
	frames := &[]decodedFrame{}
	retries := &[]time.Duration{}
	dec := newFrameDecoder(
		func(eventType, id, data string) {
			*frames = append(*frames, decodedFrame{eventType, id, data})
		},
		func(delay time.Duration) {
			*retries = append(*retries, delay)
		},
	)
	return dec, frames, retries
}

func TestFrameDecoderSingleFrame(t *testing.T) {
	dec, frames, _ := collectFrames()

	dec.Feed([]byte("event: ping\nid: 7\ndata: {\"x\":1}\n\n"))

	if len(*frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(*frames))
	}
	f := (*frames)[0]
	if f.eventType != "ping" {
		t.Errorf("Expected type 'ping', got %q", f.eventType)
	}
	if f.id != "7" {
		t.Errorf("Expected id '7', got %q", f.id)
	}
	if f.data != `{"x":1}` {
		t.Errorf("Expected raw data, got %q", f.data)
	}
}

func TestFrameDecoderArbitraryChunking(t *testing.T) {
	raw := "event: ping\nid: 7\ndata: {\"x\":1}\n\n"

	for split := 1; split < len(raw); split++ {
		dec, frames, _ := collectFrames()
		dec.Feed([]byte(raw[:split]))
		dec.Feed([]byte(raw[split:]))

		if len(*frames) != 1 {
			t.Fatalf("split=%d: expected 1 frame, got %d", split, len(*frames))
		}
		f := (*frames)[0]
		if f.eventType != "ping" || f.id != "7" || f.data != `{"x":1}` {
			t.Errorf("split=%d: got %+v", split, f)
		}
	}
}

func TestFrameDecoderByteAtATime(t *testing.T) {
	dec, frames, _ := collectFrames()

	raw := "data: hello\n\ndata: world\n\n"
	for i := 0; i < len(raw); i++ {
		dec.Feed([]byte{raw[i]})
	}

	if len(*frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(*frames))
	}
	if (*frames)[0].data != "hello" || (*frames)[1].data != "world" {
		t.Errorf("Got %+v", *frames)
	}
}

func TestFrameDecoderDefaultEventType(t *testing.T) {
	dec, frames, _ := collectFrames()

	dec.Feed([]byte("data: plain\n\n"))

	if len(*frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(*frames))
	}
	if (*frames)[0].eventType != "message" {
		t.Errorf("Expected default type 'message', got %q", (*frames)[0].eventType)
	}
}

func TestFrameDecoderTypeResetsBetweenFrames(t *testing.T) {
	dec, frames, _ := collectFrames()

	dec.Feed([]byte("event: custom\ndata: one\n\ndata: two\n\n"))

	if len(*frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(*frames))
	}
	if (*frames)[0].eventType != "custom" {
		t.Errorf("Expected 'custom', got %q", (*frames)[0].eventType)
	}
	if (*frames)[1].eventType != "message" {
		t.Errorf("Expected type reset to 'message', got %q", (*frames)[1].eventType)
	}
}

func TestFrameDecoderComments(t *testing.T) {
	dec, frames, _ := collectFrames()

	dec.Feed([]byte(": keep-alive\n:another comment\ndata: real\n\n"))

	if len(*frames) != 1 {
		t.Fatalf("Expected comments ignored, got %d frames", len(*frames))
	}
	if (*frames)[0].data != "real" {
		t.Errorf("Expected 'real', got %q", (*frames)[0].data)
	}
}

func TestFrameDecoderCRLF(t *testing.T) {
	dec, frames, _ := collectFrames()

	dec.Feed([]byte("event: ping\r\ndata: x\r\n\r\n"))

	if len(*frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(*frames))
	}
	if (*frames)[0].eventType != "ping" || (*frames)[0].data != "x" {
		t.Errorf("Got %+v", (*frames)[0])
	}
}

func TestFrameDecoderRetryField(t *testing.T) {
	dec, frames, retries := collectFrames()

	dec.Feed([]byte("retry: 2500\ndata: x\n\n"))

	if len(*retries) != 1 {
		t.Fatalf("Expected 1 retry update, got %d", len(*retries))
	}
	if (*retries)[0] != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s, got %v", (*retries)[0])
	}
	if len(*frames) != 1 {
		t.Errorf("Expected the data frame still dispatched, got %d", len(*frames))
	}
}

func TestFrameDecoderInvalidRetryIgnored(t *testing.T) {
	dec, _, retries := collectFrames()

	dec.Feed([]byte("retry: soon\nretry: -5\n\n"))

	if len(*retries) != 0 {
		t.Errorf("Expected invalid retry values ignored, got %v", *retries)
	}
}

func TestFrameDecoderValueWithoutSpace(t *testing.T) {
	dec, frames, _ := collectFrames()

	dec.Feed([]byte("data:compact\n\n"))

	if len(*frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(*frames))
	}
	if (*frames)[0].data != "compact" {
		t.Errorf("Expected 'compact', got %q", (*frames)[0].data)
	}
}

func TestFrameDecoderIncompleteLineHeldBack(t *testing.T) {
	dec, frames, _ := collectFrames()

	dec.Feed([]byte("data: partial"))
	if len(*frames) != 0 {
		t.Fatal("Expected no frame before the line terminator")
	}

	dec.Feed([]byte(" value\n\n"))
	if len(*frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(*frames))
	}
	if (*frames)[0].data != "partial value" {
		t.Errorf("Expected 'partial value', got %q", (*frames)[0].data)
	}
}
