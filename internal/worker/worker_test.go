package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"io"
	"testing"
	"time"

	"github.com/andresmejia3/facesheet/internal/page"
	"github.com/andresmejia3/facesheet/internal/utils"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

// frame builds a framed detector response: [Length][Status][Body]
func frame(status byte, body string) *MockCloser {
	payload := append([]byte{status}, body...)
	pipe := &MockCloser{Buffer: new(bytes.Buffer)}
	binary.Write(pipe, binary.BigEndian, uint32(len(payload)))
	pipe.Write(payload)
	return pipe
}

func TestDetect(t *testing.T) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := frame(0, `[[10, 20, 30, 40], [1, 2, 3, 4]]`)

	w := &DetectorWorker{
		ID:       1,
		Stdin:    stdinMock,
		DataPipe: dataPipeMock,
		// Cmd is nil because we aren't testing process management, just the protocol
	}

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	boxes, err := w.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	// Verify Go sent a framed PNG to the detector
	sent := stdinMock.Bytes()
	if len(sent) < 4 {
		t.Fatalf("Expected a framed request, got %d bytes", len(sent))
	}
	if n := binary.BigEndian.Uint32(sent[:4]); int(n) != len(sent)-4 {
		t.Errorf("Header says %d bytes, body has %d", n, len(sent)-4)
	}
	if !bytes.HasPrefix(sent[4:], []byte("\x89PNG")) {
		t.Error("Expected PNG payload")
	}

	want := []page.BoundingBox{{X: 10, Y: 20, Width: 30, Height: 40}, {X: 1, Y: 2, Width: 3, Height: 4}}
	if len(boxes) != len(want) || boxes[0] != want[0] || boxes[1] != want[1] {
		t.Errorf("Detect() = %+v, want %+v", boxes, want)
	}
}

func TestDetect_Error(t *testing.T) {
	errMsg := "cascade file not found"
	w := &DetectorWorker{
		ID:       1,
		Stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		DataPipe: frame(1, errMsg),
	}

	_, err := w.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 2, 2)))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if err.Error() != "detector worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "detector worker error: "+errMsg, err)
	}
}

func TestCommunicate_Crash(t *testing.T) {
	// An empty data pipe simulates the interpreter dying before it answers
	w := &DetectorWorker{
		ID:       1,
		Stdin:    &MockCloser{Buffer: new(bytes.Buffer)},
		DataPipe: &MockCloser{Buffer: new(bytes.Buffer)},
	}
	if _, err := w.Communicate([]byte("page")); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF, got %v", err)
	}
}

// blockingPipe never returns data, like a detector stuck on a huge page.
type blockingPipe struct{ ch chan struct{} }

func (b *blockingPipe) Read(p []byte) (int, error) { <-b.ch; return 0, io.EOF }
func (b *blockingPipe) Close() error               { return nil }

func TestProcessPage_Timeout(t *testing.T) {
	pipe := &blockingPipe{ch: make(chan struct{})}
	defer close(pipe.ch)

	w := &DetectorWorker{
		ID:          3,
		Stdin:       &MockCloser{Buffer: new(bytes.Buffer)},
		DataPipe:    pipe,
		ReadTimeout: 20 * time.Millisecond,
	}
	if _, err := w.ProcessPage(context.Background(), []byte("page")); err == nil {
		t.Fatal("Expected timeout error")
	}
	if _, err := w.ProcessPage(context.Background(), []byte("page")); !errors.Is(err, ErrWorkerBroken) {
		t.Errorf("Expected ErrWorkerBroken after a timeout, got %v", err)
	}
}

// fakeReply tells fakeProcess how to answer one request.
type fakeReply struct {
	status byte
	body   string
	hang   bool // never answer, like a detector stuck on a huge page
	crash  bool // exit without answering
}

// fakeProcess speaks the detector protocol over in-memory pipes.
func fakeProcess(reply func(req []byte) fakeReply) (io.WriteCloser, io.ReadCloser) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go func() {
		defer reqR.Close()
		defer respW.Close()
		for {
			var n uint32
			if err := binary.Read(reqR, binary.BigEndian, &n); err != nil {
				return
			}
			req := make([]byte, n)
			if _, err := io.ReadFull(reqR, req); err != nil {
				return
			}
			r := reply(req)
			switch {
			case r.hang:
				io.Copy(io.Discard, reqR) // until the worker closes stdin
				return
			case r.crash:
				return
			}
			payload := append([]byte{r.status}, r.body...)
			binary.Write(respW, binary.BigEndian, uint32(len(payload)))
			respW.Write(payload)
		}
	}()
	return reqW, respR
}

// scriptedWorker launches a fake process per attempt; replies[i] answers every
// request of launch i, the last entry is reused for later launches.
func scriptedWorker(timeout time.Duration, launches *int, replies ...fakeReply) *DetectorWorker {
	return &DetectorWorker{
		ID:          7,
		ReadTimeout: timeout,
		Launch: func() (*utils.SafeCommand, io.WriteCloser, io.ReadCloser, error) {
			r := replies[min(*launches, len(replies)-1)]
			*launches++
			stdin, out := fakeProcess(func([]byte) fakeReply { return r })
			return nil, stdin, out, nil
		},
	}
}

func TestProcessPage_RelaunchAfterTimeout(t *testing.T) {
	var launches int
	w := scriptedWorker(100*time.Millisecond, &launches,
		fakeReply{hang: true},
		fakeReply{body: "[[1,2,3,4]]"},
	)
	defer w.Close()

	if _, err := w.ProcessPage(context.Background(), []byte("slow page")); err == nil {
		t.Fatal("Expected timeout error")
	}
	for i := 0; i < 3; i++ {
		body, err := w.ProcessPage(context.Background(), []byte("next page"))
		if err != nil {
			t.Fatalf("Page %d after the timeout failed: %v", i, err)
		}
		if string(body) != "[[1,2,3,4]]" {
			t.Errorf("Unexpected body %q", body)
		}
	}
	if launches != 2 {
		t.Errorf("Expected exactly one relaunch, got %d launches", launches)
	}
}

func TestProcessPage_RelaunchAfterCrash(t *testing.T) {
	var launches int
	w := scriptedWorker(time.Second, &launches,
		fakeReply{crash: true},
		fakeReply{body: "[]"},
	)
	defer w.Close()

	_, err := w.ProcessPage(context.Background(), []byte("page"))
	if err == nil || errors.Is(err, ErrWorkerBroken) {
		t.Fatalf("Expected the crash to fail only this page, got %v", err)
	}
	if _, err := w.ProcessPage(context.Background(), []byte("page")); err != nil {
		t.Fatalf("Expected relaunched worker to answer, got %v", err)
	}
	if launches != 2 {
		t.Errorf("Expected 2 launches, got %d", launches)
	}
}

func TestProcessPage_RemoteErrorKeepsProcess(t *testing.T) {
	var launches int
	w := scriptedWorker(time.Second, &launches, fakeReply{status: 1, body: "could not decode page"})
	defer w.Close()

	for i := 0; i < 2; i++ {
		_, err := w.ProcessPage(context.Background(), []byte("page"))
		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("Expected RemoteError, got %v", err)
		}
	}
	if launches != 1 {
		t.Errorf("Expected the process to be kept, got %d launches", launches)
	}
}

func TestProcessPage_RestartLimit(t *testing.T) {
	var launches int
	w := scriptedWorker(time.Second, &launches, fakeReply{crash: true})
	w.MaxRestarts = 2
	defer w.Close()

	var err error
	for i := 0; i < 5; i++ {
		_, err = w.ProcessPage(context.Background(), []byte("page"))
	}
	if !errors.Is(err, ErrWorkerBroken) {
		t.Errorf("Expected ErrWorkerBroken once restarts are exhausted, got %v", err)
	}
	if launches != 3 {
		t.Errorf("Expected 1 launch plus 2 restarts, got %d", launches)
	}
}

func TestParseBoxes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "Empty body", body: "", want: 0},
		{name: "Null", body: "null", want: 0},
		{name: "Empty tuple as object", body: "{}", want: 0},
		{name: "Empty list", body: " [] ", want: 0},
		{name: "Rows", body: "[[1,2,3,4]]", want: 1},
		{name: "Objects", body: `[{"x":1,"y":2,"width":3,"height":4}]`, want: 1},
		{name: "Error object", body: `{"error":"boom"}`, wantErr: true},
		{name: "Short row", body: "[[1,2,3]]", wantErr: true},
		{name: "Negative extent", body: "[[1,2,-3,4]]", wantErr: true},
		{name: "Garbage", body: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBoxes([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBoxes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got == nil || len(got) != tt.want {
				t.Errorf("Expected %d boxes, got %#v", tt.want, got)
			}
		})
	}
}

func TestNewDetectorWorkerRejectsScale(t *testing.T) {
	cfg := DefaultDetectConfig()
	cfg.ScaleFactor = 1.0
	if _, err := NewDetectorWorker(context.Background(), 0, cfg); err == nil {
		t.Error("Expected error for scale factor 1.0")
	}
}
