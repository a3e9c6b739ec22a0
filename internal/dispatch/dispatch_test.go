package dispatch

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aarkan1/vibe-writer/internal/audio"
	"github.com/Aarkan1/vibe-writer/internal/engine"
)

// fakeEngine returns canned text per segment with optional per-call latency.
type fakeEngine struct {
	mu      sync.Mutex
	replies map[string]string
	delays  map[string]time.Duration
	err     error
	calls   int
}

var _ engine.Transcriber = (*fakeEngine)(nil)

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Ready(context.Context) error { return nil }

func (f *fakeEngine) Transcribe(ctx context.Context, pcm []byte, _ int, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	key := string(pcm[:2])
	reply := f.replies[key]
	delay := f.delays[key]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// taggedSegment builds a segment whose first sample identifies it to fakeEngine.
func taggedSegment(id string, tag uint16) audio.Segment {
	samples := make([]byte, 960)
	binary.LittleEndian.PutUint16(samples[0:2], tag)
	for i := 2; i < len(samples); i += 2 {
		binary.LittleEndian.PutUint16(samples[i:i+2], 4000)
	}
	return audio.Segment{
		ID:         id,
		SampleRate: 16000,
		Frames:     []audio.Frame{{Samples: samples, SampleRate: 16000, Channels: 1}},
	}
}

func collect(t *testing.T, d *Dispatcher, n int) []Result {
	t.Helper()
	results := make([]Result, 0, n)
	for len(results) < n {
		select {
		case r := <-d.Results():
			results = append(results, r)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d results", len(results), n)
		}
	}
	return results
}

func TestDispatchReturnsText(t *testing.T) {
	eng := &fakeEngine{replies: map[string]string{string([]byte{1, 0}): "hello world"}}
	d := New(eng, Options{Language: "en"}, nil)
	d.Start(context.Background())
	defer d.Close()

	require.NoError(t, d.Submit(taggedSegment("s1", 1)))
	results := collect(t, d, 1)
	require.Equal(t, "s1", results[0].SegmentID)
	require.NoError(t, results[0].Err)
	require.Equal(t, "hello world", results[0].Text)
}

func TestDispatchFIFOUnderUnevenLatency(t *testing.T) {
	eng := &fakeEngine{
		replies: map[string]string{
			string([]byte{1, 0}): "first",
			string([]byte{2, 0}): "second",
			string([]byte{3, 0}): "third",
		},
		delays: map[string]time.Duration{
			string([]byte{1, 0}): 80 * time.Millisecond,
			string([]byte{2, 0}): 0,
			string([]byte{3, 0}): 20 * time.Millisecond,
		},
	}
	d := New(eng, Options{}, nil)
	d.Start(context.Background())
	defer d.Close()

	require.NoError(t, d.Submit(taggedSegment("s1", 1)))
	require.NoError(t, d.Submit(taggedSegment("s2", 2)))
	require.NoError(t, d.Submit(taggedSegment("s3", 3)))

	results := collect(t, d, 3)
	require.Equal(t, []string{"first", "second", "third"}, []string{results[0].Text, results[1].Text, results[2].Text})
	require.Equal(t, []string{"s1", "s2", "s3"}, []string{results[0].SegmentID, results[1].SegmentID, results[2].SegmentID})
}

func TestDispatchEmptySegmentShortCircuits(t *testing.T) {
	eng := &fakeEngine{}
	d := New(eng, Options{}, nil)
	d.Start(context.Background())
	defer d.Close()

	require.NoError(t, d.Submit(audio.Segment{ID: "empty", SampleRate: 16000}))
	results := collect(t, d, 1)
	require.ErrorIs(t, results[0].Err, ErrEmptyAudio)
	require.Zero(t, eng.callCount())
}

func TestDispatchAllSilenceShortCircuits(t *testing.T) {
	eng := &fakeEngine{}
	d := New(eng, Options{SilenceThreshold: 500}, nil)
	d.Start(context.Background())
	defer d.Close()

	quiet := audio.Segment{
		ID:         "quiet",
		SampleRate: 16000,
		Frames:     []audio.Frame{{Samples: make([]byte, 960), SampleRate: 16000, Channels: 1}},
	}
	require.NoError(t, d.Submit(quiet))
	results := collect(t, d, 1)
	require.ErrorIs(t, results[0].Err, ErrEmptyAudio)
	require.Zero(t, eng.callCount())
}

func TestDispatchEngineErrorSurfaces(t *testing.T) {
	eng := &fakeEngine{err: engine.ErrUnavailable}
	d := New(eng, Options{}, nil)
	d.Start(context.Background())
	defer d.Close()

	require.NoError(t, d.Submit(taggedSegment("s1", 1)))
	results := collect(t, d, 1)
	require.ErrorIs(t, results[0].Err, engine.ErrUnavailable)
}

func TestSubmitAfterCloseFails(t *testing.T) {
	d := New(&fakeEngine{}, Options{}, nil)
	d.Start(context.Background())
	d.Close()
	require.Error(t, d.Submit(taggedSegment("s1", 1)))
}

func TestCloseDrainsQueuedWork(t *testing.T) {
	eng := &fakeEngine{replies: map[string]string{
		string([]byte{1, 0}): "one",
		string([]byte{2, 0}): "two",
	}}
	d := New(eng, Options{}, nil)
	d.Start(context.Background())

	require.NoError(t, d.Submit(taggedSegment("s1", 1)))
	require.NoError(t, d.Submit(taggedSegment("s2", 2)))
	d.Close()

	results := collect(t, d, 2)
	require.Equal(t, "one", results[0].Text)
	require.Equal(t, "two", results[1].Text)
}

func TestContextCancellationStopsWorker(t *testing.T) {
	eng := &fakeEngine{delays: map[string]time.Duration{string([]byte{1, 0}): time.Second}}
	d := New(eng, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	require.NoError(t, d.Submit(taggedSegment("s1", 1)))
	time.Sleep(20 * time.Millisecond)
	cancel()

	results := collect(t, d, 1)
	require.ErrorIs(t, results[0].Err, context.Canceled)
	d.Close()
}

func TestCloseReturnsAfterCancelWithUnreadResults(t *testing.T) {
	eng := &fakeEngine{replies: map[string]string{}}
	d := New(eng, Options{QueueSize: 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	// Nobody reads Results: the buffer fills and the worker blocks on the
	// next send until cancellation releases it.
	for i := 0; i < 4; i++ {
		_ = d.Submit(taggedSegment("seg", uint16(i)))
	}

	time.Sleep(50 * time.Millisecond)
	cancel()

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after context cancellation")
	}
}
