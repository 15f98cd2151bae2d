package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder tees the mono input of a session into a PCM WAV file.
//
// Write runs on the audio callback: it copies samples into one of a fixed set
// of pre-allocated chunk buffers taken from a free list and never blocks. When
// the writer goroutine falls behind and no buffer is free, the samples are
// dropped and counted.
type Recorder struct {
	path       string
	sampleRate int
	bitDepth   int

	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion

	free chan []float32
	work chan []float32

	closed    atomic.Bool
	dropped   atomic.Uint64
	written   atomic.Uint64
	wg        sync.WaitGroup
	closeOnce sync.Once
	writeErr  error
	closeErr  error
}

// RecordingPath returns a timestamped file name inside dir.
func RecordingPath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("fretcheck-%s.wav", t.Format("20060102-150405")))
}

// NewRecorder creates the output file and starts the writer goroutine.
// chunkFrames should match the stream's frames per buffer; chunks is the depth
// of the free list.
func NewRecorder(path string, sampleRate, bitDepth, chunkFrames, chunks int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if chunkFrames <= 0 || chunks <= 0 {
		return nil, fmt.Errorf("invalid recorder buffering: %d x %d", chunks, chunkFrames)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path:       path,
		sampleRate: sampleRate,
		bitDepth:   bitDepth,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, chunkFrames),
			SourceBitDepth: bitDepth,
		},
		free: make(chan []float32, chunks),
		work: make(chan []float32, chunks),
	}
	for range chunks {
		r.free <- make([]float32, 0, chunkFrames)
	}

	r.wg.Add(1)
	go r.run()
	return r, nil
}

// Path returns the output file path.
func (r *Recorder) Path() string {
	return r.path
}

// Write queues a copy of mono for encoding. It reports false when some samples
// were dropped. Write must not be called concurrently with itself or after
// Close.
func (r *Recorder) Write(mono []float32) bool {
	if r.closed.Load() {
		return false
	}
	for len(mono) > 0 {
		var buf []float32
		select {
		case buf = <-r.free:
		default:
			r.dropped.Add(uint64(len(mono)))
			return false
		}
		n := min(len(mono), cap(buf))
		buf = append(buf[:0], mono[:n]...)
		mono = mono[n:]
		r.work <- buf // Never blocks: work has room for every buffer.
	}
	return true
}

// Dropped returns the number of samples discarded.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Written returns the number of samples encoded.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	fullScale := float64(int(1)<<(r.bitDepth-1) - 1)
	for buf := range r.work {
		if r.writeErr == nil {
			data := r.sampleBuf.Data[:cap(r.sampleBuf.Data)]
			if len(buf) > len(data) {
				data = make([]int, len(buf))
			}
			data = data[:len(buf)]
			for i, s := range buf {
				v := math.Max(-1, math.Min(1, float64(s)))
				data[i] = int(math.Round(v * fullScale))
			}
			r.sampleBuf.Data = data
			if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
				r.writeErr = err
			} else {
				r.written.Add(uint64(len(buf)))
			}
		}
		r.free <- buf[:0]
	}
}

// Close flushes pending chunks, finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.work)
		r.wg.Wait()

		r.closeErr = r.writeErr
		if err := r.wavEncoder.Close(); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
		if err := r.outputFile.Close(); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
	})
	return r.closeErr
}
