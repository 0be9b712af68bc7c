package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

var (
	// ErrPermissionDenied is returned when the microphone cannot be opened.
	// It fires before any frame is delivered and is never retried.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceInterrupted reports a mid-stream hardware failure. Frame
	// delivery halts until the capture is explicitly restarted.
	ErrDeviceInterrupted = errors.New("audio device interrupted")

	ErrCaptureActive = errors.New("capture already active")
)

// CaptureConfig fixes the canonical input format: mono PCM16 at a single
// sample rate, fixed-duration frames.
type CaptureConfig struct {
	SampleRate    int
	FrameDuration time.Duration
	ChannelDepth  int
}

// Capture owns the microphone stream and feeds fixed-size frames into a
// bounded channel. The read loop never blocks on downstream consumers: if the
// channel is full the frame is dropped and counted, keeping the hardware tap
// responsive.
type Capture struct {
	cfg    CaptureConfig
	onDrop func()

	mu      sync.Mutex
	frames  chan Frame
	stop    chan struct{}
	done    chan struct{}
	running bool
	lastErr error
}

func NewCapture(cfg CaptureConfig, onDrop func()) *Capture {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 100 * time.Millisecond
	}
	if cfg.ChannelDepth <= 0 {
		cfg.ChannelDepth = 32
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	return &Capture{cfg: cfg, onDrop: onDrop}
}

// Start opens the microphone and begins frame delivery. A failure to open or
// start the input stream means the OS refused the device.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrCaptureActive
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	frameSize := int(float64(c.cfg.SampleRate) * c.cfg.FrameDuration.Seconds())
	buf := make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.cfg.SampleRate), len(buf), buf)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	c.frames = make(chan Frame, c.cfg.ChannelDepth)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.running = true
	c.lastErr = nil

	go c.readLoop(ctx, stream, buf)
	return nil
}

// Frames returns the bounded frame channel. It is closed when capture stops
// or the device is interrupted.
func (c *Capture) Frames() <-chan Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Stop halts delivery and releases the hardware tap. It blocks until the read
// loop has fully shut down.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	stop := c.stop
	done := c.done
	c.mu.Unlock()

	close(stop)
	<-done
}

// Err reports the terminal error of the last run, if any.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Capture) readLoop(ctx context.Context, stream *portaudio.Stream, buf []int16) {
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
		_ = portaudio.Terminate()

		c.mu.Lock()
		c.running = false
		close(c.frames)
		close(c.done)
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			c.mu.Lock()
			c.lastErr = fmt.Errorf("%w: %v", ErrDeviceInterrupted, err)
			c.mu.Unlock()
			return
		}

		samples := make([]int16, len(buf))
		copy(samples, buf)
		frame := Frame{
			Samples:    samples,
			CapturedAt: time.Now(),
			Duration:   c.cfg.FrameDuration,
		}

		select {
		case c.frames <- frame:
		default:
			c.onDrop()
		}
	}
}
