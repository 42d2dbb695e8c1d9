package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var ErrAlreadySpeaking = errors.New("speech: an utterance is already active")

// Sink receives audio bytes as they are synthesized.
type Sink interface {
	WriteAudio(chunk []byte) error
}

type Controller struct {
	synth Synthesizer
	sink  Sink

	mu     sync.Mutex
	active bool
	seq    uint64
	cancel context.CancelFunc
}

func NewController(synth Synthesizer, sink Sink) *Controller {
	return &Controller{synth: synth, sink: sink}
}

// Start begins reading text aloud. onDone runs once when the utterance ends on
// its own (err is nil) or synthesis fails; it never runs after Stop.
func (c *Controller) Start(text, lang string, onDone func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return ErrAlreadySpeaking
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.seq++
	c.active = true
	c.cancel = cancel

	go c.run(ctx, c.seq, text, lang, onDone)
	return nil
}

// Stop cancels the active utterance, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.cancel()
	c.cancel = nil
	c.active = false
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) run(ctx context.Context, id uint64, text, lang string, onDone func(error)) {
	err := c.speak(ctx, text, lang)

	c.mu.Lock()
	current := c.active && c.seq == id
	if current {
		c.cancel()
		c.cancel = nil
		c.active = false
	}
	c.mu.Unlock()

	// The lock is released first: onDone usually takes the owner's lock, and
	// the owner may be calling Stop while holding it.
	if current && onDone != nil {
		onDone(err)
	}
}

func (c *Controller) speak(ctx context.Context, text, lang string) error {
	for _, chunk := range SplitText(text, MaxChunkLen) {
		if err := ctx.Err(); err != nil {
			return err
		}

		rc, err := c.synth.Synthesize(ctx, chunk, lang)
		if err != nil {
			return fmt.Errorf("synthesis with %s failed: %w", c.synth.Name(), err)
		}

		err = c.pump(ctx, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) pump(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 && c.sink != nil {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			if werr := c.sink.WriteAudio(frame); werr != nil {
				return fmt.Errorf("failed to deliver audio: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
