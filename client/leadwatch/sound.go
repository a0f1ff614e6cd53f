package leadwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Sound is one playback. Play returns when it finishes or ctx is cancelled.
type Sound interface {
	Play(ctx context.Context) error
}

// Bell rings the terminal bell Repeat times, Interval apart.
type Bell struct {
	W        io.Writer
	Repeat   int
	Interval time.Duration
}

func (b Bell) Play(ctx context.Context) error {
	n := b.Repeat
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.Interval):
			}
		}
		if _, err := io.WriteString(b.W, "\a"); err != nil {
			return err
		}
	}
	return nil
}

// Ringer plays the alert sound.
type Ringer interface {
	// Restart stops the current playback, if any, and plays from the beginning.
	Restart()
	Stop()
}

// Player runs at most one playback of a Sound at a time.
type Player struct {
	sound Sound
	log   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPlayer(sound Sound, log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	return &Player{sound: sound, log: log}
}

// Restart cancels the running playback, waits for it to end and starts a new one.
func (p *Player) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	go func() {
		defer close(done)
		if err := p.sound.Play(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.log.Warn("leadwatch.sound.failed", "err", err)
		}
	}()
}

// Stop cancels the running playback and waits for it.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Playing reports whether a playback is still running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Player) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
}
