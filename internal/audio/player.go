package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player renders a decoded buffer to the audio device, blocking until
// playback completes.
type Player interface {
	Play(ctx context.Context, buf *Buffer) error
}

// OtoPlayer plays buffers through the system audio device. The underlying
// device context is initialized lazily on first use and pinned to the
// first buffer's layout.
type OtoPlayer struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

func NewOtoPlayer() *OtoPlayer {
	return &OtoPlayer{}
}

func (p *OtoPlayer) context(sampleRate, channels int) (*oto.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		if sampleRate != p.sampleRate || channels != p.channels {
			return nil, fmt.Errorf("audio device initialized at %d Hz/%d ch, buffer is %d Hz/%d ch",
				p.sampleRate, p.channels, sampleRate, channels)
		}
		return p.ctx, nil
	}

	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	p.ctx = octx
	p.sampleRate = sampleRate
	p.channels = channels
	return octx, nil
}

func (p *OtoPlayer) Play(ctx context.Context, buf *Buffer) error {
	octx, err := p.context(buf.SampleRate, buf.Channels)
	if err != nil {
		return err
	}

	data := make([]byte, 4*len(buf.Samples))
	for i, s := range buf.Samples {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(s))
	}

	player := octx.NewPlayer(bytes.NewReader(data))
	defer player.Close()
	player.Play()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return nil
}
