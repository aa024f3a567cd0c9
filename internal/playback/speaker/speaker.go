// Package speaker plays MP3 files on the local audio device through faiface/beep.
package speaker

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	beepspeaker "github.com/faiface/beep/speaker"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/playback"
)

var _ playback.Player = (*Speaker)(nil)

// Speaker decodes MP3 files and plays them on the default output device.
// Play blocks until the clip ends or ctx is cancelled.
type Speaker struct {
	mu   sync.Mutex
	rate beep.SampleRate
}

// New returns a speaker; the device is opened on first use.
func New() *Speaker {
	return &Speaker{}
}

// Play implements playback.Player.
func (s *Speaker) Play(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open audio")
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "decode mp3")
	}
	defer streamer.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rate == 0 {
		if err := beepspeaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return errors.Wrap(err, "init speaker")
		}
		s.rate = format.SampleRate
	}

	var source beep.Streamer = streamer
	if format.SampleRate != s.rate {
		source = beep.Resample(4, format.SampleRate, s.rate, streamer)
	}

	done := make(chan struct{})
	beepspeaker.Play(beep.Seq(source, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		log.Debug().Str("component", "playback").Str("path", path).Msg("playback finished")
		return nil
	case <-ctx.Done():
		beepspeaker.Clear()
		return ctx.Err()
	}
}
