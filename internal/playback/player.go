// Package playback hands synthesized audio to an output device.
package playback

import "context"

// Player plays the audio file at path. An empty path means there is nothing to play.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Noop discards every request. The HTTP server uses it because the browser plays the audio.
type Noop struct{}

// Play implements Player.
func (Noop) Play(context.Context, string) error { return nil }
