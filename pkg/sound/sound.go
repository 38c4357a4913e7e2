// Package sound plays short WAV cues through the speaker.
package sound

import (
	"os"
	"path/filepath"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/jemminiz/EZ-Template/pkg/log"
)

// Cues the robot program plays.  Each is <name>.wav in the sounds
// directory.
const (
	CueStart     = "start"
	CueDone      = "done"
	CueBlocked   = "blocked"
	CueAbort     = "abort"
	CueTuning    = "tuning"
	CueSelection = "select"
)

// CuePath resolves a cue name to its file.
func CuePath(dir, cue string) string {
	return filepath.Join(dir, cue+".wav")
}

// InitSound starts the player.  Paths sent on the returned channel are
// played in turn, each interrupting the last; close it to stop the player.
func InitSound() chan string {
	logger := log.For("sound")
	soundsToPlay := make(chan string)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("sound player panicked", "panic", r)
			}
			for s := range soundsToPlay {
				logger.Warn("unable to play", "path", s)
			}
		}()
		sampleRate := beep.SampleRate(44100)
		err := speaker.Init(sampleRate, sampleRate.N(time.Second/5))
		if err != nil {
			logger.Warn("failed to open speaker", "error", err)
			return
		}
		var ctrl *beep.Ctrl
		var s beep.StreamSeekCloser
		for soundToPlay := range soundsToPlay {
			if ctrl != nil {
				speaker.Lock()
				ctrl.Paused = true
				ctrl.Streamer = nil
				speaker.Unlock()
				ctrl = nil
			}
			if s != nil {
				_ = s.Close()
				s = nil
			}

			f, err := os.Open(soundToPlay)
			if err != nil {
				logger.Warn("failed to open sound", "error", err)
				continue
			}
			s, _, err = wav.Decode(f)
			if err != nil {
				logger.Warn("failed to decode sound", "path", soundToPlay, "error", err)
				_ = f.Close()
				s = nil
				continue
			}
			ctrl = &beep.Ctrl{Streamer: s}
			speaker.Play(ctrl)
		}
	}()
	return soundsToPlay
}
