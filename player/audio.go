package player

// AudioCallback returns the closure the host's audio subsystem should
// invoke to fill its interleaved float32 output buffer. The closure runs on
// the audio thread and never allocates, blocks, or touches the rest of the
// Player state beyond the shared atomics.
//
// In WallClock mode the callback chases the target sample the loop
// publishes: small drift is tolerated and corrected naturally by the
// device clock, but once |target - position| exceeds a tenth of a second
// the callback hard-jumps to the target. In AudioMaster mode the callback
// just advances and the loop derives frames from its position instead.
func (p *Player) AudioCallback() func(out []float32) {
	if !p.hasAudio {
		return func(out []float32) {
			for i := range out {
				out[i] = 0
			}
		}
	}

	channels := int64(p.audio.Channels)
	total := p.audio.TotalSamples
	maxDrift := int64(p.audio.SampleRate / 10)

	return func(out []float32) {
		if !p.playing.Load() {
			for i := range out {
				out[i] = 0
			}
			return
		}

		pos := p.audioPos.Load()

		if p.opts.Clock == WallClock {
			target := p.targetSample.Load()
			if drift := target - pos; drift > maxDrift || drift < -maxDrift {
				p.log.Debugf("audio resync: %d samples of drift", target-pos)
				pos = target
			}
		}

		frames := int64(len(out)) / channels
		for f := int64(0); f < frames; f++ {
			sample := pos + f
			if sample >= total {
				if p.info.Loop {
					sample %= total
				} else {
					for ch := int64(0); ch < channels; ch++ {
						out[f*channels+ch] = 0
					}
					continue
				}
			}
			for ch := int64(0); ch < channels; ch++ {
				out[f*channels+ch] = p.reader.AudioAt(sample*channels + ch)
			}
		}

		pos += frames
		if p.info.Loop && total > 0 {
			pos %= total
		}
		p.audioPos.Store(pos)
	}
}
