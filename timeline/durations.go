package timeline

import "math"

// TextDuration is the slot of a text message. sfx is zero without a sound
// effect.
func TextDuration(voice, sfx float64, hasEffect bool) float64 {
	if hasEffect {
		return math.Max(voice+VoiceDelay, sfx) + TextPause
	}
	return voice + TextPause
}

// PictureDuration is the slot of a picture message.
func PictureDuration(sfx float64, hasEffect bool) float64 {
	if hasEffect {
		return sfx + PicturePause
	}
	return PictureDefault
}
