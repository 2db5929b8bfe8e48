package announce

import "partyserver/models"

const (
	MinRate  = 0.5
	MaxRate  = 2.0
	MinPitch = 0.5
	MaxPitch = 2.0
)

// Voice は読み上げのパラメータです。Name が空なら既定の声
type Voice struct {
	Name  string
	Rate  float64
	Pitch float64
}

// VoiceFromConfig converts a challenge's voice settings.
func VoiceFromConfig(cfg models.VoiceConfig) Voice {
	return Voice{Name: cfg.Name, Rate: cfg.Rate, Pitch: cfg.Pitch}
}

func clamp(v, lo, hi float64) float64 {
	if v == 0 {
		return 1
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalized は rate/pitch を既定値で埋めて範囲内に収めます。
func (v Voice) normalized() Voice {
	if v.Name == models.DefaultVoiceName {
		v.Name = ""
	}
	v.Rate = clamp(v.Rate, MinRate, MaxRate)
	v.Pitch = clamp(v.Pitch, MinPitch, MaxPitch)
	return v
}
