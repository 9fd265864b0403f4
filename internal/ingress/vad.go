package ingress

import "math"

// EnergyVAD classifies frames as speech or silence by normalized RMS
// energy with hysteresis: the release threshold sits below the attack
// threshold so trailing fricatives do not flap the detector.
type EnergyVAD struct {
	attack   float64
	release  float64
	speaking bool
}

// NewEnergyVAD builds a detector around the configured threshold.
func NewEnergyVAD(threshold float64) *EnergyVAD {
	return &EnergyVAD{attack: threshold, release: threshold * 0.6}
}

// Process classifies one frame and returns whether it is speech.
func (v *EnergyVAD) Process(frame []int16) bool {
	e := RMS(frame)
	if v.speaking {
		v.speaking = e >= v.release
	} else {
		v.speaking = e >= v.attack
	}
	return v.speaking
}

// RMS returns the root mean square of the frame normalized to [0,1].
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}
