// Package sentiment scores caller turns from a Spanish lexicon, fuses the
// text score with the prosodic read of the audio and tracks rolling
// conversation flags for the dialogue context.
package sentiment

import "strings"

// Lexicon weights. Scores accumulate per matched token and are squashed
// into [-1, 1].
var positiveWords = map[string]float64{
	"gracias":    0.6,
	"perfecto":   0.8,
	"excelente":  0.9,
	"genial":     0.8,
	"bueno":      0.4,
	"bien":       0.4,
	"claro":      0.3,
	"estupendo":  0.8,
	"encantado":  0.7,
	"amable":     0.6,
	"contento":   0.7,
	"contenta":   0.7,
	"fantástico": 0.9,
	"fantastico": 0.9,
	"correcto":   0.3,
	"vale":       0.2,
}

var negativeWords = map[string]float64{
	"problema":    -0.5,
	"problemas":   -0.5,
	"error":       -0.5,
	"mal":         -0.5,
	"malo":        -0.6,
	"terrible":    -0.9,
	"horrible":    -0.9,
	"fatal":       -0.8,
	"queja":       -0.7,
	"molesto":     -0.7,
	"molesta":     -0.7,
	"enfadado":    -0.8,
	"enfadada":    -0.8,
	"furioso":     -0.9,
	"furiosa":     -0.9,
	"harto":       -0.8,
	"harta":       -0.8,
	"inaceptable": -0.9,
	"nunca":       -0.3,
	"imposible":   -0.6,
	"cobrado":     -0.3,
	"cobro":       -0.3,
	"fraude":      -0.9,
	"robo":        -0.8,
	"espera":      -0.2,
	"esperando":   -0.4,
	"lento":       -0.4,
	"preocupado":  -0.6,
	"preocupada":  -0.6,
	"urgente":     -0.4,
}

// negators flip the polarity of the following sentiment word.
var negators = map[string]struct{}{
	"no": {}, "nunca": {}, "tampoco": {}, "ni": {},
}

// intensifiers scale the following sentiment word.
var intensifiers = map[string]float64{
	"muy": 1.5, "demasiado": 1.6, "bastante": 1.3, "súper": 1.5, "super": 1.5, "totalmente": 1.4,
}

// Score returns the lexicon sentiment of the text in [-1, 1].
func Score(text string) float64 {
	tokens := tokenize(text)
	var sum float64
	var hits int
	for i, tok := range tokens {
		w, ok := positiveWords[tok]
		if !ok {
			w, ok = negativeWords[tok]
		}
		if !ok {
			continue
		}
		scale := 1.0
		if i > 0 {
			prev := tokens[i-1]
			if _, neg := negators[prev]; neg {
				w = -w
			} else if k, intens := intensifiers[prev]; intens {
				scale = k
			}
		}
		sum += w * scale
		hits++
	}
	if hits == 0 {
		return 0
	}
	score := sum / float64(hits)
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score
}

// Label maps a score to a coarse label.
func Label(score float64) string {
	switch {
	case score <= -0.6:
		return "very_negative"
	case score <= -0.2:
		return "negative"
	case score < 0.2:
		return "neutral"
	case score < 0.6:
		return "positive"
	default:
		return "very_positive"
	}
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?¿¡\"'()")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
