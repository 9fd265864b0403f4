package sentiment

import "github.com/centralita-ai/voice-orchestrator/internal/preprocess"

// Fused label values. The set is closed; downstream matches on it.
const (
	LabelPositive   = "positive"
	LabelNeutral    = "neutral"
	LabelFrustrated = "frustrated"
	LabelAngry      = "angry"
	LabelConfused   = "confused"
)

// Fused is the combined acoustic and lexical read of one caller turn.
type Fused struct {
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	TextScore  float64 `json:"text_score"`
	Tone       string  `json:"tone,omitempty"`
}

// Fuse combines the lexicon score with the prosodic tone. The voice
// overrules polite words: neutral text in a nervous or concerned voice
// reads as frustrated, and an excited tone lifts a positive one. Without
// prosody the text score stands alone at lower confidence.
func Fuse(text string, prosody *preprocess.ProsodyResult) Fused {
	textScore := Score(text)
	f := Fused{TextScore: textScore, Score: textScore, Confidence: 0.6}

	confused := containsAny(lowerTrim(text), confusionPhrases)

	var tone string
	if prosody != nil {
		tone = prosody.Tone
		f.Tone = tone
		f.Confidence = 0.8
	}

	switch {
	case confused:
		f.Label = LabelConfused
		if f.Score > 0 {
			f.Score = 0
		}
	case textScore <= -0.6 || (tone == "angry" && textScore < 0):
		f.Label = LabelAngry
		if tone == "angry" {
			f.Score = textScore - 0.2
		}
	case textScore <= -0.2:
		f.Label = LabelFrustrated
	case textScore < 0.2:
		if tone == "nervous" || tone == "concerned" {
			// calm words, worried voice
			f.Label = LabelFrustrated
			f.Score = -0.4
		} else {
			f.Label = LabelNeutral
		}
	default:
		f.Label = LabelPositive
		if tone == "excited" {
			f.Score = textScore + 0.2
			f.Confidence = 0.9
		}
	}

	if f.Score > 1 {
		f.Score = 1
	} else if f.Score < -1 {
		f.Score = -1
	}
	return f
}
