package detection

import "strings"

// FilterNoise drops social/off-topic messages, keeping the order of the
// rest. A message is noise only when it hits at least noise_min_hits
// distinct noise keywords and is shorter than noise_max_words words, so a
// long work email that mentions lunch in passing survives.
func FilterNoise(rules *Rules, msgs []Message) ([]Message, int) {
	clean := make([]Message, 0, len(msgs))
	dropped := 0
	for _, m := range msgs {
		if rules.IsNoise(m.Body) {
			dropped++
			continue
		}
		clean = append(clean, m)
	}
	return clean, dropped
}

// IsNoise classifies a single body.
func (r *Rules) IsNoise(body string) bool {
	return r.NoiseHits(body) >= r.noiseMinHits && len(strings.Fields(body)) < r.noiseMaxWords
}

// NoiseHits counts the distinct noise keywords body matches.
func (r *Rules) NoiseHits(body string) int {
	hits := 0
	for _, ru := range r.noise {
		if ru.regex.MatchString(body) {
			hits++
		}
	}
	return hits
}
