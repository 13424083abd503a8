package session

import "github.com/kikugo/sesame-csm/internal/audio"

// BuildContext assembles the bounded conditioning window for the next
// generation call: the active speaker's reference segment first, then the
// most recent historyLimit history entries in chronological order, then any
// extra segments in the order given. Recency is the only retention signal;
// nothing is reordered or deduplicated.
//
// The result never exceeds 1 + historyLimit + len(extra) entries, and the
// reference segment is always at index 0 regardless of history length. That
// anchor is what preserves voice identity across arbitrarily long sessions.
func BuildContext(reference audio.Segment, history []audio.Segment, extra []audio.Segment, historyLimit int) []audio.Segment {
	if historyLimit < 0 {
		historyLimit = 0
	}

	recent := history
	if len(recent) > historyLimit {
		recent = recent[len(recent)-historyLimit:]
	}

	window := make([]audio.Segment, 0, 1+len(recent)+len(extra))
	window = append(window, reference)
	window = append(window, recent...)
	window = append(window, extra...)
	return window
}
