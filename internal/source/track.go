// Package source turns MIDI files and JSON note dumps into raw notes.
package source

import (
	"sort"

	"melodypath/internal/common/utils"
	"melodypath/internal/types"
)

// Track is one decoded input. Notes may hold several source tracks; use
// PickMelodyTrack and FilterTrack to narrow them down.
type Track struct {
	ID       string          `json:"id"`
	Notes    []types.RawNote `json:"notes"`
	TempoBPM float64         `json:"tempo_bpm"`
	PPQ      int             `json:"ppq,omitempty"`
}

// Melody range used to recognise a lead line by its average pitch.
const (
	melodyPitchLow  = 50
	melodyPitchHigh = 80
)

// PickMelodyTrack returns the source track with the most notes whose average
// pitch lies strictly between 50 and 80. When no track qualifies, the track
// with the most notes wins. Ties go to the lower track number. It returns -1
// for no notes.
func PickMelodyTrack(notes []types.RawNote) int {
	type stat struct {
		count int
		sum   int
	}
	stats := map[int]*stat{}
	for _, n := range notes {
		s := stats[n.Track]
		if s == nil {
			s = &stat{}
			stats[n.Track] = s
		}
		s.count++
		s.sum += n.Pitch
	}
	if len(stats) == 0 {
		return -1
	}
	ids := make([]int, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	best, bestCount := -1, 0
	fallback, fallbackCount := -1, 0
	for _, id := range ids {
		s := stats[id]
		if s.count > fallbackCount {
			fallback, fallbackCount = id, s.count
		}
		avg := float64(s.sum) / float64(s.count)
		if avg > melodyPitchLow && avg < melodyPitchHigh && s.count > bestCount {
			best, bestCount = id, s.count
		}
	}
	if best >= 0 {
		return best
	}
	return fallback
}

// FilterTrack keeps the notes of one source track.
func FilterTrack(notes []types.RawNote, track int) []types.RawNote {
	return utils.Filter(notes, func(n types.RawNote) bool { return n.Track == track })
}

// Melody narrows t to a single source track. track < 0 picks automatically.
func (t Track) Melody(track int) Track {
	if track < 0 {
		track = PickMelodyTrack(t.Notes)
	}
	if track < 0 {
		return t
	}
	t.Notes = FilterTrack(t.Notes, track)
	return t
}

func sortNotes(notes []types.RawNote) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].Pitch > notes[j].Pitch
	})
}
