package source

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"melodypath/internal/types"
)

const defaultBPM = 120.0

var ErrUnsupportedTimeFormat = errors.New("source: only metric (PPQ) time division is supported")

type SMFOptions struct {
	// UnclosedSeconds is the length given to a note that is never released
	// and starts at the very end of its track.
	UnclosedSeconds float64
	// SkipDrums drops channel 10 (index 9).
	SkipDrums bool
}

func DefaultSMFOptions() SMFOptions {
	return SMFOptions{UnclosedSeconds: 0.5, SkipDrums: true}
}

type tempoChange struct {
	tick int64
	bpm  float64
}

// tempoMap converts absolute ticks to seconds across tempo changes.
type tempoMap struct {
	ppq     float64
	changes []tempoChange
}

func (m tempoMap) seconds(tick int64) float64 {
	var (
		sec      float64
		lastTick int64
		bpm      = defaultBPM
	)
	for _, c := range m.changes {
		if c.tick >= tick {
			break
		}
		sec += float64(c.tick-lastTick) / m.ppq * 60 / bpm
		lastTick, bpm = c.tick, c.bpm
	}
	return sec + float64(tick-lastTick)/m.ppq*60/bpm
}

func (m tempoMap) initialBPM() float64 {
	bpm := defaultBPM
	for _, c := range m.changes {
		if c.tick > 0 {
			break
		}
		bpm = c.bpm
	}
	return bpm
}

type openNote struct {
	tick     int64
	velocity uint8
}

// DecodeSMF reads a Standard MIDI File. Note-ons are paired with the first
// outstanding note-off on the same channel and key; a note-on with velocity 0
// counts as a note-off. Tempo changes from every track form one tempo map.
func DecodeSMF(r io.Reader, opts SMFOptions) (Track, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return Track{}, fmt.Errorf("source: read smf: %w", err)
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return Track{}, ErrUnsupportedTimeFormat
	}
	tm := tempoMap{ppq: float64(mt.Resolution())}
	if tm.ppq <= 0 {
		return Track{}, fmt.Errorf("source: invalid resolution %d", mt.Resolution())
	}

	for _, tr := range s.Tracks {
		var tick int64
		for _, ev := range tr {
			tick += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				tm.changes = append(tm.changes, tempoChange{tick: tick, bpm: bpm})
			}
		}
	}
	sort.SliceStable(tm.changes, func(i, j int) bool { return tm.changes[i].tick < tm.changes[j].tick })

	var notes []types.RawNote
	for ti, tr := range s.Tracks {
		notes = append(notes, decodeTrack(tr, ti, tm, opts)...)
	}
	sortNotes(notes)
	return Track{Notes: notes, TempoBPM: tm.initialBPM(), PPQ: int(mt.Resolution())}, nil
}

func decodeTrack(tr smf.Track, index int, tm tempoMap, opts SMFOptions) []types.RawNote {
	var (
		tick  int64
		notes []types.RawNote
		open  = map[[2]uint8][]openNote{}
	)
	emit := func(ch, key uint8, on openNote, endTick int64) {
		start := tm.seconds(on.tick)
		end := tm.seconds(endTick)
		if end <= start {
			end = start + opts.UnclosedSeconds
		}
		notes = append(notes, types.RawNote{
			Start:    start,
			End:      end,
			Pitch:    int(key),
			Velocity: int(on.velocity),
			Channel:  int(ch),
			Track:    index,
		})
	}

	for _, ev := range tr {
		tick += int64(ev.Delta)
		msg := midi.Message(ev.Message)
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			if opts.SkipDrums && ch == 9 {
				continue
			}
			k := [2]uint8{ch, key}
			open[k] = append(open[k], openNote{tick: tick, velocity: vel})
		case msg.GetNoteEnd(&ch, &key):
			k := [2]uint8{ch, key}
			pending := open[k]
			if len(pending) == 0 {
				continue
			}
			emit(ch, key, pending[0], tick)
			open[k] = pending[1:]
		}
	}

	// close what is still sounding at the end of the track
	keys := make([][2]uint8, 0, len(open))
	for k := range open {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, k := range keys {
		for _, on := range open[k] {
			emit(k[0], k[1], on, tick)
		}
	}
	return notes
}
