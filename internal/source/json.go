package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"melodypath/internal/common/utils"
	"melodypath/internal/types"
)

// Onsets carry no pitch or length. They become short notes on a rising
// two-octave cycle starting at middle C.
const (
	onsetSeconds   = 0.25
	onsetVelocity  = 100
	onsetBasePitch = 60
	onsetPitchSpan = 24
)

type jsonDocument struct {
	ID       string            `json:"id"`
	TempoBPM float64           `json:"tempo_bpm"`
	Tempo    float64           `json:"tempo"`
	Notes    []types.RawNote   `json:"notes"`
	Onsets   []json.RawMessage `json:"onsets"`
}

type onset struct {
	T        float64  `json:"t"`
	Time     *float64 `json:"time"`
	Strength *float64 `json:"strength"`
}

// DecodeJSON accepts {"notes": [...]} and {"onsets": [...]} documents, where
// onsets are bare seconds or {"t", "strength"} objects. Both end up as notes.
func DecodeJSON(data []byte) (Track, error) {
	var doc jsonDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return Track{}, fmt.Errorf("source: decode json: %w", err)
	}
	tr := Track{ID: doc.ID, TempoBPM: doc.TempoBPM}
	if tr.TempoBPM <= 0 {
		tr.TempoBPM = doc.Tempo
	}
	if tr.TempoBPM <= 0 {
		tr.TempoBPM = defaultBPM
	}

	switch {
	case len(doc.Notes) > 0:
		tr.Notes = append([]types.RawNote(nil), doc.Notes...)
	case len(doc.Onsets) > 0:
		notes, err := onsetNotes(doc.Onsets)
		if err != nil {
			return Track{}, err
		}
		tr.Notes = notes
	}
	sortNotes(tr.Notes)
	return tr, nil
}

func onsetNotes(raw []json.RawMessage) ([]types.RawNote, error) {
	onsets := make([]onset, 0, len(raw))
	for i, r := range raw {
		var o onset
		var t float64
		if err := json.Unmarshal(r, &t); err == nil {
			o.T = t
		} else if err := json.Unmarshal(r, &o); err != nil {
			return nil, fmt.Errorf("source: onset %d: %w", i, err)
		} else if o.Time != nil {
			o.T = *o.Time
		}
		onsets = append(onsets, o)
	}
	sort.SliceStable(onsets, func(i, j int) bool { return onsets[i].T < onsets[j].T })

	notes := make([]types.RawNote, 0, len(onsets))
	for i, o := range onsets {
		end := o.T + onsetSeconds
		if i+1 < len(onsets) {
			end = math.Min(end, onsets[i+1].T)
		}
		vel := onsetVelocity
		if o.Strength != nil {
			vel = utils.ClampInt(int(math.Round(utils.Clamp(*o.Strength, 0, 1)*127)), 1, 127)
		}
		notes = append(notes, types.RawNote{
			Start:    o.T,
			End:      end,
			Pitch:    onsetBasePitch + i%onsetPitchSpan,
			Velocity: vel,
		})
	}
	return notes, nil
}
