package main

import (
	"time"
)

// SequenceLength is the number of digits in a valid ZVEI/CCIR call.
const SequenceLength = 5

// SequenceRecord is one decoded five-tone call. Timestamps are the
// configured base time plus stream offsets, so the same sample stream
// always produces byte-identical records.
type SequenceRecord struct {
	Code       string    `json:"code"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Confidence float64   `json:"confidence"`
}

// SequenceDecoder assembles tone observations into five-digit calls.
// It is a small state machine: idle until a tone appears, then
// accumulating until the fifth digit completes a call or a timing rule
// aborts it. A sustained tone produces a stream of identical
// observations; sightings of the current digit within the suppression
// window refresh its timer instead of appending a duplicate.
type SequenceDecoder struct {
	repeatSuppression time.Duration
	maxGap            time.Duration
	silenceTimeout    time.Duration
	base              time.Time

	onComplete func(SequenceRecord)
	onAbort    func(partial string)

	active    bool
	digits    []ToneSymbol
	energies  []float64
	start     time.Duration
	lastSight time.Duration // most recent sighting of the last buffered digit

	// The final tone of a completed call can outlast the call. Its
	// continued sightings are suppressed like any other repeat instead
	// of seeding a ghost sequence.
	tailSym   ToneSymbol
	tailSight time.Duration
}

// NewSequenceDecoder creates a decoder. base anchors record timestamps;
// onComplete receives every finished call and onAbort the digits of
// every discarded partial. Either callback may be nil.
func NewSequenceDecoder(cfg *DecoderConfig, base time.Time, onComplete func(SequenceRecord), onAbort func(partial string)) *SequenceDecoder {
	return &SequenceDecoder{
		repeatSuppression: cfg.RepeatSuppression(),
		maxGap:            cfg.MaxInterDigitGap(),
		silenceTimeout:    cfg.SilenceTimeout(),
		base:              base,
		onComplete:        onComplete,
		onAbort:           onAbort,
		digits:            make([]ToneSymbol, 0, SequenceLength),
		energies:          make([]float64, 0, SequenceLength),
		tailSym:           NoSymbol,
	}
}

// Observe feeds one detector observation into the state machine.
func (sd *SequenceDecoder) Observe(ob ToneObservation) {
	if ob.Symbol == NoSymbol {
		if sd.active && ob.Offset-sd.lastSight > sd.silenceTimeout {
			sd.abort()
		}
		return
	}

	if !sd.active {
		if ob.Symbol == sd.tailSym && ob.Offset-sd.tailSight <= sd.repeatSuppression {
			sd.tailSight = ob.Offset
			return
		}
		sd.begin(ob)
		return
	}

	last := sd.digits[len(sd.digits)-1]
	if ob.Symbol == last && ob.Offset-sd.lastSight <= sd.repeatSuppression {
		// Same tone still sounding. Refresh the timer, keep one digit.
		sd.lastSight = ob.Offset
		return
	}

	if ob.Offset-sd.lastSight > sd.maxGap {
		// Too late to belong to this call. The arriving tone starts a
		// fresh one.
		sd.abort()
		sd.begin(ob)
		return
	}

	sd.append(ob)
}

// ForceAbort discards any partial call, counting it as aborted. Used
// when the pipeline drains on shutdown so partials are never emitted.
func (sd *SequenceDecoder) ForceAbort() {
	if sd.active {
		sd.abort()
	}
}

func (sd *SequenceDecoder) begin(ob ToneObservation) {
	sd.active = true
	sd.tailSym = NoSymbol
	sd.start = ob.Offset
	sd.digits = append(sd.digits[:0], ob.Symbol)
	sd.energies = append(sd.energies[:0], ob.Energy)
	sd.lastSight = ob.Offset
}

func (sd *SequenceDecoder) append(ob ToneObservation) {
	sd.digits = append(sd.digits, ob.Symbol)
	sd.energies = append(sd.energies, ob.Energy)
	sd.lastSight = ob.Offset
	if len(sd.digits) < SequenceLength {
		return
	}

	sum := 0.0
	for _, e := range sd.energies {
		sum += e
	}
	rec := SequenceRecord{
		Code:       RenderDigits(sd.digits),
		Start:      sd.base.Add(sd.start),
		End:        sd.base.Add(ob.Offset),
		Confidence: sum / float64(len(sd.energies)),
	}
	last := sd.digits[len(sd.digits)-1]
	sd.reset()
	sd.tailSym = last
	sd.tailSight = ob.Offset
	if sd.onComplete != nil {
		sd.onComplete(rec)
	}
}

func (sd *SequenceDecoder) abort() {
	partial := RenderDigits(sd.digits)
	sd.reset()
	if sd.onAbort != nil {
		sd.onAbort(partial)
	}
}

func (sd *SequenceDecoder) reset() {
	sd.active = false
	sd.digits = sd.digits[:0]
	sd.energies = sd.energies[:0]
}
