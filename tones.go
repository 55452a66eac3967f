package main

// ToneSymbol is one of the sixteen ZVEI/CCIR five-tone digits (0-9, A-F).
type ToneSymbol int

// NoSymbol marks an observation where no tone could be identified.
const NoSymbol ToneSymbol = -1

// NumTones is the size of the ZVEI/CCIR alphabet.
const NumTones = 16

// toneFrequencies maps each symbol to its reference audio frequency in Hz.
// The table is fixed by the ZVEI/CCIR standard and never mutated at runtime.
var toneFrequencies = [NumTones]float64{
	2400, // 0
	1060, // 1
	1160, // 2
	1270, // 3
	1400, // 4
	1530, // 5
	1670, // 6
	1830, // 7
	2000, // 8
	2200, // 9
	2800, // A
	810,  // B
	970,  // C
	885,  // D
	2600, // E (repeat tone)
	680,  // F
}

var symbolRunes = [NumTones]byte{
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', 'A', 'B', 'C', 'D', 'E', 'F',
}

// Valid reports whether s is one of the sixteen defined symbols.
func (s ToneSymbol) Valid() bool {
	return s >= 0 && s < NumTones
}

// Frequency returns the reference frequency for the symbol in Hz.
// It panics on an invalid symbol; callers check Valid first.
func (s ToneSymbol) Frequency() float64 {
	return toneFrequencies[s]
}

func (s ToneSymbol) String() string {
	if !s.Valid() {
		return "-"
	}
	return string(symbolRunes[s])
}

// SymbolForFrequency returns the symbol whose reference frequency lies
// within toleranceHz of freq, or NoSymbol if none matches. The closest
// match wins when tolerances overlap.
func SymbolForFrequency(freq, toleranceHz float64) ToneSymbol {
	best := NoSymbol
	bestDiff := toleranceHz
	for i, ref := range toneFrequencies {
		diff := freq - ref
		if diff < 0 {
			diff = -diff
		}
		if diff <= bestDiff {
			best = ToneSymbol(i)
			bestDiff = diff
		}
	}
	return best
}

// RenderDigits formats a digit buffer as the fixed-width code string
// used in emitted records and log lines (e.g. "12345").
func RenderDigits(digits []ToneSymbol) string {
	buf := make([]byte, len(digits))
	for i, d := range digits {
		if d.Valid() {
			buf[i] = symbolRunes[d]
		} else {
			buf[i] = '?'
		}
	}
	return string(buf)
}
