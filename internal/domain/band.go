package domain

import "strings"

// Band is a named amateur radio allocation such as "20m".
type Band string

// BandUnknown is returned for frequencies outside every known allocation.
const BandUnknown Band = "unknown"

// bandRange is an inclusive frequency range in kHz.
type bandRange struct {
	name     Band
	from, to float64
}

// bandTable uses the widest edges across the three IARU regions so a spot is
// classified the same way whichever region the spotter is in.
var bandTable = []bandRange{
	{"160m", 1800, 2000},
	{"80m", 3500, 4000},
	{"60m", 5250, 5450},
	{"40m", 7000, 7300},
	{"30m", 10100, 10150},
	{"20m", 14000, 14350},
	{"17m", 18068, 18168},
	{"15m", 21000, 21450},
	{"12m", 24890, 24990},
	{"10m", 28000, 29700},
	{"6m", 50000, 54000},
	{"4m", 70000, 71000},
	{"2m", 144000, 148000},
	{"70cm", 420000, 450000},
}

// BandForFrequency returns the band containing the frequency, or BandUnknown.
func BandForFrequency(khz float64) Band {
	for _, b := range bandTable {
		if khz >= b.from && khz <= b.to {
			return b.name
		}
	}
	return BandUnknown
}

// KnownBand reports whether name is a band in the table, ignoring case.
func KnownBand(name string) bool {
	for _, b := range bandTable {
		if strings.EqualFold(string(b.name), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
