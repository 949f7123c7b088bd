package domain

import "time"

// Spot is a parsed report that a station was heard on a frequency.
// Values are produced by ParseSpot and never modified afterwards.
type Spot struct {
	Callsign     string    `json:"callsign"`
	Spotter      string    `json:"spotter"`
	FrequencyKHz float64   `json:"frequency_khz"`
	Band         Band      `json:"band"`
	Mode         Mode      `json:"mode"`
	Comment      string    `json:"comment,omitempty"`
	Locator      string    `json:"locator,omitempty"`
	Time         time.Time `json:"time"`

	Raw string `json:"-"`
}

// DedupKey identifies alerts that should be suppressed as repeats of each other.
type DedupKey struct {
	Callsign string
	Band     Band
	Mode     Mode
}

// String renders the key as "CALL|band|MODE".
func (k DedupKey) String() string {
	return k.Callsign + "|" + string(k.Band) + "|" + string(k.Mode)
}

// DedupKey returns the key used by the dedup cache for this spot.
func (s Spot) DedupKey() DedupKey {
	return DedupKey{Callsign: s.Callsign, Band: s.Band, Mode: s.Mode}
}
