// Package domain models DX Cluster spot reports and the rules applied to them
// before an alert is raised.
//
// # Feed Line Grammars
//
// Cluster nodes emit spots in one of two layouts. The classic human-readable
// layout is what a node sends by default:
//
//	DX de K1ABC:     14025.0  W1XYZ        CW 14dB 20wpm          1234Z FN42
//	       │          │        │            │                      │     └ optional locator
//	       spotter    kHz      spotted call comment (free text)    HHMM UTC
//
// Nodes running CC Cluster or AR-Cluster accept "set/ve7cc 1" and switch to a
// caret-delimited machine layout:
//
//	CC11^14025.0^W1XYZ^17-Oct-2026^1234Z^CW 14dB 20wpm^K1ABC^...
//	     freq    call  date        time  comment       spotter
//
// Anything else (login prompts, announcements, WWV bulletins, talk lines) is
// not a spot and yields [ErrNotASpot]. Dropping such lines is the normal case.
//
// # Time
//
// Classic lines carry only HHMM. The date comes from the receipt time; when the
// combined value would land more than an hour in the future the spot was made
// before midnight UTC and the date steps back a day.
//
// # Bands and Modes
//
// Bands are derived from frequency using a fixed table covering the amateur
// allocations from 160m to 70cm (see [BandForFrequency]). Modes are guessed
// from the comment with a fixed vocabulary (see [ModeFromComment]). Both use
// the sentinel "unknown" instead of an empty value so filters and dedup keys
// never need a special case.
//
// # Deduplication Key
//
// [DedupKey] is (callsign, band, mode). Frequency is deliberately left out so
// a station drifting a few hundred hertz, or spotted by several skimmers at
// slightly different frequencies, still collapses into one alert.
package domain
