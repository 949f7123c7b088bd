package domain

import "strings"

// Mode is an operating mode such as "CW" or "FT8".
type Mode string

// Known modes.
const (
	ModeUnknown Mode = "unknown"
	ModeCW      Mode = "CW"
	ModeSSB     Mode = "SSB"
	ModeFT8     Mode = "FT8"
	ModeFT4     Mode = "FT4"
	ModeRTTY    Mode = "RTTY"
	ModePSK     Mode = "PSK"
)

// modeVocabulary is searched in order; the first token found in the comment wins.
// Digital modes come first because skimmer comments such as "FT8 -12 dB" never
// mention CW, while CW comments rarely contain a digital mode name.
var modeVocabulary = []struct {
	token string
	mode  Mode
}{
	{"FT8", ModeFT8},
	{"FT4", ModeFT4},
	{"RTTY", ModeRTTY},
	{"PSK", ModePSK},
	{"CW", ModeCW},
	{"SSB", ModeSSB},
	{"USB", ModeSSB},
	{"LSB", ModeSSB},
}

// ModeFromComment extracts the operating mode from a free-text spot comment
// using a case-insensitive substring search. It returns ModeUnknown when no
// known mode is mentioned.
func ModeFromComment(comment string) Mode {
	upper := strings.ToUpper(comment)
	for _, v := range modeVocabulary {
		if strings.Contains(upper, v.token) {
			return v.mode
		}
	}
	return ModeUnknown
}
