package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/domain"
	"github.com/couchcryptid/dx-spot-relay/internal/notify"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	alertedAt := time.Date(2026, 10, 17, 12, 34, 56, 0, time.UTC)
	spot := domain.Spot{
		Callsign:     "W1XYZ",
		Spotter:      "K1ABC",
		FrequencyKHz: 14025,
		Band:         "20m",
		Mode:         domain.ModeCW,
		Comment:      "CW 14dB 20wpm",
		Time:         time.Date(2026, 10, 17, 12, 34, 0, 0, time.UTC),
		Raw:          "DX de K1ABC:    14025.0  W1XYZ        CW 14dB 20wpm      1234Z",
	}
	alert := notify.Alert{Text: domain.FormatAlert(spot), Spot: spot}

	msg, err := serializeToMessage(alert, alertedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("W1XYZ|20m|CW"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "band", msg.Headers[0].Key)
	assert.Equal(t, []byte("20m"), msg.Headers[0].Value)
	assert.Equal(t, "mode", msg.Headers[1].Key)
	assert.Equal(t, []byte("CW"), msg.Headers[1].Value)
	assert.Equal(t, "alerted_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2026-10-17T12:34:56Z"), msg.Headers[2].Value)

	var got AlertRecord
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	wantSpot := spot
	wantSpot.Raw = "" // the raw line stays out of the record
	want := AlertRecord{Key: "W1XYZ|20m|CW", Text: alert.Text, Spot: wantSpot, AlertedAt: alertedAt}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("alert record mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeToMessage_UnknownBandAndMode(t *testing.T) {
	spot := domain.Spot{Callsign: "K2ABC", FrequencyKHz: 5000, Band: domain.BandUnknown, Mode: domain.ModeUnknown}

	msg, err := serializeToMessage(notify.Alert{Spot: spot}, time.Unix(0, 0))
	require.NoError(t, err)

	assert.Equal(t, []byte("K2ABC|unknown|unknown"), msg.Key)
	assert.Contains(t, string(msg.Value), `"band":"unknown"`)
}
