package tempo_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"tempo/pkg/tempo"
)

func TestParseSpeed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    tempo.Speed
		wantErr bool
	}{
		{raw: "", want: tempo.SpeedNormal},
		{raw: "normal", want: tempo.SpeedNormal},
		{raw: " Fast ", want: tempo.SpeedFast},
		{raw: "SLOW", want: tempo.SpeedSlow},
		{raw: "0.25", want: 0.25},
		{raw: "3", want: 3},
		{raw: "0", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "1e6", want: tempo.MaxSpeed},
		{raw: "inf", wantErr: true},
		{raw: "+Inf", wantErr: true},
		{raw: "NaN", wantErr: true},
		{raw: "1e300", wantErr: true},
		{raw: "warp", wantErr: true},
	}
	for _, tt := range tests {
		got, err := tempo.ParseSpeed(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseSpeed(%q) = %v, want error", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSpeed(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSpeed(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	if _, err := tempo.ParseSpeed("-2"); !errors.Is(err, tempo.ErrInvalidSpeed) {
		t.Fatalf("negative speed error = %v, want ErrInvalidSpeed", err)
	}
}

func TestSpeedScaleUnscale(t *testing.T) {
	t.Parallel()
	d := ms(1000)
	for _, sp := range []tempo.Speed{tempo.SpeedNormal, tempo.SpeedFast, tempo.SpeedSlow, 1.5} {
		if got := sp.Unscale(sp.Scale(d)); got != d {
			t.Fatalf("%v: Unscale(Scale(%v)) = %v", sp, d, got)
		}
	}
	if got := tempo.SpeedFast.Scale(d); got != ms(500) {
		t.Fatalf("fast Scale = %v, want 500ms", got)
	}
	if got := tempo.MaxSpeed.Scale(time.Duration(math.MaxInt64 / 2)); got != time.Duration(math.MaxInt64) {
		t.Fatalf("Scale did not saturate: %v", got)
	}
	if got := tempo.Speed(1e-300).Unscale(time.Hour); got != time.Duration(math.MaxInt64) {
		t.Fatalf("Unscale did not saturate: %v", got)
	}
	if tempo.SpeedSlow.String() != "slow" || tempo.Speed(1.5).String() != "1.5" {
		t.Fatal("unexpected String()")
	}
}
