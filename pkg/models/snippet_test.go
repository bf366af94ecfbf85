package models

import "testing"

func TestClampIntensity_TruncatesRatherThanRounds(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{4.9, 4}, // matches the original Python int() truncation, not rounding to 5
		{1.0, 1},
		{3.4, 3},
		{0.2, 1},  // below range clamps to 1
		{5.7, 5},  // above range clamps to 5
		{-2.0, 1}, // negative clamps to 1
	}
	for _, c := range cases {
		if got := ClampIntensity(c.in); got != c.want {
			t.Errorf("ClampIntensity(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestClamp01_BoundsToUnitInterval(t *testing.T) {
	if got := Clamp01(-0.5); got != 0 {
		t.Errorf("Clamp01(-0.5) = %v, want 0", got)
	}
	if got := Clamp01(1.5); got != 1 {
		t.Errorf("Clamp01(1.5) = %v, want 1", got)
	}
	if got := Clamp01(0.42); got != 0.42 {
		t.Errorf("Clamp01(0.42) = %v, want 0.42", got)
	}
}

func TestQualityScoreOf_WeightsIntensityConfidenceNovelty(t *testing.T) {
	got := QualityScoreOf(5, 1.0, 1.0)
	want := 0.4*1.0 + 0.4*1.0 + 0.2*1.0
	if got != want {
		t.Errorf("QualityScoreOf(5, 1.0, 1.0) = %v, want %v", got, want)
	}

	got = QualityScoreOf(1, 0.0, 0.0)
	if got != 0 {
		t.Errorf("QualityScoreOf(1, 0.0, 0.0) = %v, want 0", got)
	}
}
