package utils

import "testing"

func TestCoerceAmount(t *testing.T) {
	cases := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{nil, 0, false},
		{float64(500), 500, false},
		{int64(42), 42, false},
		{7, 7, false},
		{"120", 120, false},
		{float64(10.5), 0, true},
		{"abc", 0, true},
		{true, 0, true},
	}
	for _, c := range cases {
		got, err := CoerceAmount(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("CoerceAmount(%v) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if !c.wantErr && got != c.want {
			t.Errorf("CoerceAmount(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCoerceNumber(t *testing.T) {
	got, err := CoerceNumber("10.25")
	if err != nil || got != 10.25 {
		t.Errorf("CoerceNumber(\"10.25\") = %v, %v", got, err)
	}
	if _, err := CoerceNumber([]string{"x"}); err == nil {
		t.Error("CoerceNumber accepted a slice")
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		1.005:   1.01,
		2.675:   2.68,
		-1.2349: -1.23,
		6000:    6000,
	}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}
