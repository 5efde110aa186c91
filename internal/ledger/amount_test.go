package ledger

import (
	"errors"
	"math/big"
	"math/rand"
	"strings"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		raw      string
		decimals int
		want     string
	}{
		{"", 18, "0"},
		{"0", 18, "0"},
		{"1000000000000000000", 18, "1"},
		{"1500000000000000000", 18, "1.5"},
		{"1", 18, "0.000000000000000001"},
		{"500000000", 6, "500"},
		{"123456789", 6, "123.456789"},
		{"42", 0, "42"},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", 18,
			"115792089237316195423570985008687907853269984665640564039457.584007913129639935"},
	}
	for _, tc := range cases {
		got, err := FormatUnits(tc.raw, tc.decimals)
		if err != nil {
			t.Fatalf("FormatUnits(%q, %d): %v", tc.raw, tc.decimals, err)
		}
		if got != tc.want {
			t.Errorf("FormatUnits(%q, %d) = %q, want %q", tc.raw, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatUnitsMalformed(t *testing.T) {
	for _, raw := range []string{"abc", "1.5", "-10", "0x10"} {
		if _, err := FormatUnits(raw, 18); !errors.Is(err, ErrMalformedAmount) {
			t.Errorf("FormatUnits(%q) error = %v, want ErrMalformedAmount", raw, err)
		}
	}
}

func TestDecimalsOutOfRange(t *testing.T) {
	for _, decimals := range []int{-1, MaxDecimals + 1, 300000000} {
		if _, err := FormatUnits("7", decimals); !errors.Is(err, ErrMalformedAmount) {
			t.Errorf("FormatUnits decimals=%d error = %v, want ErrMalformedAmount", decimals, err)
		}
		if _, err := ParseUnits("7", decimals); !errors.Is(err, ErrMalformedAmount) {
			t.Errorf("ParseUnits decimals=%d error = %v, want ErrMalformedAmount", decimals, err)
		}
		if _, err := Fee("1", "1", decimals); !errors.Is(err, ErrMalformedAmount) {
			t.Errorf("Fee decimals=%d error = %v, want ErrMalformedAmount", decimals, err)
		}
	}

	got, err := FormatUnits("7", MaxDecimals)
	if err != nil {
		t.Fatalf("FormatUnits at MaxDecimals: %v", err)
	}
	if want := "0." + strings.Repeat("0", MaxDecimals-1) + "7"; got != want {
		t.Fatalf("FormatUnits at MaxDecimals = %q", got)
	}
}

func TestFee(t *testing.T) {
	fee, err := Fee("20000000000", "21000", 18)
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee != "0.00042" {
		t.Fatalf("expected 0.00042, got %s", fee)
	}

	for _, pair := range [][2]string{{"", "21000"}, {"20000000000", ""}} {
		fee, err := Fee(pair[0], pair[1], 18)
		if err != nil || fee != "0" {
			t.Errorf("Fee(%q, %q) = %q, %v; want 0", pair[0], pair[1], fee, err)
		}
	}

	if _, err := Fee("twenty", "21000", 18); !errors.Is(err, ErrMalformedAmount) {
		t.Fatalf("expected malformed gas price error, got %v", err)
	}
}

func TestFormatUnitsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(40), nil)
	values := []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(10), new(big.Int).Set(limit)}
	for range 200 {
		values = append(values, new(big.Int).Rand(rng, limit))
	}

	for _, value := range values {
		for decimals := 0; decimals <= 18; decimals++ {
			text, err := FormatUnits(value.String(), decimals)
			if err != nil {
				t.Fatalf("format %s/%d: %v", value, decimals, err)
			}
			back, err := ParseUnits(text, decimals)
			if err != nil {
				t.Fatalf("parse %q/%d: %v", text, decimals, err)
			}
			if back.Cmp(value) != 0 {
				t.Fatalf("round trip %s with %d decimals gave %s via %q", value, decimals, back, text)
			}
		}
	}
}

func TestParseUnitsRejectsExcessPrecision(t *testing.T) {
	if _, err := ParseUnits("1.1234567", 6); !errors.Is(err, ErrMalformedAmount) {
		t.Fatalf("expected ErrMalformedAmount, got %v", err)
	}
}
