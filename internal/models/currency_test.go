package models

import "testing"

func TestValidCurrencyCode(t *testing.T) {
	valid := []string{"EUR", "USD", "ZAR"}
	for _, code := range valid {
		if !ValidCurrencyCode(code) {
			t.Errorf("ValidCurrencyCode(%q) = false, want true", code)
		}
	}

	invalid := []string{"", "EU", "EURO", "eur", "E1R", "eU R"}
	for _, code := range invalid {
		if ValidCurrencyCode(code) {
			t.Errorf("ValidCurrencyCode(%q) = true, want false", code)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got := NormalizeCurrency(" eur "); got != "EUR" {
		t.Errorf("NormalizeCurrency = %q, want EUR", got)
	}
}

func TestCurrencyNameAndSymbol(t *testing.T) {
	if got := CurrencyName("EUR"); got != "Euro" {
		t.Errorf("CurrencyName(EUR) = %q", got)
	}
	if got := CurrencySymbol("GBP"); got != "£" {
		t.Errorf("CurrencySymbol(GBP) = %q", got)
	}
	// Unknown codes fall back to the code itself.
	if got := CurrencyName("XXX"); got != "XXX" {
		t.Errorf("CurrencyName(XXX) = %q", got)
	}
}

func TestProvenanceIsValid(t *testing.T) {
	for _, p := range []Provenance{ProvenanceIdentity, ProvenanceFrozen, ProvenanceInterpolated, ProvenanceCurrent, ProvenanceFallback} {
		if !p.IsValid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if Provenance("guessed").IsValid() {
		t.Error("unknown provenance should be invalid")
	}
}
