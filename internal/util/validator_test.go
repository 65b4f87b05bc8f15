package util

import "testing"

func TestValidateEmail(t *testing.T) {
	for email, ok := range map[string]bool{
		"ana@painel.local":       true,
		" ana@painel.local ":     true,
		"":                       false,
		"sem-arroba":             false,
		"Ana <ana@painel.local>": false,
	} {
		if err := ValidateEmail(email); (err == nil) != ok {
			t.Fatalf("ValidateEmail(%q) = %v", email, err)
		}
	}
}

func TestValidateIDNumber(t *testing.T) {
	for id, ok := range map[string]bool{
		"A-1":        true,
		"2024.0001":  true,
		" ":          false,
		"com espaço": false,
		"x/y":        false,
		"123456789012345678901234567890123": false,
	} {
		if err := ValidateIDNumber(id); (err == nil) != ok {
			t.Fatalf("ValidateIDNumber(%q) = %v", id, err)
		}
	}
}

func TestValidatePasswordCountsRunes(t *testing.T) {
	if err := ValidatePassword("çãõé"); err == nil {
		t.Fatal("four runes must be rejected")
	}
	if err := ValidatePassword("çãõéçãõé"); err != nil {
		t.Fatalf("eight runes must pass: %v", err)
	}
}
