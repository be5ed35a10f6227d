package utils

import "testing"

func TestValidOTPCode(t *testing.T) {
	cases := map[string]bool{
		"1234":  true,
		"0000":  true,
		"123":   false,
		"12345": false,
		"12a4":  false,
		"":      false,
	}
	for code, want := range cases {
		if got := ValidOTPCode(code); got != want {
			t.Errorf("ValidOTPCode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+44 (20) 7946-0958": "+442079460958",
		"020.7946.0958":      "02079460958",
		"12345":              "",
		"0800-PIZZA":         "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "+442079460958", RoleCustomer, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	sub, role, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if sub != "+442079460958" || role != RoleCustomer {
		t.Fatalf("got sub=%q role=%q", sub, role)
	}
	if _, _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pepperoni", 4)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(hash, "pepperoni") || VerifyPassword(hash, "anchovy") {
		t.Fatal("VerifyPassword mismatch")
	}
}
