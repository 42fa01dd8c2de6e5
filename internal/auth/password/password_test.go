package password

import (
	"errors"
	"testing"
)

func TestValidateOrdering(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"too short wins over missing classes", "ab1", ErrTooShort},
		{"short all digits still reports length", "1234567", ErrTooShort},
		{"no letter", "12345678", ErrNeedsLetter},
		{"no digit", "abcdefgh", ErrNeedsDigit},
		{"valid", "abcdefg1", nil},
		{"valid with symbols", "p@ssw0rd!", nil},
		{"unicode letters count", "pässwört1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.password)
			if !errors.Is(err, tt.want) && !(err == nil && tt.want == nil) {
				t.Fatalf("Validate(%q) = %v, want %v", tt.password, err, tt.want)
			}
		})
	}
}

func TestIsPolicyError(t *testing.T) {
	for _, err := range []error{ErrTooShort, ErrNeedsLetter, ErrNeedsDigit} {
		if !IsPolicyError(err) {
			t.Fatalf("expected %v to be a policy error", err)
		}
	}
	if IsPolicyError(errors.New("other")) {
		t.Fatal("unrelated error should not be a policy error")
	}
	if IsPolicyError(nil) {
		t.Fatal("nil should not be a policy error")
	}
}

func TestHashVerify(t *testing.T) {
	encoded, err := Hash("correct horse 1")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if !Verify("correct horse 1", encoded) {
		t.Fatal("expected matching password to verify")
	}
	if Verify("wrong password 1", encoded) {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("same password 1")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	b, err := Hash("same password 1")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password should differ")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	for _, encoded := range []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=65536,t=1$short",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA",
	} {
		if Verify("whatever1", encoded) {
			t.Fatalf("expected Verify to reject %q", encoded)
		}
	}
}
