package token

import (
	"testing"
	"time"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret")

	dates := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 13, 45, 12, 0, time.UTC),
		time.Now().Truncate(time.Second),
	}

	for _, d := range dates {
		tok := codec.Mint("AL-2025-0007", d)
		if !codec.Verify("AL-2025-0007", d, tok) {
			t.Fatalf("Verify failed for own minted token at %v", d)
		}
	}
}

func TestVerifyRejectsMutatedToken(t *testing.T) {
	codec := NewCodec("test-secret")
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tok := codec.Mint("AL-2025-0001", issued)

	for i := 0; i < len(tok); i++ {
		mutated := []byte(tok)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		if codec.Verify("AL-2025-0001", issued, string(mutated)) {
			t.Fatalf("Verify accepted token mutated at position %d", i)
		}
	}
}

func TestVerifyRejectsEmptyAndForeignToken(t *testing.T) {
	codec := NewCodec("test-secret")
	other := NewCodec("other-secret")
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	if codec.Verify("AL-2025-0001", issued, "") {
		t.Fatal("Verify accepted empty token")
	}
	if codec.Verify("AL-2025-0001", issued, "not-a-token") {
		t.Fatal("Verify accepted malformed token")
	}
	if codec.Verify("AL-2025-0001", issued, other.Mint("AL-2025-0001", issued)) {
		t.Fatal("Verify accepted token minted under a different secret")
	}
}

func TestMintIsStableAndBoundToInputs(t *testing.T) {
	codec := NewCodec("test-secret")
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	a := codec.Mint("AL-2025-0001", issued)
	b := codec.Mint("AL-2025-0001", issued)
	if a != b {
		t.Fatalf("Mint is not deterministic: %s != %s", a, b)
	}

	if codec.Mint("AL-2025-0002", issued) == a {
		t.Fatal("tokens for different codes must differ")
	}
	if codec.Mint("AL-2025-0001", issued.Add(time.Second)) == a {
		t.Fatal("tokens for different issue dates must differ")
	}
}
