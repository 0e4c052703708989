package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   8,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("correct horse", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("correct horsE", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched input to fail")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	hasher, _ := NewArgon2(fastConfig())

	a, _ := hasher.Hash("same-input-value")
	b, _ := hasher.Hash("same-input-value")
	if a == b {
		t.Fatal("expected distinct hashes for repeated input")
	}
}

func TestHashRejectsShortInput(t *testing.T) {
	hasher, _ := NewArgon2(fastConfig())

	if _, err := hasher.Hash("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher, _ := NewArgon2(fastConfig())

	cases := []string{
		"",
		"plain",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$aGFzaGhhc2hoYXNoaGFzaA",
	}
	for _, encoded := range cases {
		if _, err := hasher.Verify("whatever-input", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("Verify(%q): expected ErrMalformedHash, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, _ := NewArgon2(fastConfig())
	hash, err := weak.Hash("rehash-candidate")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	strong, _ := NewArgon2(stronger)

	if need, err := strong.NeedsRehash(hash); err != nil || !need {
		t.Fatalf("expected rehash for weaker hash, need=%v err=%v", need, err)
	}
	if need, err := weak.NeedsRehash(hash); err != nil || need {
		t.Fatalf("expected no rehash for current params, need=%v err=%v", need, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}

	cfg = fastConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt config to be rejected")
	}
}
