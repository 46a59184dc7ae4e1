package password

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	encoded, err := hasher.Hash("Aa1$aa")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	ok, err := hasher.Verify("Aa1$aa", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}

	ok, err = hasher.Verify("wrong", encoded)
	if err != nil {
		t.Fatalf("Verify(wrong) error: %v", err)
	}
	if ok {
		t.Fatal("Verify accepted a wrong password")
	}
}

func TestHashSaltsDiffer(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())

	a, err := hasher.Hash("Secret#1x")
	if err != nil {
		t.Fatal(err)
	}
	b, err := hasher.Hash("Secret#1x")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestEmptyPasswordRejected(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())
	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, _ := NewArgon2(testConfig())
	encoded, err := weak.Hash("Secret#1x")
	if err != nil {
		t.Fatal(err)
	}

	strongCfg := testConfig()
	strongCfg.Memory = 64 * 1024
	strong, _ := NewArgon2(strongCfg)

	up, err := strong.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !up {
		t.Fatal("expected upgrade for weaker hash")
	}

	up, err = weak.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if up {
		t.Fatal("unexpected upgrade for same-cost hash")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())
	for _, bad := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		if _, err := hasher.Verify("x", bad); err == nil {
			t.Fatalf("Verify accepted malformed hash %q", bad)
		}
	}
}

func TestConfigFloor(t *testing.T) {
	bad := testConfig()
	bad.Memory = 1024
	if _, err := NewArgon2(bad); err == nil {
		t.Fatal("expected error for sub-floor memory")
	}
}
