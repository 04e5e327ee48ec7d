package crypto

import (
	"regexp"
	"strings"
	"testing"
)

func TestHashAPIKeyDeterministic(t *testing.T) {
	if HashAPIKey("grag_test_key_12345") != HashAPIKey("grag_test_key_12345") {
		t.Fatalf("hashing the same key twice differs")
	}
	if HashAPIKey("grag_key_1") == HashAPIKey("grag_key_2") {
		t.Fatalf("different keys share a hash")
	}
}

func TestGenerateAPIKeyFormat(t *testing.T) {
	key, hash, prefix, errGenerate := GenerateAPIKey()
	if errGenerate != nil {
		t.Fatalf("generate failed: %v", errGenerate)
	}
	if !strings.HasPrefix(key, APIKeyPrefix) {
		t.Fatalf("key missing %q prefix: %q", APIKeyPrefix, key)
	}
	if !regexp.MustCompile(`^[a-f0-9]{64}$`).MatchString(hash) {
		t.Fatalf("hash is not 64 hex chars: %q", hash)
	}
	if prefix != key[:12] {
		t.Fatalf("prefix is not first 12 chars: %q", prefix)
	}
	if hash != HashAPIKey(key) {
		t.Fatalf("returned hash does not match HashAPIKey")
	}
}

func TestGenerateAPIKeyUnique(t *testing.T) {
	key1, _, _, errFirst := GenerateAPIKey()
	if errFirst != nil {
		t.Fatalf("generate failed: %v", errFirst)
	}
	key2, _, _, errSecond := GenerateAPIKey()
	if errSecond != nil {
		t.Fatalf("generate failed: %v", errSecond)
	}
	if key1 == key2 {
		t.Fatalf("two generated keys are identical")
	}
}
