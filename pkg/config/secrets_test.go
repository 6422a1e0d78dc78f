package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSecretsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant-test",
		"OPENAI_API_KEY":    "sk-test",
	}

	if err := EncryptSecretsFile(dir, "correct horse", secrets); err != nil {
		t.Fatalf("EncryptSecretsFile failed: %v", err)
	}
	if !SecretsFileExists(dir) {
		t.Fatal("Expected secrets file to exist")
	}

	decrypted, err := DecryptSecretsFile(dir, "correct horse")
	if err != nil {
		t.Fatalf("DecryptSecretsFile failed: %v", err)
	}
	if decrypted["ANTHROPIC_API_KEY"] != "sk-ant-test" {
		t.Errorf("Expected secret preserved, got %q", decrypted["ANTHROPIC_API_KEY"])
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	dir := t.TempDir()
	if err := EncryptSecretsFile(dir, "right", map[string]string{"K": "v"}); err != nil {
		t.Fatalf("EncryptSecretsFile failed: %v", err)
	}

	_, err := DecryptSecretsFile(dir, "wrong")
	if err == nil || !strings.Contains(err.Error(), "decryption failed") {
		t.Errorf("Expected decryption failure, got %v", err)
	}
}

func TestSecretsFilePermissions(t *testing.T) {
	dir := t.TempDir()
	if err := EncryptSecretsFile(dir, "pw", map[string]string{"K": "v"}); err != nil {
		t.Fatalf("EncryptSecretsFile failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, UserConfigDir, secretsFileName))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %04o", info.Mode().Perm())
	}
}

func TestDecryptRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, UserConfigDir, secretsFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := DecryptSecretsFile(dir, "pw")
	if err == nil || !strings.Contains(err.Error(), "corrupted") {
		t.Errorf("Expected corruption error, got %v", err)
	}
}

func TestGetSecretPrecedence(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	t.Setenv("TUTOR_SECRET_TEST", "from-env")
	SetDecryptedSecrets(map[string]string{"TUTOR_SECRET_TEST": "from-file"})

	value, err := GetSecret("TUTOR_SECRET_TEST")
	if err != nil {
		t.Fatalf("GetSecret failed: %v", err)
	}
	if value != "from-file" {
		t.Errorf("Expected secrets file to win over env, got %q", value)
	}

	SetDecryptedSecrets(nil)
	value, err = GetSecret("TUTOR_SECRET_TEST")
	if err != nil {
		t.Fatalf("GetSecret failed: %v", err)
	}
	if value != "from-env" {
		t.Errorf("Expected env fallback, got %q", value)
	}
}

func TestGetSecretMissing(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })
	SetDecryptedSecrets(nil)

	_, err := GetSecret("TUTOR_DEFINITELY_MISSING_SECRET")
	if err == nil {
		t.Error("Expected error for missing secret")
	}
}
