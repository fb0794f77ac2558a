package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

const testSecret = "postgres://tracker:hunter2@db:5432/homeassistant"

func TestSecretString_Redaction(t *testing.T) {
	s := SecretString(testSecret)

	for name, got := range map[string]string{
		"String":    s.String(),
		"Sprintf_s": fmt.Sprintf("%s", s),
		"Sprintf_v": fmt.Sprintf("%v", s),
	} {
		if strings.Contains(got, testSecret) {
			t.Errorf("%s leaked the raw secret: %q", name, got)
		}
		if got != redactedPlaceholder {
			t.Errorf("%s = %q, want %q", name, got, redactedPlaceholder)
		}
	}
}

func TestSecretString_JSONInStruct(t *testing.T) {
	payload := struct {
		DatabaseURL SecretString `json:"database_url"`
		Port        string       `json:"port"`
	}{DatabaseURL: testSecret, Port: "8080"}

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if strings.Contains(string(b), testSecret) {
		t.Fatalf("JSON leaked the raw secret: %s", b)
	}
	want := `{"database_url":"***REDACTED***","port":"8080"}`
	if string(b) != want {
		t.Errorf("JSON = %s, want %s", b, want)
	}
}

func TestSecretString_Unmask(t *testing.T) {
	if got := SecretString(testSecret).Unmask(); got != testSecret {
		t.Errorf("Unmask() = %q, want raw value", got)
	}
}

func TestSecretString_IsEmpty(t *testing.T) {
	if !SecretString("").IsEmpty() {
		t.Error("empty secret should report IsEmpty")
	}
	if SecretString("x").IsEmpty() {
		t.Error("non-empty secret should not report IsEmpty")
	}
}
