package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitiveString_String(t *testing.T) {
	t.Run("Should redact non-empty values", func(t *testing.T) {
		s := SensitiveString("secret-password-123")
		assert.Equal(t, "[REDACTED]", s.String())
	})

	t.Run("Should return empty string for empty values", func(t *testing.T) {
		s := SensitiveString("")
		assert.Equal(t, "", s.String())
	})
}

func TestSensitiveString_Value(t *testing.T) {
	t.Run("Should return actual value", func(t *testing.T) {
		secret := "my-secret-api-key"
		s := SensitiveString(secret)
		assert.Equal(t, secret, s.Value())
	})
}

func TestSensitiveString_MarshalJSON(t *testing.T) {
	t.Run("Should marshal as redacted string", func(t *testing.T) {
		type testStruct struct {
			Token SensitiveString `json:"token"`
			Name  string          `json:"name"`
		}

		data, err := json.Marshal(testStruct{
			Token: SensitiveString("secret-key-123"),
			Name:  "castnote",
		})
		require.NoError(t, err)

		var result map[string]string
		require.NoError(t, json.Unmarshal(data, &result))

		assert.Equal(t, "[REDACTED]", result["token"])
		assert.Equal(t, "castnote", result["name"])
	})

	t.Run("Should round-trip the raw value through UnmarshalJSON", func(t *testing.T) {
		var s SensitiveString
		require.NoError(t, json.Unmarshal([]byte(`"tok-42"`), &s))
		assert.Equal(t, "tok-42", s.Value())
	})
}
