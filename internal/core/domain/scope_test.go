package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityScope_Keys(t *testing.T) {
	scope := IdentityScope{
		CloudName: "microsoft",
		ClientID:  "client-123",
		Authority: "common",
	}

	assert.Equal(t, "accounts-microsoft", scope.CurrentKey())
	assert.Equal(t, "accounts-microsoft-client-123-common", scope.LegacyKey())
}

func TestIdentityScope_StorageKeys_CurrentFirst(t *testing.T) {
	scope := IdentityScope{CloudName: "sovereign", ClientID: "c", Authority: "a"}

	keys := scope.StorageKeys()

	require.Len(t, keys, 2)
	assert.Equal(t, scope.CurrentKey(), keys[0])
	assert.Equal(t, scope.LegacyKey(), keys[1])
}

func TestIdentityScope_Validate(t *testing.T) {
	valid := IdentityScope{CloudName: "microsoft", ClientID: "c", Authority: "a"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		scope IdentityScope
	}{
		{"missing cloud", IdentityScope{ClientID: "c", Authority: "a"}},
		{"missing client", IdentityScope{CloudName: "m", Authority: "a"}},
		{"missing authority", IdentityScope{CloudName: "m", ClientID: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.scope.Validate(), ErrInvalidInput)
		})
	}
}
