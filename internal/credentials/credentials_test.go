package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/docloader/internal/config"
	"github.com/timmy/docloader/internal/domain"
)

func TestFromConfig_NotRequired(t *testing.T) {
	creds, err := FromConfig(config.IndexConfig{Username: "ignored"}).Credentials()
	require.NoError(t, err)
	assert.True(t, creds.IsZero())
}

func TestFromConfig_Required(t *testing.T) {
	creds, err := FromConfig(config.IndexConfig{
		CredentialsRequired: true,
		Username:            "elastic",
		Password:            "changeme",
	}).Credentials()
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "elastic", Password: "changeme"}, creds)
}

func TestFromConfig_RequiredButMissing(t *testing.T) {
	_, err := FromConfig(config.IndexConfig{CredentialsRequired: true, Username: "elastic"}).Credentials()
	assert.ErrorIs(t, err, domain.ErrCredentialsRequired)
}

func TestStatic(t *testing.T) {
	creds, err := Static{Username: "u", Password: "p"}.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "u", creds.Username)
	assert.False(t, creds.IsZero())
}
