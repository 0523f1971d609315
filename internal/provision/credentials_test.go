package provision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCredentials(t *testing.T) {
	creds, err := NewCredentials("foo.example.com")
	require.NoError(t, err)

	assert.Equal(t, "cp_foo_example_com", creds.Name)
	assert.Equal(t, "cp_foo_example_com", creds.User)
	assert.GreaterOrEqual(t, len(creds.Password), 24)

	other, err := NewCredentials("foo.example.com")
	require.NoError(t, err)
	assert.NotEqual(t, creds.Password, other.Password)
}

func TestDatabaseIdentifier(t *testing.T) {
	assert.Equal(t, "cp_foo_example_com", databaseIdentifier("foo.example.com"))
	assert.Equal(t, "cp_my_site_co_uk", databaseIdentifier("My-Site.co.uk"))

	long := databaseIdentifier("a-very-long-subdomain.some-long-domain.example.com")
	assert.LessOrEqual(t, len(long), maxIdentifierLen)
	assert.True(t, strings.HasPrefix(long, "cp_"))
}
