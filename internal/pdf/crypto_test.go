package pdf

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindenau-systems/folio/internal/testutil"
)

func TestCredentials_Empty(t *testing.T) {
	assert.True(t, Credentials{}.Empty())
	assert.False(t, Credentials{UserPassword: "u"}.Empty())
	assert.False(t, Credentials{OwnerPassword: "o"}.Empty())
}

func TestIsEncrypted_PlainFile(t *testing.T) {
	path := testutil.WriteTestPDF(t, t.TempDir(), "plain.pdf", 2)

	encrypted, err := IsEncrypted(path)
	require.NoError(t, err)
	assert.False(t, encrypted)
}

func TestIsEncrypted_MissingFile(t *testing.T) {
	_, err := IsEncrypted("/nonexistent/file.pdf")
	assert.Error(t, err)
}

func TestUnlock_PlainFilePassesThrough(t *testing.T) {
	path := testutil.WriteTestPDF(t, t.TempDir(), "plain.pdf", 1)

	unlocked, cleanup, err := Unlock(path, Credentials{})
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	defer cleanup()

	assert.Equal(t, path, unlocked)

	// Passthrough cleanup must not delete the original.
	cleanup()
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestUnlock_MissingFile(t *testing.T) {
	_, cleanup, err := Unlock("/nonexistent/file.pdf", Credentials{})
	require.Error(t, err)
	require.NotNil(t, cleanup)
	cleanup()
}

func TestIsPasswordError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "encrypted marker", err: errors.New("pdfcpu: please provide the correct password: file encrypted"), want: true},
		{name: "password marker", err: errors.New("invalid user password"), want: true},
		{name: "decrypt marker", err: errors.New("unable to decrypt document"), want: true},
		{name: "authentication marker", err: errors.New("authentication failed"), want: true},
		{name: "mixed case", err: errors.New("PDF is ENCRYPTED"), want: true},
		{name: "unrelated error", err: errors.New("file not found"), want: false},
		{name: "parse failure", err: errors.New("xref table corrupt"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPasswordError(tt.err))
		})
	}
}
