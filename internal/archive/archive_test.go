package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p, err := SaveLocal(dir, "doc.md", []byte("# hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "# hello", string(data))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("markdown with secrets")

	sealed, err := Encrypt(plain, "hunter2")
	require.NoError(t, err)
	require.NotEqual(t, plain, sealed)

	opened, err := Decrypt(sealed, "hunter2")
	require.NoError(t, err)
	require.Equal(t, plain, opened)
}

func TestDecryptWrongPassword(t *testing.T) {
	sealed, err := Encrypt([]byte("data"), "right")
	require.NoError(t, err)

	_, err = Decrypt(sealed, "wrong")
	require.Error(t, err)
}

func TestDecryptRejectsPlainData(t *testing.T) {
	_, err := Decrypt([]byte("just some markdown"), "pw")
	require.Error(t, err)
}

func TestEncryptProducesUniqueOutput(t *testing.T) {
	a, err := Encrypt([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), "pw")
	require.NoError(t, err)
	// Fresh salt and nonce per call.
	require.NotEqual(t, a, b)
}
