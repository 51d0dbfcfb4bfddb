package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(seed byte) []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	return raw
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()
	box, err := New(testKey(1))
	require.NoError(t, err)

	msg := "BQDx-spotify-access ✓ secreto"
	ct, err := box.Encrypt(msg)
	require.NoError(t, err)
	require.NotContains(t, ct, msg)

	pt, err := box.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, msg, pt)
}

func TestEncrypt_NonceIsRandom(t *testing.T) {
	t.Parallel()
	box, err := New(testKey(7))
	require.NoError(t, err)

	a, err := box.Encrypt("same")
	require.NoError(t, err)
	b, err := box.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	t.Parallel()
	box, err := New(testKey(200))
	require.NoError(t, err)

	ct, err := box.Encrypt("top secret")
	require.NoError(t, err)
	parts := strings.Split(ct, "|")
	require.Len(t, parts, 2)

	bs, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	bs[0] ^= 0xFF
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)

	_, err = box.Decrypt(tampered)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()
	a, err := New(testKey(1))
	require.NoError(t, err)
	b, err := New(testKey(2))
	require.NoError(t, err)

	ct, err := a.Encrypt("x")
	require.NoError(t, err)
	_, err = b.Decrypt(ct)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecrypt_BadFormat(t *testing.T) {
	t.Parallel()
	box, err := New(testKey(3))
	require.NoError(t, err)

	_, err = box.Decrypt("no-separator")
	require.ErrorIs(t, err, ErrInvalidFormat)

	_, err = box.Decrypt("!!!|AAAA")
	require.Error(t, err)
}

func TestFromString_Encodings(t *testing.T) {
	t.Parallel()
	raw := testKey(9)

	for name, key := range map[string]string{
		"base64":     base64.StdEncoding.EncodeToString(raw),
		"base64-raw": base64.RawStdEncoding.EncodeToString(raw),
		"hex":        hex.EncodeToString(raw),
	} {
		box, err := FromString(key)
		require.NoError(t, err, name)
		ct, err := box.Encrypt("v")
		require.NoError(t, err, name)

		ref, err := New(raw)
		require.NoError(t, err)
		pt, err := ref.Decrypt(ct)
		require.NoError(t, err, name)
		require.Equal(t, "v", pt, name)
	}

	_, err := FromString("   ")
	require.ErrorIs(t, err, ErrKeyMissing)

	_, err = FromString("short")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()
	k, err := GenerateKey()
	require.NoError(t, err)
	_, err = FromString(k)
	require.NoError(t, err)
}
