// Package secretbox cifra tokens de terceros en reposo (AES-256-GCM).
//
// Formato del texto cifrado: base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	EnvVar            = "SECRETBOX_MASTER_KEY"
	nonceSizeGCM      = 12  // AES-GCM nonce size recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var (
	ErrKeyMissing    = fmt.Errorf("%s no seteada; genere una clave con: openssl rand -base64 32", EnvVar)
	ErrInvalidKey    = errors.New("secretbox: clave inválida")
	ErrInvalidFormat = errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	ErrDecrypt       = errors.New("secretbox: gcm auth/decrypt")
)

// Box guarda el AEAD ya inicializado. Es seguro para uso concurrente.
type Box struct {
	aead cipher.AEAD
}

// New crea un Box a partir de una clave cruda de 32 bytes.
func New(key []byte) (*Box, error) {
	if len(key) != requiredKeyLength {
		return nil, fmt.Errorf("%w: %d bytes (requiere %d)", ErrInvalidKey, len(key), requiredKeyLength)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aesgcm}, nil
}

// FromString acepta la clave en base64 (std o raw), hex (64 chars) o cruda.
func FromString(key string) (*Box, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrKeyMissing
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return New(b)
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return New(b)
	}
	if len(key) == 64 {
		if h, err := hex.DecodeString(key); err == nil {
			return New(h)
		}
	}
	return New([]byte(key))
}

// FromEnv lee SECRETBOX_MASTER_KEY.
func FromEnv() (*Box, error) {
	return FromString(os.Getenv(EnvVar))
}

// GenerateKey devuelve una clave nueva en base64 (cmd keygen).
func GenerateKey() (string, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return "", fmt.Errorf("key random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Encrypt(plainText string) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
func (b *Box) Decrypt(cipherText string) (string, error) {
	parts := strings.Split(cipherText, sep)
	if len(parts) != 2 {
		return "", ErrInvalidFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}
	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(pt), nil
}
