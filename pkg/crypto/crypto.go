package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

const ivSize = aes.BlockSize

// EncryptMessage encrypts plaintext with AES-CTR and returns "ivHex:cipherHex".
// A fresh random IV is generated per message and prefixed to the ciphertext.
func EncryptMessage(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, []byte(plaintext))

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptMessage reverses EncryptMessage. Values that do not match the stored
// "ivHex:cipherHex" format are treated as legacy plaintext and returned unchanged.
func DecryptMessage(value string, key []byte) (string, error) {
	ivHex, cipherHex, ok := strings.Cut(value, ":")
	if !ok {
		return value, nil
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != ivSize {
		return value, nil
	}

	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil {
		return value, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	return string(plaintext), nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
