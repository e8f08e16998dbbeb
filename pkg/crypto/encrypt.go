package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Шифрование токена сессии для хранения в локальном кэше.
//
// Токен - bearer-доступ к торговому аккаунту, поэтому на диске он лежит
// только в зашифрованном виде: AES-256-GCM, ключ выводится из секрета
// конфигурации через scrypt

// Ошибки шифрования
var (
	ErrEmptySecret        = errors.New("encryption secret cannot be empty")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrDecryptionFailed   = errors.New("decryption failed: authentication error")
)

// Параметры scrypt. N=32768 - баланс стойкости и времени старта демона
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
	keyLen  = 32 // AES-256
	saltLen = 16
)

// DeriveKey выводит 32-байтовый AES ключ из секрета и соли
func DeriveKey(secret string, salt []byte) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, keyLen)
}

// Seal шифрует plaintext секретом конфигурации.
// Формат результата: base64(salt || nonce || ciphertext+tag)
func Seal(plaintext, secret string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key, err := DeriveKey(secret, salt)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// GCM добавляет аутентификационный тег автоматически
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, saltLen+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open расшифровывает результат Seal
func Open(encoded, secret string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < saltLen {
		return "", ErrCiphertextTooShort
	}

	salt, rest := raw[:saltLen], raw[saltLen:]
	key, err := DeriveKey(secret, salt)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
