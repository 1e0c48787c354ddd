package crypter

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
)

// Crypter 对称加解密接口
type Crypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// DeriveKey 由任意长度的密钥串派生 32 字节的 AES-256 密钥
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// EncryptString 加密字符串并以 base64 输出
func EncryptString(c Crypter, plaintext string) (string, error) {
	ciphertext, err := c.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString 解密 EncryptString 的输出
func DecryptString(c Crypter, encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Digest 计算 HMAC-SHA-384 摘要，用于存储层的键名
func Digest(key []byte, value string) string {
	h := hmac.New(sha512.New384, key)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
