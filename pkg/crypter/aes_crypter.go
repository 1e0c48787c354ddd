package crypter

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// AESCrypter 使用AES进行对称加密
type AESCrypter struct {
	key []byte
}

var _ Crypter = (*AESCrypter)(nil)

// NewAESCrypter 创建新的AES加密器，key 长度必须为 16/24/32
func NewAESCrypter(key []byte) (*AESCrypter, error) {
	if _, err := aes.NewCipher(key); err != nil {
		return nil, err
	}
	return &AESCrypter{key: key}, nil
}

// NewAESCrypterFromSecret 由密钥串创建 AES-256 加密器
func NewAESCrypterFromSecret(secret string) *AESCrypter {
	return &AESCrypter{key: DeriveKey(secret)}
}

// Encrypt 使用AES加密数据
func (a *AESCrypter) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt 使用AES解密数据
func (a *AESCrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
