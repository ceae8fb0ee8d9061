// Package envelope implements decryption and validation of encrypted
// change notifications sent by the Graph API when resource data is
// included in the callback.
//
// Each envelope carries three Base64 fields: an RSA-wrapped AES session
// key (dataKey), an HMAC-SHA256 signature over the ciphertext
// (dataSignature), and the AES-CBC ciphertext itself (data). The private
// key must match the public key supplied when the subscription was
// created.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
)

// Stage identifies which step of the pipeline an envelope failed at.
type Stage string

const (
	StageKeyRecovery Stage = "key_recovery"
	StageValidation  Stage = "signature_validation"
	StageDecryption  Stage = "payload_decryption"
)

// DecryptionError is the typed failure surfaced by the engine. It never
// carries key material or partial plaintext; the wrapped error describes
// only the mechanical failure.
type DecryptionError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *DecryptionError) Error() string {
	return fmt.Sprintf("envelope %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) *DecryptionError {
	return &DecryptionError{Stage: stage, Err: err}
}

// EncryptedContent is the encryptedContent object of a change
// notification, exactly as it appears on the wire.
type EncryptedContent struct {
	DataKey       string `json:"dataKey"`
	DataSignature string `json:"dataSignature"`
	Data          string `json:"data"`
}

// Engine holds the RSA private key used to recover session keys.
type Engine struct {
	key *rsa.PrivateKey
}

// New parses a PEM-encoded RSA private key (PKCS#1 or PKCS#8, no
// passphrase) and returns an Engine.
func New(pemBytes []byte) (*Engine, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key material")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &Engine{key: key}, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want *rsa.PrivateKey", parsed)
	}
	return &Engine{key: key}, nil
}

// Load reads the private key PEM file at path and returns an Engine.
func Load(path string) (*Engine, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}
	return New(pemBytes)
}

// Open runs the full three-stage pipeline on an envelope and returns the
// plaintext payload (UTF-8 JSON). Any stage failure returns a
// DecryptionError and no plaintext; decryption is never attempted after
// a validation failure.
func (e *Engine) Open(content EncryptedContent) ([]byte, error) {
	key, err := e.RecoverKey(content.DataKey)
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(content.Data)
	if err != nil {
		return nil, stageErr(StageDecryption, fmt.Errorf("decoding ciphertext: %w", err))
	}

	if !e.Validate(key, ciphertext, content.DataSignature) {
		return nil, stageErr(StageValidation, fmt.Errorf("signature mismatch"))
	}

	return e.decrypt(key, ciphertext)
}

// RecoverKey decrypts the Base64-encoded, RSA-OAEP-wrapped symmetric key.
//
// OAEP can only operate on blocks up to the RSA modulus size. When the
// wrapped key is longer than one modulus, the sender has chunked it into
// modulus-sized blocks; each block is decrypted independently and the
// results concatenated in order. Feeding the oversized buffer to the
// primitive in one call would fail outright.
func (e *Engine) RecoverKey(dataKey string) ([]byte, error) {
	wrapped, err := base64.StdEncoding.DecodeString(dataKey)
	if err != nil {
		return nil, stageErr(StageKeyRecovery, fmt.Errorf("decoding wrapped key: %w", err))
	}

	// OAEP with SHA-1 is what the Graph encryption scheme uses.
	modulus := e.key.Size()
	if len(wrapped) <= modulus {
		key, err := rsa.DecryptOAEP(sha1.New(), nil, e.key, wrapped, nil)
		if err != nil {
			return nil, stageErr(StageKeyRecovery, err)
		}
		return key, nil
	}

	var key []byte
	for offset := 0; offset < len(wrapped); offset += modulus {
		end := offset + modulus
		if end > len(wrapped) {
			end = len(wrapped)
		}
		block, err := rsa.DecryptOAEP(sha1.New(), nil, e.key, wrapped[offset:end], nil)
		if err != nil {
			return nil, stageErr(StageKeyRecovery, fmt.Errorf("block at offset %d: %w", offset, err))
		}
		key = append(key, block...)
	}
	return key, nil
}

// Validate checks the sender's signature over the raw ciphertext:
// Base64(HMAC-SHA256(key, ciphertext)) compared in constant time. A
// false return is fatal for the notification; the caller must discard it
// without decrypting.
func (e *Engine) Validate(key, ciphertext []byte, signature string) bool {
	mac := hmac.New(sha256.New, key)
	mac.Write(ciphertext)
	computed := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(signature))
}

// decrypt recovers the plaintext with AES-CBC. The IV is the first 16
// bytes of the symmetric key material itself -- a protocol quirk of the
// sender that must be replicated exactly for interoperability.
func (e *Engine) decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(key) < aes.BlockSize {
		return nil, stageErr(StageDecryption, fmt.Errorf("symmetric key too short: %d bytes", len(key)))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, stageErr(StageDecryption, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, stageErr(StageDecryption, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext)))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, key[:aes.BlockSize]).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, stageErr(StageDecryption, err)
	}
	return unpadded, nil
}

// pkcs7Unpad strips standard block padding, rejecting malformed padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	if !bytes.Equal(data[len(data)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, fmt.Errorf("inconsistent padding")
	}
	return data[:len(data)-n], nil
}
