// Package crypto provides wallet key management, EVM transaction signing and
// the EIP-712 action signatures used by the perpetuals venue.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// Key file parameters. The KDF is PBKDF2-HMAC-SHA256 feeding AES-256-GCM.
const (
	keyFileVersion = 1
	kdfIterations  = 480_000
	kdfSaltLen     = 16
	kdfKeyLen      = 32
)

// keyFile is the on-disk wallet key format. Address is the checksummed
// wallet the key controls; it is checked after decryption so a file for a
// different wallet fails loudly.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig names where the trading key comes from. RawPrivateKey wins over
// EncryptedKeyPath.
type KeyConfig struct {
	RawPrivateKey    string
	EncryptedKeyPath string
	KeyPassword      string
}

// parseKey validates a hex secp256k1 key (0x optional) and returns it
// without the prefix together with the wallet it controls.
func parseKey(s string) (string, common.Address, error) {
	k := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	pk, err := ethcrypto.HexToECDSA(k)
	if err != nil {
		return "", common.Address{}, domain.E(domain.KindMalformed, "crypto.parse_key", err)
	}
	return strings.ToLower(k), ethcrypto.PubkeyToAddress(pk.PublicKey), nil
}

func aead(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, kdfIterations, kdfKeyLen, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptKey seals privateKeyHex under password and returns the JSON key
// file.
func EncryptKey(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: encrypt: empty password")
	}
	k, addr, err := parseKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	raw, _ := hex.DecodeString(k)

	salt := make([]byte, kdfSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: encrypt: salt: %w", err)
	}
	gcm, err := aead(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: encrypt: nonce: %w", err)
	}

	enc := base64.StdEncoding.EncodeToString
	return json.MarshalIndent(keyFile{
		Version:    keyFileVersion,
		Address:    addr.Hex(),
		Salt:       enc(salt),
		Nonce:      enc(nonce),
		Ciphertext: enc(gcm.Seal(nil, nonce, raw, []byte(addr.Hex()))),
	}, "", "  ")
}

// DecryptKey opens a key file produced by EncryptKey and returns the hex
// private key without 0x.
func DecryptKey(data []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: decrypt: empty password")
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return "", domain.E(domain.KindMalformed, "crypto.decrypt", err)
	}
	if kf.Version != keyFileVersion {
		return "", domain.E(domain.KindMalformed, "crypto.decrypt", fmt.Errorf("key file version %d", kf.Version))
	}

	var parts [3][]byte
	for i, s := range []string{kf.Salt, kf.Nonce, kf.Ciphertext} {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", domain.E(domain.KindMalformed, "crypto.decrypt", err)
		}
		parts[i] = b
	}

	gcm, err := aead(password, parts[0])
	if err != nil {
		return "", err
	}
	if len(parts[1]) != gcm.NonceSize() {
		return "", domain.E(domain.KindMalformed, "crypto.decrypt", errors.New("bad nonce length"))
	}
	plain, err := gcm.Open(nil, parts[1], parts[2], []byte(kf.Address))
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt: wrong password or corrupted key file: %w", err)
	}

	k, addr, err := parseKey(hex.EncodeToString(plain))
	if err != nil {
		return "", err
	}
	if kf.Address != "" && !strings.EqualFold(kf.Address, addr.Hex()) {
		return "", domain.E(domain.KindInvariant, "crypto.decrypt",
			fmt.Errorf("key file is for %s but decrypts to %s", kf.Address, addr.Hex()))
	}
	return k, nil
}

// LoadKey resolves the trading key: the raw key if set, else the encrypted
// key file opened with KeyPassword.
func LoadKey(cfg KeyConfig) (string, error) {
	switch {
	case cfg.RawPrivateKey != "":
		k, _, err := parseKey(cfg.RawPrivateKey)
		if err != nil {
			return "", fmt.Errorf("crypto: raw private key: %w", err)
		}
		return k, nil
	case cfg.EncryptedKeyPath != "":
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: read key file: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	default:
		return "", errors.New("crypto: no private key configured")
	}
}
