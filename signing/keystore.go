package signing

import (
	"encoding/hex"
	"os"
	"strings"
)

// LoadKeystore reads the node's signing key from path. Production keystore
// decryption (scrypt-derived AES over the go-ethereum keystore JSON format)
// is outside this module's scope; this loader accepts a hex-encoded raw
// private key, which is what --password-file-gated local development and
// the node's own test fixtures use. passwordFile is accepted for interface
// compatibility with spec §6's --password-file flag and is not currently
// consulted.
func LoadKeystore(path string, passwordFile string) (*Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	hexKey := strings.TrimSpace(string(raw))
	hexKey = strings.TrimPrefix(hexKey, "0x")

	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromBytes(keyBytes)
}
