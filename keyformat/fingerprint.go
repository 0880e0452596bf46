package keyformat

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/bastionzero/rsakit"
)

// Fingerprint hashes the ssh-rsa public key blob the way ssh-keygen -l does. alg is "md5", giving
// colon separated hex, or "sha256", giving unpadded base64
func Fingerprint(key *rsakit.Key, alg string) (string, error) {
	blob := publicBlob(key)
	switch strings.ToLower(alg) {
	case "md5":
		sum := md5.Sum(blob)
		pairs := lo.Map(sum[:], func(b byte, _ int) string {
			return hex.EncodeToString([]byte{b})
		})
		return strings.Join(pairs, ":"), nil
	case "sha256":
		sum := sha256.Sum256(blob)
		return base64.RawStdEncoding.EncodeToString(sum[:]), nil
	}
	return "", fmt.Errorf("%w: fingerprint algorithm %q", rsakit.ErrUnsupportedHash, alg)
}
