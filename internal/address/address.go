package address

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/stellar/go/strkey"
)

// Encoders for the two strkey variants the trace decoder cares about:
// G... account keys and C... contract identifiers. Both require exactly
// 32 bytes of raw material; anything else is an error, never a guess.

func EncodeAccount(raw []byte) (string, error) {
	if len(raw) != 32 {
		return "", errors.Errorf("account key must be 32 bytes, got %d", len(raw))
	}
	s, err := strkey.Encode(strkey.VersionByteAccountID, raw)
	if err != nil {
		return "", errors.Wrap(err, "encoding account key")
	}
	return s, nil
}

func EncodeContract(raw []byte) (string, error) {
	if len(raw) != 32 {
		return "", errors.Errorf("contract id must be 32 bytes, got %d", len(raw))
	}
	s, err := strkey.Encode(strkey.VersionByteContract, raw)
	if err != nil {
		return "", errors.Wrap(err, "encoding contract id")
	}
	return s, nil
}

func DecodeAccount(s string) ([]byte, error) {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, s)
	if err != nil {
		return nil, errors.Wrap(err, "decoding account key")
	}
	return raw, nil
}

func DecodeContract(s string) ([]byte, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, s)
	if err != nil {
		return nil, errors.Wrap(err, "decoding contract id")
	}
	return raw, nil
}

// IsContract reports whether s is a well-formed C... contract identifier.
func IsContract(s string) bool {
	return strkey.IsValidContractAddress(s)
}

// IsAccount reports whether s is a well-formed G... account key.
func IsAccount(s string) bool {
	return strkey.IsValidEd25519PublicKey(s)
}

// Short renders the prefix(4)…suffix(4) display form used by the UI.
// Presentation helper only; the full string is what gets correlated.
func Short(s string) string {
	if len(s) <= 9 {
		return s
	}
	return fmt.Sprintf("%s…%s", s[:4], s[len(s)-4:])
}
