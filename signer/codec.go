package signer

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"

	txerrors "github.com/pushchain/svm-txkit/errors"
)

// EncodeJSON serializes the secret material as a JSON array of 64 numbers,
// the layout used by ledger CLI keypair files.
func EncodeJSON(k *Keypair) ([]byte, error) {
	raw := k.Bytes()
	nums := make([]int, len(raw))
	for i, b := range raw {
		nums[i] = int(b)
	}
	out, err := json.Marshal(nums)
	if err != nil {
		return nil, txerrors.NewInternalError("encode_json", "failed to marshal keypair", err)
	}
	return out, nil
}

// DecodeJSON restores a keypair from a JSON array of 64 numbers.
func DecodeJSON(data []byte) (*Keypair, error) {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return nil, txerrors.Sentinel(txerrors.ErrInvalidKeyMaterial, "decode_json",
			fmt.Errorf("failed to parse key file as JSON array: %w", err))
	}
	raw := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, txerrors.Sentinel(txerrors.ErrInvalidKeyMaterial, "decode_json",
				fmt.Errorf("byte %d out of range: %d", i, n))
		}
		raw[i] = byte(n)
	}
	return FromBytes(raw)
}

// EncodeBase58 serializes the secret material as a base58 string.
func EncodeBase58(k *Keypair) string {
	return base58.Encode(k.Bytes())
}

// DecodeBase58 restores a keypair from its base58 secret.
func DecodeBase58(s string) (*Keypair, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, txerrors.Sentinel(txerrors.ErrInvalidKeyMaterial, "decode_base58", err)
	}
	return FromBytes(raw)
}
