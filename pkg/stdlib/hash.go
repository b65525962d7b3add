package stdlib

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerHash registers hash.* functions. Digests are answered as
// lowercase hex text.
func registerHash(r *expr.Registry) {
	register(r, pure("hash.checksum", 2, hashChecksum))
	register(r, pure("hash.hmac", 3, hashHMAC))
}

func hashChecksum(args []types.Value) (types.Value, error) {
	newHash, err := hashFactory(convert.ToString(args[1]))
	if err != nil {
		return types.Null, err
	}
	h := newHash()
	h.Write(convert.ToBytes(args[0]))
	return types.NewString(hex.EncodeToString(h.Sum(nil))), nil
}

func hashHMAC(args []types.Value) (types.Value, error) {
	newHash, err := hashFactory(convert.ToString(args[2]))
	if err != nil {
		return types.Null, err
	}
	mac := hmac.New(newHash, convert.ToBytes(args[1]))
	mac.Write(convert.ToBytes(args[0]))
	return types.NewString(hex.EncodeToString(mac.Sum(nil))), nil
}

func hashFactory(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(strings.ReplaceAll(algorithm, "-", "")) {
	case "SHA256":
		return sha256.New, nil
	case "SHA384":
		return sha512.New384, nil
	case "SHA512":
		return sha512.New, nil
	case "MD5":
		return md5.New, nil
	case "SHA1":
		return sha1.New, nil
	}
	return nil, types.NewDispatchError(algorithm, "unsupported hash algorithm: "+algorithm)
}
