package sandbox

import (
	"crypto/md5"
	"encoding/hex"
)

// ContentKey returns the name the sandboxing tool gives the redirected copy
// of a file: the lowercase hex MD5 of the path exactly as the sandboxed
// program passed it to open(2).
//
// The input is hashed byte for byte. Relative names stay relative and no
// Unicode normalization is applied, or the key would not match the tool's.
func ContentKey(originalName string) string {
	sum := md5.Sum([]byte(originalName))
	return hex.EncodeToString(sum[:])
}
