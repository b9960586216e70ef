package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

// Fingerprint derives the dataset identity from the ordered file set:
// an MD5 digest over each file's name and decimal byte size. Content
// is deliberately not hashed; same-name same-size re-uploads map to
// the same store instance.
func Fingerprint(files []FileBuffer) string {
	hasher := md5.New()
	for _, f := range files {
		hasher.Write([]byte(f.Name))
		hasher.Write([]byte(strconv.FormatInt(f.Size, 10)))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
