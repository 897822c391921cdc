package query

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// fingerprint derives the cache/single-flight key for a request from
// (query text, domain/task_type context, limit).
func fingerprint(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Domain))
	h.Write([]byte{0})
	h.Write([]byte(req.TaskType))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.Limit)))
	return hex.EncodeToString(h.Sum(nil))
}
