// Package util holds small helpers with no domain knowledge.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 128-bit random identifier in hex, prefixed like
// "msg_3f2a…" so ids stay self-describing in logs and reports.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
