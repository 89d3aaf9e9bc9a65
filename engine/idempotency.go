package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// IdempotencyKey derives a deterministic key from the material spec §9
// designates for task-author idempotency: caseID + pathName + stepName +
// attempt. Task bodies performing externally visible effects should key
// their own dedup storage (e.g. a payment provider's idempotency header) on
// this value so that a sanitizer-driven re-execution (spec §4.4 S3) is safe.
//
// Grounded on the teacher's computeIdempotencyKey (checkpoint.go), which
// hashes (runID, stepID, frontier, state) for the same purpose of
// identifying "this exact execution attempt" across crash/resume boundaries.
func IdempotencyKey(caseID, pathName, stepName string, attempt int) string {
	h := sha256.New()
	h.Write([]byte(caseID))
	h.Write([]byte{0})
	h.Write([]byte(pathName))
	h.Write([]byte{0})
	h.Write([]byte(stepName))
	h.Write([]byte{0})
	attemptBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(attemptBytes, uint64(attempt))
	h.Write(attemptBytes)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
