package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// RecordedIO captures one external interaction performed by a recordable
// task body, keyed by (PathName, StepName, Attempt), so a later replay can
// reproduce the same Response without re-invoking the capability.
//
// Grounded on the teacher's RecordedIO / recordIO / verifyReplayHash
// (graph/replay.go), narrowed from the teacher's generic node-replay
// facility to this engine's per-path/per-step dispatch unit.
type RecordedIO struct {
	PathName string          `json:"path_name"`
	StepName string          `json:"step_name"`
	Attempt  int             `json:"attempt"`
	Request  json.RawMessage `json:"request"`
	Response json.RawMessage `json:"response"`
	Hash     string          `json:"hash"`
	Timestamp time.Time      `json:"timestamp"`
}

// SideEffectPolicy governs whether a task body's I/O is captured for
// replay. Capabilities that are pure functions of their inputs can leave
// this at its zero value.
type SideEffectPolicy struct {
	// Recordable marks a capability's I/O as safe and useful to record.
	Recordable bool
}

// RecordableTask is an optional capability a TaskBody implements to opt
// its dispatches into record/replay (spec §9 "Replay"). A body that does
// not implement this interface is always invoked fresh.
type RecordableTask interface {
	SideEffectPolicy() SideEffectPolicy
}

// RecordIO serializes request/response and computes a verification hash,
// producing a RecordedIO ready to append to CaseState.RecordedIOs.
//
// Grounded on recordIO in graph/replay.go, adapted from (nodeID, attempt)
// keying to (pathName, stepName, attempt).
func RecordIO(pathName, stepName string, attempt int, request, response interface{}, now time.Time) (RecordedIO, error) {
	reqJSON, err := json.Marshal(request)
	if err != nil {
		return RecordedIO{}, fmt.Errorf("marshal request: %w", err)
	}
	respJSON, err := json.Marshal(response)
	if err != nil {
		return RecordedIO{}, fmt.Errorf("marshal response: %w", err)
	}
	h := sha256.Sum256(respJSON)
	return RecordedIO{
		PathName:  pathName,
		StepName:  stepName,
		Attempt:   attempt,
		Request:   reqJSON,
		Response:  respJSON,
		Hash:      "sha256:" + hex.EncodeToString(h[:]),
		Timestamp: now,
	}, nil
}

// LookupRecordedIO finds a prior recording for the given dispatch unit, if
// any. Replay callers use this instead of invoking the capability again.
func LookupRecordedIO(recorded []RecordedIO, pathName, stepName string, attempt int) (RecordedIO, bool) {
	for _, r := range recorded {
		if r.PathName == pathName && r.StepName == stepName && r.Attempt == attempt {
			return r, true
		}
	}
	return RecordedIO{}, false
}

// VerifyReplayHash reports whether a freshly computed response matches the
// hash recorded during the original execution, catching non-deterministic
// capability bodies (spec §9 "Replay", grounded on verifyReplayHash in
// graph/replay.go).
func VerifyReplayHash(rec RecordedIO, response interface{}) (bool, error) {
	respJSON, err := json.Marshal(response)
	if err != nil {
		return false, fmt.Errorf("marshal response: %w", err)
	}
	h := sha256.Sum256(respJSON)
	return "sha256:"+hex.EncodeToString(h[:]) == rec.Hash, nil
}
