package engine

import (
	"testing"
	"time"
)

var fixedRecordTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type sampleEffect struct {
	Amount int    `json:"amount"`
	Note   string `json:"note"`
}

func TestRecordIO_RoundTripsThroughLookup(t *testing.T) {
	req := sampleEffect{Amount: 500, Note: "charge"}
	resp := sampleEffect{Amount: 500, Note: "charged"}

	rec, err := RecordIO(".r1.", "charge", 0, req, resp, fixedRecordTime)
	if err != nil {
		t.Fatalf("RecordIO: %v", err)
	}

	var recorded []RecordedIO
	recorded = append(recorded, rec)

	found, ok := LookupRecordedIO(recorded, ".r1.", "charge", 0)
	if !ok {
		t.Fatal("expected to find the recorded IO")
	}
	if found.Hash != rec.Hash {
		t.Error("lookup must return the same recording")
	}

	if _, ok := LookupRecordedIO(recorded, ".r1.", "charge", 1); ok {
		t.Error("a different attempt must not match")
	}
	if _, ok := LookupRecordedIO(recorded, ".r2.", "charge", 0); ok {
		t.Error("a different path must not match")
	}
}

func TestVerifyReplayHash_DetectsMatchAndMismatch(t *testing.T) {
	resp := sampleEffect{Amount: 500, Note: "charged"}
	rec, err := RecordIO(".r1.", "charge", 0, sampleEffect{Amount: 500}, resp, fixedRecordTime)
	if err != nil {
		t.Fatalf("RecordIO: %v", err)
	}

	ok, err := VerifyReplayHash(rec, resp)
	if err != nil {
		t.Fatalf("VerifyReplayHash: %v", err)
	}
	if !ok {
		t.Error("expected the identical response to verify")
	}

	drifted := sampleEffect{Amount: 501, Note: "charged"}
	ok, err = VerifyReplayHash(rec, drifted)
	if err != nil {
		t.Fatalf("VerifyReplayHash: %v", err)
	}
	if ok {
		t.Error("expected a non-deterministic capability's drifted response to fail verification")
	}
}
