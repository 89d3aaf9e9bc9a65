package store

import (
	"context"
	"errors"
	"testing"

	"github.com/caseflow-io/caseengine/engine"
)

func TestMemStore_PutThenGetRoundTrips(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	cs := engine.CaseState{CaseID: "case-1", DefinitionName: "n", DefinitionVersion: "v1"}
	if err := m.Put(ctx, cs); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.Get(ctx, "case-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CaseID != "case-1" {
		t.Errorf("expected CaseID case-1, got %q", got.CaseID)
	}
}

func TestMemStore_GetMissingReturnsErrCaseNotFound(t *testing.T) {
	m := NewMemStore()
	_, err := m.Get(context.Background(), "nope")
	if !errors.Is(err, engine.ErrCaseNotFound) {
		t.Errorf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestMemStore_GetReturnsIndependentCopy(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	cs := engine.CaseState{CaseID: "case-1", ExecPaths: map[string]engine.ExecPath{
		engine.RootPathName: {Name: engine.RootPathName, Status: engine.PathStarted},
	}}
	if err := m.Put(ctx, cs); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.Get(ctx, "case-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.ExecPaths[engine.RootPathName] = engine.ExecPath{Name: engine.RootPathName, Status: engine.PathCompleted}

	reread, err := m.Get(ctx, "case-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reread.ExecPaths[engine.RootPathName].Status == engine.PathCompleted {
		t.Error("mutating a Get() result must not affect the stored snapshot")
	}
}

func TestMemStore_DeleteRemovesSnapshot(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	if err := m.Put(ctx, engine.CaseState{CaseID: "case-1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Delete(ctx, "case-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "case-1"); !errors.Is(err, engine.ErrCaseNotFound) {
		t.Errorf("expected ErrCaseNotFound after Delete, got %v", err)
	}
}
