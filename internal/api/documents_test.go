package api

import (
	"context"
	"errors"
	"testing"
)

type statusRecorder struct {
	documentID string
	status     string
	reason     string
	err        error
}

func (r *statusRecorder) UpdateStatus(_ context.Context, documentID, status, failReason string) error {
	r.documentID = documentID
	r.status = status
	r.reason = failReason
	return r.err
}

func TestMarkDocumentFailed(t *testing.T) {
	rec := &statusRecorder{}
	markDocumentFailed(context.Background(), rec, "doc-1", "failed to store chunks")
	if rec.documentID != "doc-1" || rec.status != "failed" {
		t.Fatalf("unexpected status update: %+v", rec)
	}
	if rec.reason != "failed to store chunks" {
		t.Fatalf("unexpected fail reason: %q", rec.reason)
	}
}

func TestMarkDocumentFailedUpdateErrorDoesNotPanic(t *testing.T) {
	rec := &statusRecorder{err: errors.New("db down")}
	markDocumentFailed(context.Background(), rec, "doc-2", "failed to index chunks")
	if rec.status != "failed" {
		t.Fatalf("update not attempted: %+v", rec)
	}
}
