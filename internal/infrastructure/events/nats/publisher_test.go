package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/nats-io/nats.go"
)

func TestNewOutcomeMsgCarriesHeadersAndBody(t *testing.T) {
	outcome := domain.Outcome{
		SessionID:  "s-1",
		Attempt:    3,
		State:      domain.StateSucceeded,
		Filename:   "scan.png",
		TumorClass: "glioma",
		Confidence: 0.93,
		FinishedAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
	msg, err := newOutcomeMsg("diagnostics.outcome", outcome)
	if err != nil {
		t.Fatalf("newOutcomeMsg() error = %v", err)
	}
	if msg.Subject != "diagnostics.outcome" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.Header.Get(headerSessionID) != "s-1" || msg.Header.Get(headerAttempt) != "3" || msg.Header.Get(headerState) != "succeeded" {
		t.Fatalf("unexpected headers %v", msg.Header)
	}

	var decoded domain.Outcome
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.TumorClass != "glioma" || decoded.Attempt != 3 {
		t.Fatalf("unexpected decoded outcome %+v", decoded)
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}

	permanent := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(permanent); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("permanent errors must not be marked temporary")
	}
}

func TestClassifyNATSErrorSkipsCancellation(t *testing.T) {
	if classifyNATSError(context.Canceled).RecordFailure {
		t.Fatalf("cancellation must not count against the breaker")
	}
	if !classifyNATSError(nats.ErrNoServers).RecordFailure {
		t.Fatalf("no servers must count against the breaker")
	}
}
