package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/taxmate/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithUserID(ctx, 42)

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" {
		t.Fatalf("expected request_id req-1, got %v", fields["request_id"])
	}
	if fields["user_id"] != "42" {
		t.Fatalf("expected user_id 42, got %v", fields["user_id"])
	}
}

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM tax_records":                   "SELECT",
		"WITH x AS (SELECT 1) UPDATE tax_records SET": "UPDATE",
		"  insert into tax_records values (1)":        "INSERT",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %s, want %s", sql, got, want)
		}
	}
}
