package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRunScriptedBillPayment(t *testing.T) {
	in := strings.NewReader("pay my water bill\n123 Main St\nyes\nquit\n")
	var out bytes.Buffer

	err := run(context.Background(), []string{"--today", "2025-06-01", "--delay", "10ms", "--session", "cli-1"}, in, &out)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"$82.35", "Payment successful", "[1] Download receipt"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q\n%s", want, got)
		}
	}
}

func TestRunWithoutAutoContinueStopsAtProcessing(t *testing.T) {
	in := strings.NewReader("pay my water bill\n123 Main St\nyes\n")
	var out bytes.Buffer

	if err := run(context.Background(), []string{"--auto-continue=false"}, in, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.Contains(out.String(), "Payment successful") {
		t.Fatal("expected payment to stay in processing")
	}
}

func TestRunRejectsBadDate(t *testing.T) {
	err := run(context.Background(), []string{"--today", "June"}, strings.NewReader(""), &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for malformed --today")
	}
}
