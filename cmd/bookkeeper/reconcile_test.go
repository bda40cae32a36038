package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ssraminder/financial-dashboard/internal/infra/memstore"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestReconcile_DemoReport(t *testing.T) {
	out, err := runCLI(t, "reconcile", "--demo", "--account", "acc-visa", "--statement", "st-visa-2024-01")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "BALANCED") || strings.Contains(out, "OUT OF BALANCE") {
		t.Errorf("expected balanced report, got:\n%s", out)
	}
	if !strings.Contains(out, "CONFERENCE TICKET") {
		t.Errorf("expected transaction rows, got:\n%s", out)
	}
}

func TestReconcile_StrictFailsWhenUnbalanced(t *testing.T) {
	out, err := runCLI(t, "reconcile", "--demo", "--strict", "--account", "acc-chq", "--statement", "st-chq-2024-01")
	if err == nil {
		t.Fatalf("expected error for unbalanced statement, got:\n%s", out)
	}
	if !strings.Contains(err.Error(), "80.00") {
		t.Errorf("expected difference in error, got %v", err)
	}
}

func TestReconcile_JSONFromDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := memstore.SaveDataset(path, memstore.Demo()); err != nil {
		t.Fatalf("save dataset: %v", err)
	}

	out, err := runCLI(t, "reconcile", "--data", path, "--json", "--status", "needs_review",
		"--account", "acc-chq", "--statement", "st-chq-2024-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var view struct {
		TotalRows int `json:"total_rows"`
		Rows      []struct {
			TransactionID string `json:"transaction_id"`
		} `json:"rows"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if view.TotalRows != 5 || len(view.Rows) != 2 {
		t.Errorf("expected 2 of 5 rows needing review, got %d of %d", len(view.Rows), view.TotalRows)
	}
}

func TestReconcile_RequiresBackend(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	_, err := runCLI(t, "reconcile", "--account", "a", "--statement", "s")
	if err == nil || !strings.Contains(err.Error(), "no backend configured") {
		t.Errorf("expected backend error, got %v", err)
	}
}
