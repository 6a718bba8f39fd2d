package payroll

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTaxTable = `default: us-2026
tables:
  us-2026:
    - name: fica
      rate: 0.062
    - name: medicare
      rate: "0.0145"
    - name: fed_withholding
      rate: 0.10
  us-2026-state:
    - name: fica
      rate: 0.062
    - name: state
      rate: 0.05
`

func TestLoadTaxTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tax.yaml")
	if err := os.WriteFile(path, []byte(sampleTaxTable), 0o600); err != nil {
		t.Fatalf("failed to write tax table: %v", err)
	}

	table, err := LoadTaxTable(path)
	if err != nil {
		t.Fatalf("LoadTaxTable returned error: %v", err)
	}
	if names := table.Names(); len(names) != 2 || names[0] != "us-2026" {
		t.Fatalf("unexpected table names %v", names)
	}

	policy, err := table.Policy("")
	if err != nil {
		t.Fatalf("default policy lookup failed: %v", err)
	}
	defaults := DefaultTaxPolicy()
	if len(policy) != len(defaults) {
		t.Fatalf("expected %d components, got %d", len(defaults), len(policy))
	}
	for i := range defaults {
		if policy[i].Name != defaults[i].Name || !policy[i].Rate.Equal(defaults[i].Rate) {
			t.Fatalf("component %d: expected %v, got %v", i, defaults[i], policy[i])
		}
	}

	_, err = table.Policy("missing")
	if err == nil || !strings.Contains(err.Error(), strings.Join(table.Names(), ", ")) {
		t.Fatalf("expected unknown table error to list the tables, got %v", err)
	}
}

func TestParseTaxTableRejectsBadRates(t *testing.T) {
	cases := map[string]string{
		"negative":  "tables:\n  t:\n    - name: fica\n      rate: -0.1\n",
		"garbage":   "tables:\n  t:\n    - name: fica\n      rate: abc\n",
		"duplicate": "tables:\n  t:\n    - name: fica\n      rate: 0.1\n    - name: fica\n      rate: 0.2\n",
		"empty":     "tables: {}\n",
		"default":   "default: nope\ntables:\n  t:\n    - name: fica\n      rate: 0.1\n",
	}
	for name, doc := range cases {
		if _, err := ParseTaxTable([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
