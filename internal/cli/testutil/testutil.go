// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// SetupTestProject creates a temporary dbt project: a config file, two
// staging models over a seed and a source table, and a mart joining them
// through ref().
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	files := map[string]string{
		"dbt-analyzer.yaml": `models_dir: models
seeds_dir: seeds
lineage:
  enabled: true
`,
		"seeds/raw_customers.csv": "id,name,email\n1,Alice,a@example.com\n2,Bob,b@example.com\n",
		"models/sources.yml": `version: 2
sources:
  - name: shop
    tables:
      - name: raw_orders
        columns:
          - name: id
          - name: customer_id
          - name: amount
`,
		"models/staging/stg_customers.sql": `select
    id as customer_id,
    name as customer_name
from raw_customers`,
		"models/staging/stg_orders.sql": `select id as order_id, customer_id, amount
from raw_orders`,
		"models/marts/customer_orders.sql": `select c.customer_id, c.customer_name, o.amount
from {{ ref('stg_customers') }} as c, {{ ref('stg_orders') }} as o`,
	}

	for rel, body := range files {
		path := filepath.Join(tmpDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", rel, err)
		}
	}

	return tmpDir
}

// WriteFile writes body to rel under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, body string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails the test if s holds terminal escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("output contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown fails the test on unbalanced code fences or empty
// headings.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences: %d fence markers", n)
	}

	inFence := false
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty heading at line %d: %q", i+1, line)
		}
	}
}
