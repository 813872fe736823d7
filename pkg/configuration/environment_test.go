package configuration

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.24\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "IMPORTHUB_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "pkg", "nested")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(sub); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("IMPORTHUB_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("IMPORTHUB_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded from repo root, got %q", got)
	}
}

func TestImportOptions_Validate(t *testing.T) {
	valid := ImportOptions{BatchSize: 500, FastBatchSize: 2500, Parallelism: 16, ErrorBudget: 100}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid options, got %v", err)
	}

	bad := valid
	bad.FastBatchSize = 100
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for FastBatchSize < BatchSize")
	}

	bad = valid
	bad.ErrorBudget = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero ErrorBudget")
	}
}

func TestHooksOptions_URLList(t *testing.T) {
	h := HooksOptions{URLs: " http://a.local/hook , http://b.local/hook ,"}
	urls := h.URLList()
	if len(urls) != 2 || urls[0] != "http://a.local/hook" || urls[1] != "http://b.local/hook" {
		t.Fatalf("unexpected url list: %v", urls)
	}

	empty := HooksOptions{}
	if empty.URLList() != nil {
		t.Fatal("expected nil url list for empty config")
	}
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
