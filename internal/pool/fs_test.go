package pool

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/skylabel/internal/apperr"
)

func testPool(t *testing.T) (*FS, string, string) {
	t.Helper()
	unlabeled := t.TempDir()
	labeled := t.TempDir()
	p, err := NewFS(unlabeled, labeled)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return p, unlabeled, labeled
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewFS_SameDirRejected(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFS(dir, dir); err == nil {
		t.Fatal("expected error for identical dirs")
	}
}

func TestNewFS_MissingDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "nope"), t.TempDir()); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestList_ImagesOnly(t *testing.T) {
	p, unlabeled, _ := testPool(t)
	writeFile(t, unlabeled, "b.jpg", "x")
	writeFile(t, unlabeled, "a.PNG", "x")
	writeFile(t, unlabeled, "notes.txt", "x")
	writeFile(t, unlabeled, ".hidden.jpg", "x")
	if err := os.Mkdir(filepath.Join(unlabeled, "sub.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := p.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.PNG", "b.jpg"}
	if len(got) != len(want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRelocate(t *testing.T) {
	p, unlabeled, labeled := testPool(t)
	writeFile(t, unlabeled, "raw.jpg", "pixels")

	if err := p.Relocate("raw.jpg", "B737-0001.jpg"); err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if p.Exists("raw.jpg") {
		t.Error("source still in unlabeled pool")
	}
	data, err := os.ReadFile(filepath.Join(labeled, "B737-0001.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "pixels" {
		t.Errorf("content = %q", data)
	}

	labeledList, _ := p.ListLabeled()
	if len(labeledList) != 1 || labeledList[0] != "B737-0001.jpg" {
		t.Errorf("ListLabeled = %v", labeledList)
	}
}

func TestRelocate_SourceMissing(t *testing.T) {
	p, _, _ := testPool(t)
	err := p.Relocate("ghost.jpg", "B737-0001.jpg")
	if !errors.Is(err, apperr.ErrSourceMissing) {
		t.Fatalf("err = %v, want ErrSourceMissing", err)
	}
}

func TestRelocate_TargetExists(t *testing.T) {
	p, unlabeled, labeled := testPool(t)
	writeFile(t, unlabeled, "raw.jpg", "new")
	writeFile(t, labeled, "B737-0001.jpg", "old")

	err := p.Relocate("raw.jpg", "B737-0001.jpg")
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	data, _ := os.ReadFile(filepath.Join(labeled, "B737-0001.jpg"))
	if string(data) != "old" {
		t.Error("existing labeled file was overwritten")
	}
	if !p.Exists("raw.jpg") {
		t.Error("source should stay in place")
	}
}

func TestRestore(t *testing.T) {
	p, unlabeled, _ := testPool(t)
	writeFile(t, unlabeled, "raw.jpg", "x")

	if err := p.Relocate("raw.jpg", "B737-0001.jpg"); err != nil {
		t.Fatal(err)
	}
	if err := p.Restore("B737-0001.jpg", "raw.jpg"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !p.Exists("raw.jpg") {
		t.Error("source not restored")
	}
}

func TestPathTraversal(t *testing.T) {
	p, unlabeled, _ := testPool(t)
	writeFile(t, unlabeled, "raw.jpg", "x")

	for _, bad := range []string{"../escape.jpg", "sub/raw.jpg", "..", "", `..\raw.jpg`} {
		if err := p.Relocate("raw.jpg", bad); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("Relocate to %q: err = %v, want ErrInvalid", bad, err)
		}
		if p.Exists(bad) {
			t.Errorf("Exists(%q) = true", bad)
		}
	}
}

func TestCopyThenRemove(t *testing.T) {
	src := filepath.Join(t.TempDir(), "img1.jpg")
	dst := filepath.Join(t.TempDir(), "B737-0001.jpg")
	if err := os.WriteFile(src, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := copyThenRemove(src, dst); err != nil {
		t.Fatalf("copyThenRemove: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("source still present: %v", err)
	}
	if data, err := os.ReadFile(dst); err != nil || string(data) != "jpeg" {
		t.Errorf("dst = %q, %v", data, err)
	}
}

func TestCopyThenRemove_SourceUndeletable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "img1.jpg")
	dst := filepath.Join(t.TempDir(), "B737-0001.jpg")
	if err := os.WriteFile(src, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(srcDir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(srcDir, 0o755) })

	if err := copyThenRemove(src, dst); err == nil {
		t.Fatal("expected error when the source cannot be removed")
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("copy left in labeled pool: %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source gone: %v", err)
	}
}
