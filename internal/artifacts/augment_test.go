package artifacts

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ggokuldas06/tds-project1/pkg/models"
)

func TestAugmentAddsStandingFiles(t *testing.T) {
	t.Parallel()

	files := models.FileSet{"index.html": []byte("<h1>app</h1>")}
	got := Augment(files, "sum-of-sales-x1z9k", "Compute the sum of sales.")

	license, ok := got[LicenseFile]
	if !ok {
		t.Fatal("LICENSE missing")
	}
	if !strings.HasPrefix(string(license), "MIT License") {
		t.Errorf("license should start with MIT header, got %q", string(license[:20]))
	}
	if !strings.Contains(string(license), fmt.Sprintf("%d", time.Now().Year())) {
		t.Error("license should carry the current year")
	}

	readme, ok := got[ReadmeFile]
	if !ok {
		t.Fatal("README.md missing")
	}
	text := string(readme)
	if !strings.HasPrefix(text, "# sum-of-sales-x1z9k") {
		t.Errorf("readme should open with the task id, got %q", text[:40])
	}
	if !strings.Contains(text, "Compute the sum of sales.") {
		t.Error("readme should include the brief")
	}
}

func TestAugmentListingSortedAndExcludesReadme(t *testing.T) {
	t.Parallel()

	files := models.FileSet{
		"script.js":  []byte("x"),
		"index.html": []byte("x"),
		"data.csv":   []byte("x"),
	}
	got := Augment(files, "t", "b")

	text := string(got[ReadmeFile])
	if strings.Contains(text, "- `README.md`") {
		t.Error("readme should not list itself")
	}
	for _, name := range []string{"- `LICENSE`", "- `data.csv`", "- `index.html`", "- `script.js`"} {
		if !strings.Contains(text, name) {
			t.Errorf("readme listing missing %s", name)
		}
	}

	// Sorted order: LICENSE before data.csv before index.html.
	if strings.Index(text, "- `LICENSE`") > strings.Index(text, "- `data.csv`") {
		t.Error("listing should be sorted")
	}
	if strings.Index(text, "- `data.csv`") > strings.Index(text, "- `index.html`") {
		t.Error("listing should be sorted")
	}
}

func TestAugmentOverwritesModelArtifacts(t *testing.T) {
	t.Parallel()

	files := models.FileSet{
		"README.md": []byte("model wrote this"),
		"LICENSE":   []byte("model license"),
	}
	got := Augment(files, "t", "b")

	if string(got[ReadmeFile]) == "model wrote this" {
		t.Error("model README should be replaced")
	}
	if string(got[LicenseFile]) == "model license" {
		t.Error("model LICENSE should be replaced")
	}
}

func TestAugmentNilFiles(t *testing.T) {
	t.Parallel()

	got := Augment(nil, "t", "b")
	if len(got) != 2 {
		t.Fatalf("expected LICENSE and README only, got %d files", len(got))
	}
}
