package fingerprint

import (
	"testing"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
)

func TestSumIsDeterministic(t *testing.T) {
	a := Sum([]byte("body { color: red }"))
	b := Sum([]byte("body { color: red }"))
	if a != b {
		t.Fatalf("same content produced different digests: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(a))
	}
	if c := Sum([]byte("body { color: blue }")); c == a {
		t.Fatal("different content produced the same digest")
	}
}

func TestChangedForUnknownPath(t *testing.T) {
	manifest := domain.AssetManifest{}
	if !Changed(manifest, "assets/app.js", Sum([]byte("x"))) {
		t.Fatal("unknown path must be treated as changed")
	}
}

func TestChangedComparesDigests(t *testing.T) {
	digest := Sum([]byte("v1"))
	manifest := domain.AssetManifest{
		"assets/app.js": {FileName: "app.js", SecureURL: "https://cdn.example.com/app.js", Digest: digest},
	}

	if Changed(manifest, "assets/app.js", digest) {
		t.Fatal("identical digest must not be treated as changed")
	}
	if !Changed(manifest, "assets/app.js", Sum([]byte("v2"))) {
		t.Fatal("differing digest must be treated as changed")
	}
}

func TestChangedWhenStoredURLMissing(t *testing.T) {
	digest := Sum([]byte("v1"))
	manifest := domain.AssetManifest{
		"assets/app.js": {FileName: "app.js", Digest: digest},
	}
	if !Changed(manifest, "assets/app.js", digest) {
		t.Fatal("record without a stored URL must be re-uploaded")
	}
}
