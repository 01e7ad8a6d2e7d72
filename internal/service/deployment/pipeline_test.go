package deployment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/service/assets"
	"github.com/Mayuresh-22/NimbusWave/internal/service/fingerprint"
	"github.com/Mayuresh-22/NimbusWave/internal/service/mediatype"
	"github.com/Mayuresh-22/NimbusWave/internal/service/rewrite"
)

type stubUploader struct {
	mu       sync.Mutex
	calls    []string
	failFile string
}

func (u *stubUploader) Upload(ctx context.Context, content []byte, baseName string, media mediatype.Descriptor, projectID string) (*assets.UploadResult, error) {
	fileName := fmt.Sprintf("%s.%s", baseName, media.Extension)
	u.mu.Lock()
	u.calls = append(u.calls, fileName)
	u.mu.Unlock()
	if u.failFile != "" && fileName == u.failFile {
		return nil, assets.ErrUploadFailed
	}
	return &assets.UploadResult{
		SecureURL: "https://cdn.test/" + projectID + "/" + fileName,
		PublicID:  fileName,
	}, nil
}

func (u *stubUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %q: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, raw []byte, manifest domain.AssetManifest, uploader Uploader) *Pipeline {
	t.Helper()
	return NewPipeline("proj-1", raw, "application/zip", Meta{
		Name:      "Demo Site",
		Framework: rewrite.FrameworkViteReact,
	}, manifest, rewrite.ViteReact{}, uploader, 4, nil)
}

func runToFinalize(t *testing.T, p *Pipeline) *Summary {
	t.Helper()
	ctx := context.Background()
	if err := p.Unzip(ctx); err != nil {
		t.Fatalf("Unzip: %v", err)
	}
	if err := p.ProcessFiles(ctx); err != nil {
		t.Fatalf("ProcessFiles: %v", err)
	}
	if err := p.ProcessIndexHTML(ctx); err != nil {
		t.Fatalf("ProcessIndexHTML: %v", err)
	}
	summary, err := p.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return summary
}

func TestPipelineFreshDeploymentUploadsEveryAsset(t *testing.T) {
	raw := buildZip(t, map[string]string{
		"dist/index.html": `<html><link href="/style.css"><script src="/app.js"></script></html>`,
		"dist/style.css":  "body{}",
		"dist/app.js":     "console.log(1)",
	})
	uploader := &stubUploader{}
	p := newTestPipeline(t, raw, nil, uploader)

	summary := runToFinalize(t, p)

	// two assets plus the entry document
	if uploader.count() != 3 {
		t.Fatalf("expected 3 uploads, got %d (%v)", uploader.count(), uploader.calls)
	}
	if summary.UploadsIssued != 3 {
		t.Fatalf("summary reports %d uploads", summary.UploadsIssued)
	}
	if summary.DedupHits != 0 {
		t.Fatalf("fresh deployment reported %d dedup hits", summary.DedupHits)
	}
	if summary.Size != int64(len(raw)) {
		t.Fatalf("summary size %d, want archive byte length %d", summary.Size, len(raw))
	}
	if len(summary.Manifest) != 2 {
		t.Fatalf("manifest has %d records, want 2", len(summary.Manifest))
	}
	if summary.EntryURL == "" {
		t.Fatal("entry URL not recorded")
	}
	if !strings.HasPrefix(summary.DeploymentName, "demo-site-app-") {
		t.Fatalf("unexpected deployment name %q", summary.DeploymentName)
	}
}

func TestPipelineUnchangedRedeployUploadsOnlyEntryDocument(t *testing.T) {
	files := map[string]string{
		"dist/index.html": `<html><link href="/style.css"></html>`,
		"dist/style.css":  "body{}",
	}
	raw := buildZip(t, files)

	first := &stubUploader{}
	firstRun := runToFinalize(t, newTestPipeline(t, raw, nil, first))

	second := &stubUploader{}
	summary := runToFinalize(t, newTestPipeline(t, raw, firstRun.Manifest, second))

	// only index.html: the asset digest is unchanged
	if second.count() != 1 {
		t.Fatalf("expected 1 upload on redeploy, got %d (%v)", second.count(), second.calls)
	}
	if summary.DedupHits != 1 {
		t.Fatalf("expected 1 dedup hit, got %d", summary.DedupHits)
	}
	if summary.Manifest["style.css"].SecureURL != firstRun.Manifest["style.css"].SecureURL {
		t.Fatal("stored URL changed despite unchanged content")
	}
}

func TestPipelineSingleChangedAssetUploadsExactlyOne(t *testing.T) {
	v1 := buildZip(t, map[string]string{
		"dist/index.html": `<html><link href="/style.css"><script src="/app.js"></script></html>`,
		"dist/style.css":  "body{}",
		"dist/app.js":     "console.log(1)",
	})
	firstRun := runToFinalize(t, newTestPipeline(t, v1, nil, &stubUploader{}))

	v2 := buildZip(t, map[string]string{
		"dist/index.html": `<html><link href="/style.css"><script src="/app.js"></script></html>`,
		"dist/style.css":  "body{}",
		"dist/app.js":     "console.log(2)",
	})
	uploader := &stubUploader{}
	summary := runToFinalize(t, newTestPipeline(t, v2, firstRun.Manifest, uploader))

	// app.js plus the entry document
	if uploader.count() != 2 {
		t.Fatalf("expected 2 uploads, got %d (%v)", uploader.count(), uploader.calls)
	}
	if summary.DedupHits != 1 {
		t.Fatalf("expected 1 dedup hit, got %d", summary.DedupHits)
	}
	wantDigest := fingerprint.Sum([]byte("console.log(2)"))
	if summary.Manifest["app.js"].Digest != wantDigest {
		t.Fatal("manifest digest not refreshed for changed asset")
	}
}

func TestPipelineRewritesEntryDocument(t *testing.T) {
	raw := buildZip(t, map[string]string{
		"dist/index.html": `<html><link href="/style.css"></html>`,
		"dist/style.css":  "body{}",
	})
	uploader := &stubUploader{}
	p := newTestPipeline(t, raw, nil, uploader)
	runToFinalize(t, p)

	if strings.Contains(p.entryHTML, `"/style.css"`) {
		t.Fatalf("local reference survived rewriting: %s", p.entryHTML)
	}
	if !strings.Contains(p.entryHTML, "https://cdn.test/proj-1/") {
		t.Fatalf("published URL not substituted: %s", p.entryHTML)
	}
}

func TestPipelineEmptyArchiveFailsWithoutUploads(t *testing.T) {
	raw := buildZip(t, map[string]string{})
	uploader := &stubUploader{}
	p := newTestPipeline(t, raw, nil, uploader)

	ctx := context.Background()
	if err := p.Unzip(ctx); err != nil {
		t.Fatalf("Unzip: %v", err)
	}
	err := p.ProcessFiles(ctx)
	if !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("expected ErrEmptyArchive, got %v", err)
	}
	if uploader.count() != 0 {
		t.Fatalf("empty archive issued %d uploads", uploader.count())
	}
	var pipelineErr *PipelineError
	if !errors.As(err, &pipelineErr) {
		t.Fatalf("expected *PipelineError, got %T", err)
	}
	if pipelineErr.Logs == "" {
		t.Fatal("pipeline error carries no log text")
	}
}

func TestPipelineMissingEntryDocumentFailsFast(t *testing.T) {
	raw := buildZip(t, map[string]string{"dist/app.js": "console.log(1)"})
	uploader := &stubUploader{}
	p := newTestPipeline(t, raw, nil, uploader)

	ctx := context.Background()
	if err := p.Unzip(ctx); err != nil {
		t.Fatalf("Unzip: %v", err)
	}
	if err := p.ProcessFiles(ctx); !errors.Is(err, ErrMissingEntryDocument) {
		t.Fatalf("expected ErrMissingEntryDocument, got %v", err)
	}
	if uploader.count() != 0 {
		t.Fatalf("expected no uploads before entry document check, got %d", uploader.count())
	}
}

func TestPipelineUploadFailureFailsStage(t *testing.T) {
	raw := buildZip(t, map[string]string{
		"dist/index.html": `<html><link href="/style.css"></html>`,
		"dist/style.css":  "body{}",
	})
	uploader := &stubUploader{failFile: "style.css"}
	p := newTestPipeline(t, raw, nil, uploader)

	ctx := context.Background()
	if err := p.Unzip(ctx); err != nil {
		t.Fatalf("Unzip: %v", err)
	}
	err := p.ProcessFiles(ctx)
	if !errors.Is(err, assets.ErrUploadFailed) {
		t.Fatalf("expected wrapped upload failure, got %v", err)
	}
	if p.state != StateFailed {
		t.Fatalf("pipeline state %s, want failed", p.state)
	}
}

func TestPipelineEnforcesStageOrder(t *testing.T) {
	raw := buildZip(t, map[string]string{"dist/index.html": "<html></html>"})
	p := newTestPipeline(t, raw, nil, &stubUploader{})
	ctx := context.Background()

	if err := p.ProcessFiles(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ProcessFiles before Unzip: %v", err)
	}
	if err := p.ProcessIndexHTML(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ProcessIndexHTML before Unzip: %v", err)
	}
	if _, err := p.Finalize(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Finalize before stages: %v", err)
	}

	if err := p.Unzip(ctx); err != nil {
		t.Fatalf("Unzip: %v", err)
	}
	if err := p.Unzip(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Unzip: %v", err)
	}
}

func TestPipelineSkipsUnsupportedFiles(t *testing.T) {
	raw := buildZip(t, map[string]string{
		"dist/index.html":   "<html></html>",
		"dist/app.js.map":   "{}",
		"dist/style.css":    "body{}",
		"dist/.DS_Store":    "junk",
		"dist/notes.txtish": "skip me",
	})
	uploader := &stubUploader{}
	summary := runToFinalize(t, newTestPipeline(t, raw, nil, uploader))

	// style.css plus the entry document; everything else is unclassifiable
	if uploader.count() != 2 {
		t.Fatalf("expected 2 uploads, got %d (%v)", uploader.count(), uploader.calls)
	}
	if len(summary.Manifest) != 1 {
		t.Fatalf("manifest has %d records, want 1", len(summary.Manifest))
	}
}

func TestNormalizeAppName(t *testing.T) {
	name := normalizeAppName("My Cool Site!")
	if !strings.HasPrefix(name, "my-cool-site--app-") {
		t.Fatalf("unexpected normalized name %q", name)
	}
	if strings.ToLower(name) != name {
		t.Fatalf("normalized name not lowercase: %q", name)
	}
}
