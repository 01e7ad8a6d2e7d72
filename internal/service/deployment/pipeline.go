package deployment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/service/archive"
	"github.com/Mayuresh-22/NimbusWave/internal/service/assets"
	"github.com/Mayuresh-22/NimbusWave/internal/service/fingerprint"
	"github.com/Mayuresh-22/NimbusWave/internal/service/mediatype"
	"github.com/Mayuresh-22/NimbusWave/internal/service/rewrite"
)

// State is the pipeline's position in its stage sequence. There is no path
// backward and no skipping: each stage validates its predecessor.
type State int

const (
	StateCreated State = iota
	StateUnzipped
	StateFilesProcessed
	StateEntryProcessed
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateUnzipped:
		return "unzipped"
	case StateFilesProcessed:
		return "files_processed"
	case StateEntryProcessed:
		return "entry_processed"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Uploader publishes file bytes to the remote asset store.
type Uploader interface {
	Upload(ctx context.Context, content []byte, baseName string, media mediatype.Descriptor, projectID string) (*assets.UploadResult, error)
}

// Meta carries the deploy form fields that describe the project.
type Meta struct {
	Name        string
	Description string
	Framework   string
}

// Summary is the outcome of one finalized deployment.
type Summary struct {
	DeploymentID   string
	DeploymentName string
	EntryURL       string
	Manifest       domain.AssetManifest
	Size           int64
	Duration       time.Duration
	Logs           string
	UploadsIssued  int
	DedupHits      int
}

// Pipeline processes one uploaded archive into a published deployment:
// unzip, classify+fingerprint+publish assets, rewrite and publish the entry
// document, then finalize. Stages mutate the pipeline in place and must be
// called sequentially; any failure puts the pipeline in StateFailed.
type Pipeline struct {
	projectID   string
	meta        Meta
	raw         []byte
	contentType string
	strategy    rewrite.Strategy
	uploader    Uploader
	manifest    domain.AssetManifest
	concurrency int
	notify      func(string)

	state         State
	archive       *archive.Archive
	entryDoc      archive.Entry
	hasEntryDoc   bool
	entryHTML     string
	entryURL      string
	uploadsIssued int
	dedupHits     int
	startedAt     time.Time
	logBuf        strings.Builder
}

// NewPipeline prepares a deployment run. The manifest is cloned so the
// caller's project state stays untouched until the run is persisted.
func NewPipeline(projectID string, raw []byte, contentType string, meta Meta, manifest domain.AssetManifest, strategy rewrite.Strategy, uploader Uploader, concurrency int, notify func(string)) *Pipeline {
	if manifest == nil {
		manifest = make(domain.AssetManifest)
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	p := &Pipeline{
		projectID:   projectID,
		meta:        meta,
		raw:         raw,
		contentType: contentType,
		strategy:    strategy,
		uploader:    uploader,
		manifest:    manifest.Clone(),
		concurrency: concurrency,
		notify:      notify,
		state:       StateCreated,
		startedAt:   time.Now().UTC(),
	}
	p.log(fmt.Sprintf("deployment pipeline initialized for project %s", projectID))
	return p
}

// log appends a timestamped line to the running log and forwards it to the
// notify hook, if any.
func (p *Pipeline) log(message string) {
	line := time.Now().UTC().Format(time.RFC3339) + ": " + message
	p.logBuf.WriteString(line)
	p.logBuf.WriteByte('\n')
	if p.notify != nil {
		p.notify(line)
	}
}

// Logs returns the accumulated log text. Valid in every state, including
// StateFailed.
func (p *Pipeline) Logs() string {
	return p.logBuf.String()
}

// Unzip parses the uploaded archive and locates the entry document.
func (p *Pipeline) Unzip(ctx context.Context) error {
	if err := p.require(StateCreated, "unzip"); err != nil {
		return err
	}
	p.log("unzipping project files")

	parsed, err := archive.Open(p.raw, p.contentType)
	if err != nil {
		return p.fail("unzip", err)
	}
	p.archive = parsed
	if doc, ok := parsed.EntryDocument(); ok {
		p.entryDoc = doc
		p.hasEntryDoc = true
		p.entryHTML = string(doc.Data)
	}

	p.state = StateUnzipped
	p.log(fmt.Sprintf("unzip successful, %d entries", parsed.Len()))
	return nil
}

// assetItem is one classifiable, non-entry archive entry with its dedup
// decision.
type assetItem struct {
	entry   archive.Entry
	media   mediatype.Descriptor
	digest  string
	changed bool
}

// ProcessFiles classifies, fingerprints, and publishes every non-entry
// asset, updating the manifest and rewriting the entry document one asset at
// a time. Changed assets are uploaded as a concurrent batch; the stage only
// proceeds once every dispatched upload has settled, and a single failure
// fails the stage without retrying or rolling back uploads that already
// succeeded.
func (p *Pipeline) ProcessFiles(ctx context.Context) error {
	if err := p.require(StateUnzipped, "process files"); err != nil {
		return err
	}
	p.log("processing project files")

	if p.archive.Len() == 0 {
		return p.fail("process files", ErrEmptyArchive)
	}
	if !p.hasEntryDoc {
		return p.fail("process files", ErrMissingEntryDocument)
	}

	items := p.collectAssets()

	if err := p.uploadChanged(ctx, items); err != nil {
		return p.fail("process files", err)
	}

	// Rewrites run in archive order over the accumulating document, after
	// every upload has settled.
	for _, item := range items {
		relPath := item.entry.RelativePath()
		record := p.manifest[relPath]
		p.entryHTML = p.strategy.Rewrite(p.entryHTML, map[string]string{relPath: record.SecureURL}, true)
		if item.changed {
			p.log(fmt.Sprintf("processed file %s (uploaded)", relPath))
		} else {
			p.log(fmt.Sprintf("processed file %s (unchanged, reused stored URL)", relPath))
		}
	}

	p.state = StateFilesProcessed
	p.log("successfully processed all the files")
	return nil
}

// collectAssets walks the archive in order and decides, per entry, whether
// it is uploadable and whether its content changed. The dedup gate runs here,
// strictly before any upload is issued.
func (p *Pipeline) collectAssets() []assetItem {
	items := make([]assetItem, 0, p.archive.Len())
	for _, entry := range p.archive.Entries() {
		if entry.IsEntryDocument() {
			continue
		}
		media, ok := mediatype.Classify(entry.Extension())
		if !ok {
			p.log(fmt.Sprintf("skipping file %s", entry.RelativePath()))
			continue
		}
		digest := fingerprint.Sum(entry.Data)
		changed := fingerprint.Changed(p.manifest, entry.RelativePath(), digest)
		if !changed {
			p.dedupHits++
		}
		items = append(items, assetItem{entry: entry, media: media, digest: digest, changed: changed})
	}
	return items
}

// uploadChanged publishes all changed assets concurrently and stores their
// new remote identities in the manifest.
func (p *Pipeline) uploadChanged(ctx context.Context, items []assetItem) error {
	results := make([]*assets.UploadResult, len(items))
	uploadErrs := make([]error, len(items))

	var group errgroup.Group
	group.SetLimit(p.concurrency)
	for i := range items {
		if !items[i].changed {
			continue
		}
		p.uploadsIssued++
		i := i
		group.Go(func() error {
			item := items[i]
			result, err := p.uploader.Upload(ctx, item.entry.Data, item.entry.BaseName(), item.media, p.projectID)
			if err != nil {
				uploadErrs[i] = fmt.Errorf("upload failed for %q: %w", item.entry.RelativePath(), err)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()

	for _, err := range uploadErrs {
		if err != nil {
			return err
		}
	}

	for i, item := range items {
		if !item.changed {
			continue
		}
		result := results[i]
		p.manifest[item.entry.RelativePath()] = domain.AssetRecord{
			FileName:  fmt.Sprintf("%s.%s", item.entry.BaseName(), item.media.Extension),
			PublicID:  result.PublicID,
			SecureURL: result.SecureURL,
			Digest:    item.digest,
		}
	}
	return nil
}

// ProcessIndexHTML publishes the fully-rewritten entry document and records
// its remote URL as the project's public entry point.
func (p *Pipeline) ProcessIndexHTML(ctx context.Context) error {
	if err := p.require(StateFilesProcessed, "process index.html"); err != nil {
		return err
	}
	p.log("processing index.html")

	p.uploadsIssued++
	result, err := p.uploader.Upload(ctx, []byte(p.entryHTML), "index", mediatype.HTML, p.projectID)
	if err != nil {
		return p.fail("process index.html", fmt.Errorf("upload failed for %q: %w", archive.EntryDocumentName, err))
	}
	p.entryURL = result.SecureURL

	p.state = StateEntryProcessed
	p.log("processed index.html successfully")
	return nil
}

// Finalize assembles the deployment summary: fresh deployment id, normalized
// deployment name, archive byte size, elapsed wall-clock time, full log, and
// the updated manifest.
func (p *Pipeline) Finalize() (*Summary, error) {
	if err := p.require(StateEntryProcessed, "finalize"); err != nil {
		return nil, err
	}
	p.state = StateFinalized
	p.log("deployment finalized")

	return &Summary{
		DeploymentID:   uuid.NewString(),
		DeploymentName: normalizeAppName(p.meta.Name),
		EntryURL:       p.entryURL,
		Manifest:       p.manifest,
		Size:           int64(len(p.raw)),
		Duration:       time.Since(p.startedAt),
		Logs:           p.Logs(),
		UploadsIssued:  p.uploadsIssued,
		DedupHits:      p.dedupHits,
	}, nil
}

func (p *Pipeline) require(expected State, stage string) error {
	if p.state != expected {
		return fmt.Errorf("%w: %s called in state %s", ErrInvalidTransition, stage, p.state)
	}
	return nil
}

func (p *Pipeline) fail(stage string, err error) error {
	p.log(stage + " failed: " + err.Error())
	p.state = StateFailed
	return &PipelineError{Stage: stage, Logs: p.Logs(), Err: err}
}

// normalizeAppName lowercases the project name, replaces every
// non-alphanumeric run with hyphens, and appends a fixed suffix plus a short
// random disambiguator. Generated once per project and stable thereafter.
func normalizeAppName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return b.String() + "-app-" + short
}
