package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/modules/analysis"
)

// Publisher writes the artifacts of every run to <dir>/<universe>/<run-id>/ and, when an
// uploader is set, copies them to <prefix>/<universe>/<run-id>/.
type Publisher struct {
	dir      string
	workbook bool
	uploader Uploader
	prefix   string
	log      zerolog.Logger
}

// NewPublisher creates a publisher writing below dir.
func NewPublisher(dir string, log zerolog.Logger) *Publisher {
	return &Publisher{
		dir:      dir,
		workbook: true,
		log:      log.With().Str("component", "artifacts").Logger(),
	}
}

// SetWorkbook toggles the XLSX workbook.
func (p *Publisher) SetWorkbook(enabled bool) {
	p.workbook = enabled
}

// SetUploader enables uploads below prefix.
func (p *Publisher) SetUploader(u Uploader, prefix string) {
	p.uploader = u
	p.prefix = prefix
}

// RunDir returns the directory the artifacts of res are written to.
func (p *Publisher) RunDir(res *analysis.Result) string {
	return filepath.Join(p.dir, res.Universe, runName(res))
}

func runName(res *analysis.Result) string {
	if res.RunID != "" {
		return res.RunID
	}
	return res.StartedAt.UTC().Format("20060102-150405")
}

// Publish implements analysis.Publisher.
func (p *Publisher) Publish(ctx context.Context, res *analysis.Result) error {
	_, err := p.Export(ctx, res)
	return err
}

// Export writes every artifact of res, uploads them if configured, and returns the
// written file paths.
func (p *Publisher) Export(ctx context.Context, res *analysis.Result) ([]string, error) {
	start := time.Now()
	dir := p.RunDir(res)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tables := Tables(res)
	files := make([]string, 0, len(tables)+1)
	for _, t := range tables {
		file, err := WriteCSV(dir, t)
		if err != nil {
			return files, err
		}
		files = append(files, file)
	}
	if p.workbook {
		file, err := WriteWorkbook(dir, tables)
		if err != nil {
			return files, err
		}
		files = append(files, file)
	}

	if p.uploader != nil {
		if err := p.upload(ctx, res, files); err != nil {
			return files, err
		}
	}

	p.log.Info().
		Str("universe", res.Universe).
		Str("run_id", res.RunID).
		Str("dir", dir).
		Int("files", len(files)).
		Bool("uploaded", p.uploader != nil).
		Dur("duration", time.Since(start)).
		Msg("Artifacts exported")
	return files, nil
}

func (p *Publisher) upload(ctx context.Context, res *analysis.Result, files []string) error {
	for _, file := range files {
		key := path.Join(p.prefix, res.Universe, runName(res), filepath.Base(file))
		if err := p.uploadFile(ctx, key, file); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) uploadFile(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()
	return p.uploader.Upload(ctx, key, f)
}
