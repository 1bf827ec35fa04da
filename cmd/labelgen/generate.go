package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/box-labels/internal/infrastructure/archive"
	"github.com/kirillkom/box-labels/internal/infrastructure/qrcode"
	"github.com/kirillkom/box-labels/internal/infrastructure/spreadsheet"
	"github.com/kirillkom/box-labels/internal/labeling"
	"github.com/kirillkom/box-labels/internal/observability/logging"
)

type generateOptions struct {
	records  string
	images   string
	output   string
	style    string
	qrSize   int
	logLevel string
	maxPages int
	maxBoxes int
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a label document from a spreadsheet and an image folder or zip",
		Example: `  labelgen generate --records stock.xlsx --images photos.zip --output labels.docx
  labelgen generate --records stock.xlsx --images ./photos --style style.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.records, "records", "", "product spreadsheet (.xlsx)")
	flags.StringVar(&opts.images, "images", "", "directory or .zip archive with product pictures")
	flags.StringVarP(&opts.output, "output", "o", "labels.docx", "output document path")
	flags.StringVar(&opts.style, "style", os.Getenv("LABEL_STYLE_PATH"), "optional YAML label style file")
	flags.IntVar(&opts.qrSize, "qr-size", qrcode.DefaultSizePixels, "QR raster size in pixels")
	flags.IntVar(&opts.maxPages, "max-pages", labeling.DefaultMaxPages, "refuse documents with more pages")
	flags.IntVar(&opts.maxBoxes, "max-boxes", labeling.DefaultMaxBoxesPerRecord, "refuse rows with a larger box count")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level for image warnings (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("records")
	_ = cmd.MarkFlagRequired("images")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.NewTextLogger(cmd.ErrOrStderr(), opts.logLevel)

	style, err := labeling.LoadStyle(opts.style)
	if err != nil {
		return err
	}
	records, err := spreadsheet.ParseFile(opts.records)
	if err != nil {
		return err
	}

	imagesRoot, cleanup, err := prepareImages(ctx, opts.images)
	if err != nil {
		return err
	}
	defer cleanup()

	assembler := labeling.NewAssembler(
		labeling.FileImageLoader{},
		qrcode.New(opts.qrSize),
		labeling.WithStyle(style),
		labeling.WithLogger(logger),
		labeling.WithPageLimits(labeling.PageLimits{MaxPages: opts.maxPages, MaxBoxesPerRecord: opts.maxBoxes}),
	)
	raw, stats, err := assembler.Assemble(records, imagesRoot)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(opts.output, raw); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"wrote %s: %d pages for %d records (images: %d found, %d missing, %d broken)\n",
		opts.output, stats.Pages, stats.Records, stats.ImagesFound, stats.ImagesMissing, stats.ImagesBroken,
	)
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place, so a failed write never leaves a truncated document behind.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync document: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod document: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move document into place: %w", err)
	}
	return nil
}

// prepareImages returns a directory holding the pictures. A .zip argument is
// extracted into a temporary directory removed by cleanup.
func prepareImages(ctx context.Context, path string) (string, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("images: %w", err)
	}
	if info.IsDir() {
		return path, func() {}, nil
	}
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return "", nil, fmt.Errorf("images: %s is neither a directory nor a .zip archive", path)
	}

	dir, err := os.MkdirTemp("", "labelgen-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	if _, err := archive.New(nil, archive.DefaultLimits()).UnpackFile(ctx, path, dir); err != nil {
		cleanup()
		return "", nil, err
	}
	return dir, cleanup, nil
}
