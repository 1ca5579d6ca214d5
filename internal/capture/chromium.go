// Package capture renders print documents to PDF in headless Chromium.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	appLog "cmscal/internal/log"
	"cmscal/internal/printdoc"
)

const DefaultTimeoutSec = 30

// Options configure the headless print surface.
type Options struct {
	// OutputDir receives one PDF per print job, e.g. "/var/lib/cmscal/print".
	OutputDir string

	// Timeout bounds each step (open, write, print). If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration

	// ExecPath optionally points at a specific Chromium binary.
	ExecPath string
}

// ChromeProvider opens headless Chromium tabs as print surfaces. Each Open
// launches its own browser, which exits when the surface is closed.
type ChromeProvider struct {
	opts        Options
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeProvider prepares a provider bound to base.
func NewChromeProvider(base context.Context, opts Options) *ChromeProvider {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "./cache/print"
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(base, allocOpts...)

	return &ChromeProvider{opts: opts, allocCtx: allocCtx, allocCancel: allocCancel}
}

// Close stops any browser still running for this provider.
func (p *ChromeProvider) Close() {
	p.allocCancel()
}

// Open starts a new blank tab. Any failure (no browser installed, sandbox
// refused, ...) means the surface is unavailable.
func (p *ChromeProvider) Open(_ context.Context) (printdoc.Surface, error) {
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("capture: output dir: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(p.allocCtx)

	// The first Run starts the browser and binds it to the context it is
	// given, so it must not carry a step timeout.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("capture: chromedp start failed: %w", err)
	}

	ctx, timeoutCancel := context.WithTimeout(tabCtx, p.opts.Timeout)
	defer timeoutCancel()

	// Scripts stay off: the document's own window.print/close would race
	// with PrintToPDF.
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetScriptExecutionDisabled(true).Do(ctx)
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture: chromedp open failed: %w", err)
	}

	return &chromeSurface{
		ctx:     tabCtx,
		cancel:  cancel,
		timeout: p.opts.Timeout,
		outDir:  p.opts.OutputDir,
	}, nil
}

type chromeSurface struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	outDir  string
}

func (s *chromeSurface) Write(_ context.Context, doc []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, string(doc)).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("capture: set document: %w", err)
	}
	return nil
}

// Print renders the tab to PDF and writes it under the output directory.
func (s *chromeSurface) Print(_ context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
		if err != nil {
			return err
		}
		pdf = buf
		return nil
	}))
	if err != nil {
		return "", fmt.Errorf("capture: print to pdf: %w", err)
	}

	path := filepath.Join(s.outDir, uuid.NewString()+".pdf")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("capture: failed to write PDF: %w", err)
	}

	appLog.Info("print pdf written", "path", path, "bytes", len(pdf))
	return path, nil
}

func (s *chromeSurface) Close() error {
	s.cancel()
	return nil
}
