package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"

	"github.com/go-pdf/fpdf"

	"tinytales/internal/compositor"
	"tinytales/internal/logging"
	"tinytales/internal/services"
	"tinytales/internal/story"
)

const (
	captureFailedText = "Content capture failed for this page."
	notFoundText      = "Content not found for this page."
)

// PDFOptions shapes the PDF export.
type PDFOptions struct {
	Margin   float64
	Card     compositor.CardOptions
	Prepare  compositor.PrepareFunc
	Progress ProgressFunc
	Logger   *slog.Logger
}

// surfaceFactory lets tests substitute the rendered cards.
type surfaceFactory func(sentences []story.Sentence, opts compositor.CardOptions) (compositor.Surface, error)

func cardSurface(sentences []story.Sentence, opts compositor.CardOptions) (compositor.Surface, error) {
	return compositor.NewCardSurface(sentences, opts)
}

// PDF writes one A4 page per sentence to w.
func PDF(ctx context.Context, w io.Writer, sentences []story.Sentence, opts PDFOptions) (Result, error) {
	return writePDF(ctx, w, sentences, opts, cardSurface)
}

func writePDF(ctx context.Context, w io.Writer, sentences []story.Sentence, opts PDFOptions, newSurface surfaceFactory) (Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "export.pdf")
	result := Result{Format: FormatPDF, MimeType: "application/pdf", Extension: "pdf"}
	if len(sentences) == 0 {
		return result, services.Wrap(services.ErrValidation, "export", "pdf", "there is no story to export", nil)
	}
	if opts.Margin <= 0 {
		opts.Margin = 20
	}
	if opts.Card.Scale <= 0 {
		opts.Card.Scale = 2
	}
	surface, err := newSurface(sentences, opts.Card)
	if err != nil {
		return result, fmt.Errorf("prepare cards: %w", err)
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCreator("tinytales", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 14)
	pageW, pageH := pdf.GetPageSize()
	box := compositor.Rect{X: opts.Margin, Y: opts.Margin, W: pageW - 2*opts.Margin, H: pageH - 2*opts.Margin}

	total := surface.Len()
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return result, services.Wrap(services.ErrCancelled, "export", "pdf", "pdf export cancelled", err)
		}
		pageLogger := logging.WithContext(services.WithSentenceIndex(ctx, i), logger)
		pdf.AddPage()
		if surface.Element(i) == nil {
			pageLogger.Warn("card not found; adding placeholder page")
			centeredText(pdf, notFoundText, pageW, pageH)
			result.Failed++
			pageDone(opts.Progress, i, total)
			continue
		}
		captured, err := capture(ctx, surface, opts.Prepare, i)
		if err != nil {
			if ctx.Err() != nil {
				return result, services.Wrap(services.ErrCancelled, "export", "pdf", "pdf export cancelled", ctx.Err())
			}
			pageLogger.Warn("content capture failed; adding grey page", logging.Error(err))
			failedPage(pdf, box, pageW, pageH)
			result.Failed++
			pageDone(opts.Progress, i, total)
			continue
		}
		bounds := captured.Bounds()
		place := compositor.FitIn(float64(bounds.Dx()), float64(bounds.Dy()), box)
		if place.Empty() {
			pageLogger.Warn("capture has zero size; adding grey page")
			failedPage(pdf, box, pageW, pageH)
			result.Failed++
			pageDone(opts.Progress, i, total)
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, captured); err != nil {
			return result, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		name := fmt.Sprintf("page-%d", i+1)
		imageOpts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, imageOpts, &buf)
		pdf.ImageOptions(name, place.X, place.Y, place.W, place.H, false, imageOpts, 0, "")
		result.Frames++
		pageDone(opts.Progress, i, total)
	}
	if err := pdf.Error(); err != nil {
		return result, fmt.Errorf("render pdf: %w", err)
	}
	cw := &countingWriter{w: w}
	if err := pdf.Output(cw); err != nil {
		return result, fmt.Errorf("write pdf: %w", err)
	}
	result.Size = cw.n
	logger.Info("pdf export complete",
		logging.Int("pages", total),
		logging.Int("failed_pages", result.Failed),
		logging.Int64("bytes", result.Size),
	)
	return result, nil
}

func pageDone(progress ProgressFunc, i, total int) {
	progress.report(float64(i+1)/float64(total), fmt.Sprintf("Page %d/%d added.", i+1, total))
}

func failedPage(pdf *fpdf.Fpdf, box compositor.Rect, pageW, pageH float64) {
	pdf.SetFillColor(200, 200, 200)
	pdf.Rect(box.X, box.Y, box.W, box.H, "F")
	centeredText(pdf, captureFailedText, pageW, pageH)
}

func centeredText(pdf *fpdf.Fpdf, text string, pageW, pageH float64) {
	pdf.SetTextColor(0, 0, 0)
	pdf.Text((pageW-pdf.GetStringWidth(text))/2, pageH/2, text)
}
