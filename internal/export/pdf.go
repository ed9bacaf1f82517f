package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"advisory/api/internal/advisory"
	"advisory/api/internal/logging"
	"advisory/api/internal/store"
)

// percentEncodeForDataURL encodes a string for use in a data URL.
// Spaces become %20, never +.
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			result.WriteRune(r)
		default:
			for _, b := range []byte(string(r)) {
				fmt.Fprintf(&result, "%%%02X", b)
			}
		}
	}
	return result.String()
}

var questionTemplate = template.Must(template.New("question").Funcs(template.FuncMap{
	"date":       FormatDateID,
	"categories": advisory.DescribeCategories,
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Advisory {{.NamaPemohon}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; font-size: 1.4rem; }
    table { border-collapse: collapse; width: 100%; }
    th { text-align: left; width: 32%; vertical-align: top; padding: 0.4rem; background: #f5f5f5; }
    td { padding: 0.4rem; vertical-align: top; }
    .answer { margin-top: 1.5rem; padding: 1rem; border-left: 3px solid #333; background: #fafafa; }
  </style>
</head>
<body>
  <h1>Permohonan Advisory</h1>
  <table>
    <tr><th>Tanggal Permohonan</th><td>{{date .TanggalPermohonan}}</td></tr>
    <tr><th>Nama Pemohon</th><td>{{.NamaPemohon}}</td></tr>
    <tr><th>Divisi/Instansi</th><td>{{.DivisiInstansi}}</td></tr>
    <tr><th>Unit Bisnis/Proyek/Anak Usaha</th><td>{{.UnitBisnis}}</td></tr>
    <tr><th>Jenis Advisory</th><td>{{categories .JenisAdvisory}}</td></tr>
    <tr><th>Data/Informasi</th><td>{{.DataInformasi}}</td></tr>
    <tr><th>Advisory Yang Diinginkan</th><td>{{.AdvisoryDiinginkan}}</td></tr>
    <tr><th>Status</th><td>{{.Status.Label}}</td></tr>
  </table>
  {{with .Answer}}
  <div class="answer">
    <p><strong>No. Registrasi:</strong> {{.NoRegistrasi}}</p>
    <p><strong>Tanggal Jawaban:</strong> {{date .TanggalJawaban}}</p>
    {{if $.AnswererName}}<p><strong>Penjawab:</strong> {{$.AnswererName}}</p>{{end}}
    <div>{{$.NoteHTML}}</div>
  </div>
  {{end}}
</body>
</html>`))

type questionView struct {
	store.QuestionWithAnswer
	NoteHTML template.HTML
}

// RenderQuestionHTML renders one question and its answer as a standalone page.
// The note goes through SanitizeNote before it is trusted as HTML.
func RenderQuestionHTML(q store.QuestionWithAnswer) (string, error) {
	view := questionView{QuestionWithAnswer: q}
	if q.Answer != nil {
		view.NoteHTML = template.HTML(SanitizeNote(q.Answer.TechnicalAdvisoryNote))
	}
	var buf bytes.Buffer
	if err := questionTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render question: %w", err)
	}
	return buf.String(), nil
}

// Chrome renders HTML to PDF or PNG with a headless Chromium.
type Chrome struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewChrome(timeout time.Duration, logger *slog.Logger) *Chrome {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Chrome{timeout: timeout, logger: logger}
}

func browserAvailable() bool {
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// RenderQuestion produces the single question export in format.
func (c *Chrome) RenderQuestion(ctx context.Context, q store.QuestionWithAnswer, format Format) (*Result, error) {
	if format != FormatPDF && format != FormatPNG {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if !browserAvailable() {
		return nil, fmt.Errorf("%w: chromium not installed", ErrBrowserMissing)
	}
	doc, err := RenderQuestionHTML(q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var data []byte
	capture := chromedp.FullScreenshot(&data, 100)
	if format == FormatPDF {
		capture = chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			data, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27). // A4
				WithPaperHeight(11.69).
				WithMarginTop(0.6).
				WithMarginBottom(0.6).
				WithMarginLeft(0.6).
				WithMarginRight(0.6).
				Do(ctx)
			return err
		})
	}

	started := time.Now()
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("data:text/html;charset=utf-8,"+percentEncodeForDataURL(doc)),
		chromedp.WaitReady("body"),
		capture,
	)
	if err != nil {
		return nil, fmt.Errorf("chrome %s generation failed: %w", format, err)
	}
	c.logger.DebugContext(ctx, "question rendered", "question_id", q.ID, "format", format, "duration_ms", time.Since(started).Milliseconds())

	mime := "application/pdf"
	if format == FormatPNG {
		mime = "image/png"
	}
	return &Result{
		Data:     data,
		Filename: questionFilename(q) + "." + string(format),
		MimeType: mime,
	}, nil
}

// questionFilename prefers the registration number, which is unique.
func questionFilename(q store.QuestionWithAnswer) string {
	base := "advisory_" + q.ID
	if q.Answer != nil && q.Answer.NoRegistrasi != "" {
		base = "advisory_" + q.Answer.NoRegistrasi
	}
	return sanitizeFilename(base)
}

// sanitizeFilename keeps letters, digits, '-' and '_'; '/' and spaces become '-'.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '/':
			b.WriteRune('-')
		}
	}
	result := b.String()
	if len(result) > 60 {
		result = result[:60]
	}
	if result == "" {
		result = "advisory"
	}
	return result
}
