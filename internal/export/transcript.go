package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/matheus3301/chatsync/internal/model"
)

// Options controls transcript layout.
type Options struct {
	// LinesPerPage is the number of message lines between page header and footer.
	LinesPerPage int
	// Width wraps message text; 0 disables wrapping.
	Width    int
	Location *time.Location
	// Compress deflates page content streams.
	Compress bool
}

// DefaultOptions fits an A4 page in 9pt Courier.
var DefaultOptions = Options{LinesPerPage: 50, Width: 80, Compress: true}

const (
	timeLayout = "2006-01-02 15:04"
	lineHeight = 4.5
)

// Transcript renders msgs, oldest first, as a paginated A4 PDF between
// participants a and b. It returns the number of pages written.
func Transcript(w io.Writer, msgs []model.Message, a, b model.Profile, opts Options) (int, error) {
	if opts.LinesPerPage <= 0 {
		opts.LinesPerPage = DefaultOptions.LinesPerPage
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	names := map[string]string{a.UserID: a.Name(), b.UserID: b.Name()}
	var lines []string
	for _, m := range msgs {
		lines = append(lines, renderMessage(m, names, opts)...)
	}
	if len(lines) == 0 {
		lines = []string{"(no messages)"}
	}
	title := fmt.Sprintf("Conversation between %s and %s", label(a), label(b))

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetCreator("chatsync", true)
	pdf.SetCompression(opts.Compress)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 8, tr(title), "B", 1, "L", false, 0, "")
		pdf.Ln(3)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "T", 0, "C", false, 0, "")
	})

	for start := 0; start < len(lines); start += opts.LinesPerPage {
		pdf.AddPage()
		pdf.SetFont("Courier", "", 9)
		for _, l := range lines[start:min(start+opts.LinesPerPage, len(lines))] {
			pdf.CellFormat(0, lineHeight, tr(l), "", 1, "L", false, 0, "")
		}
	}

	pages := pdf.PageCount()
	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("render pdf: %w", err)
	}
	return pages, nil
}

// WriteFile renders the transcript to path with 0600 permissions.
func WriteFile(path string, msgs []model.Message, a, b model.Profile, opts Options) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, err
	}
	pages, renderErr := Transcript(f, msgs, a, b, opts)
	if closeErr := f.Close(); closeErr != nil && renderErr == nil {
		return 0, closeErr
	}
	return pages, renderErr
}

func label(p model.Profile) string {
	if p.Handle != "" && p.Handle != p.Name() {
		return fmt.Sprintf("%s (@%s)", p.Name(), p.Handle)
	}
	return p.Name()
}

func renderMessage(m model.Message, names map[string]string, opts Options) []string {
	name, ok := names[m.SenderID]
	if !ok {
		name = m.SenderID
	}
	prefix := fmt.Sprintf("[%s] %s: ", m.SentAt.In(opts.Location).Format(timeLayout), name)

	var body []string
	if m.HasImage() {
		body = append(body, "[image] "+m.ImageURL)
	}
	if m.HasText() {
		body = append(body, strings.Split(m.Text, "\n")...)
	}

	indent := strings.Repeat(" ", len(prefix))
	var out []string
	for i, para := range body {
		lead := indent
		if i == 0 {
			lead = prefix
		}
		for j, l := range wrap(para, opts.Width-len(prefix)) {
			if j > 0 {
				lead = indent
			}
			out = append(out, lead+l)
		}
	}
	return out
}

// wrap splits s on word boundaries into lines of at most width runes.
// Words longer than width stay on their own line.
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if width <= 0 || len(words) == 0 {
		return []string{s}
	}
	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(w)) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	return append(lines, cur.String())
}
