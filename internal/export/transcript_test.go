package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/model"
)

var (
	alice = model.Profile{UserID: "alice", DisplayName: "Alice", Handle: "ally"}
	bob   = model.Profile{UserID: "bob", Handle: "bob"}
)

func msgAt(minute int, sender, text, image string) model.Message {
	return model.Message{
		ConversationID: "alice_bob",
		SenderID:       sender,
		Text:           text,
		ImageURL:       image,
		SentAt:         time.Date(2026, 3, 1, 9, minute, 0, 0, time.UTC),
		Status:         model.Seen,
	}
}

// render writes an uncompressed transcript so page text stays searchable.
func render(t *testing.T, msgs []model.Message, opts Options) (string, int) {
	t.Helper()
	opts.Compress = false
	var buf bytes.Buffer
	pages, err := Transcript(&buf, msgs, alice, bob, opts)
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "%PDF-") {
		t.Fatalf("output does not start with a PDF header: %q", out[:min(len(out), 16)])
	}
	if n := len(pageObject.FindAllString(out, -1)); n != pages {
		t.Errorf("document has %d page objects, Transcript reported %d", n, pages)
	}
	return out, pages
}

var pageObject = regexp.MustCompile(`/Type /Page[^s]`)

func TestTranscriptSinglePage(t *testing.T) {
	msgs := []model.Message{
		msgAt(0, "alice", "hi", ""),
		msgAt(1, "bob", "", "https://img.example.com/a.jpg"),
	}
	out, pages := render(t, msgs, Options{Location: time.UTC})
	if pages != 1 {
		t.Errorf("pages = %d, want 1", pages)
	}

	for _, want := range []string{
		`Conversation between Alice \(@ally\) and bob`,
		"[2026-03-01 09:00] Alice: hi",
		"[2026-03-01 09:01] bob: [image] https://img.example.com/a.jpg",
		"Page 1 of 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
}

func TestTranscriptPaginates(t *testing.T) {
	var msgs []model.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, msgAt(i, "alice", fmt.Sprintf("line %d", i), ""))
	}
	out, pages := render(t, msgs, Options{LinesPerPage: 2, Location: time.UTC})
	if pages != 3 {
		t.Fatalf("got %d pages, want 3", pages)
	}
	for _, want := range []string{"Page 1 of 3", "Page 3 of 3", "line 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
	if strings.Contains(out, "{nb}") {
		t.Error("page total alias was not replaced")
	}
}

func TestRenderMessageWrapsLongText(t *testing.T) {
	long := strings.Repeat("word ", 30)
	names := map[string]string{"alice": "Alice"}
	lines := renderMessage(msgAt(0, "alice", long, ""), names, Options{Width: 60, Location: time.UTC})
	if len(lines) < 2 {
		t.Fatalf("got %d lines, want the text wrapped", len(lines))
	}
	for _, l := range lines {
		if len(l) > 60 {
			t.Errorf("line longer than width: %q", l)
		}
	}
}

func TestTranscriptEmpty(t *testing.T) {
	out, pages := render(t, nil, Options{})
	if pages != 1 {
		t.Errorf("pages = %d, want 1", pages)
	}
	if !strings.Contains(out, `\(no messages\)`) {
		t.Error("empty transcript has no placeholder line")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alice_bob.pdf")
	pages, err := WriteFile(path, []model.Message{msgAt(0, "alice", "hi", "")}, alice, bob, DefaultOptions)
	if err != nil {
		t.Fatal(err)
	}
	if pages != 1 {
		t.Errorf("pages = %d, want 1", pages)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %o, want 0600", info.Mode().Perm())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("file is not a PDF")
	}
}
