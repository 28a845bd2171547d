package book

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"only blank lines", "\n\n  \n\t\n", nil},
		{"single paragraph", "one line\nsecond line", []string{"one line\nsecond line"}},
		{"two paragraphs", "first\n\nsecond", []string{"first", "second"}},
		{"runs of blank lines", "first\n\n\n\n  \nsecond\n", []string{"first", "second"}},
		{"crlf", "first\r\n\r\nsecond", []string{"first", "second"}},
		{"leading blank lines", "\n\n# Title\nbody", []string{"# Title\nbody"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitChunks(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SplitChunks(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func paragraph(n int, fill string) string {
	return strings.Repeat(fill, n)
}

func TestPaginateWorkClosesPageBeforeOverflow(t *testing.T) {
	body := paragraph(500, "a") + "\n\n" + paragraph(600, "b") + "\n\n" + paragraph(500, "c")
	frags := PaginateWork(Document{Title: "Three", BodyMarkdown: body}, 1000)

	if len(frags) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(frags))
	}
	for i, want := range []string{"a", "b", "c"} {
		if len(frags[i].Chunks) != 1 || !strings.HasPrefix(frags[i].Chunks[0], want) {
			t.Errorf("page %d: unexpected chunks %v", i, frags[i].Chunks)
		}
		if frags[i].Ordinal != i {
			t.Errorf("page %d: ordinal = %d", i, frags[i].Ordinal)
		}
		if frags[i].Kind != KindContent {
			t.Errorf("page %d: kind = %s", i, frags[i].Kind)
		}
		if frags[i].SourceWorkTitle != "Three" {
			t.Errorf("page %d: source title = %q", i, frags[i].SourceWorkTitle)
		}
	}
}

func TestPaginateWorkFillsPage(t *testing.T) {
	body := paragraph(300, "a") + "\n\n" + paragraph(300, "b") + "\n\n" + paragraph(300, "c") + "\n\n" + paragraph(300, "d")
	frags := PaginateWork(Document{BodyMarkdown: body}, 1000)

	if len(frags) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(frags))
	}
	if len(frags[0].Chunks) != 3 || len(frags[1].Chunks) != 1 {
		t.Errorf("unexpected packing: %d + %d chunks", len(frags[0].Chunks), len(frags[1].Chunks))
	}
}

func TestPaginateWorkCountsSeparators(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
		pages int
	}{
		{"exactly full", []int{500, 498}, 1},
		{"one over with separator", []int{500, 499}, 2},
		{"three chunks", []int{332, 332, 332}, 1},
		{"three chunks one over", []int{332, 332, 333}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var parts []string
			for i, n := range tt.sizes {
				parts = append(parts, paragraph(n, string(rune('a'+i))))
			}
			frags := PaginateWork(Document{BodyMarkdown: strings.Join(parts, "\n\n")}, 1000)
			if len(frags) != tt.pages {
				t.Fatalf("expected %d pages, got %d", tt.pages, len(frags))
			}
			for _, f := range frags {
				if got := utf8.RuneCountInString(f.Markdown()); got > 1000 && len(f.Chunks) > 1 {
					t.Errorf("page %d holds %d characters over %d chunks", f.Ordinal, got, len(f.Chunks))
				}
			}
		})
	}
}

func TestPaginateWorkOversizedChunk(t *testing.T) {
	body := "short\n\n" + paragraph(2500, "x") + "\n\ntail"
	frags := PaginateWork(Document{BodyMarkdown: body}, 1000)

	if len(frags) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(frags))
	}
	if got := utf8.RuneCountInString(frags[1].Markdown()); got != 2500 {
		t.Errorf("oversized chunk should stay whole, got %d chars", got)
	}
}

func TestPaginateWorkCountsCharactersNotBytes(t *testing.T) {
	// 400 runes but 800 bytes each.
	body := paragraph(400, "é") + "\n\n" + paragraph(400, "ü")
	frags := PaginateWork(Document{BodyMarkdown: body}, 1000)
	if len(frags) != 1 {
		t.Errorf("expected both chunks on one page, got %d pages", len(frags))
	}
}

func TestPaginateWorkReconstructsChunks(t *testing.T) {
	body := `# Letters

Dear friend,
I write to you from the garden.

- one
- two

> quoted
> text

Yours, ever.`
	for _, capacity := range []int{1, 10, 40, 80, 1000} {
		frags := PaginateWork(Document{BodyMarkdown: body}, capacity)

		var got []string
		for _, f := range frags {
			size := 0
			for _, c := range f.Chunks {
				size += utf8.RuneCountInString(c)
			}
			if size > capacity && len(f.Chunks) > 1 {
				t.Errorf("cap %d: page %d holds %d chars in %d chunks", capacity, f.Ordinal, size, len(f.Chunks))
			}
			got = append(got, f.Chunks...)
		}
		if want := SplitChunks(body); !reflect.DeepEqual(got, want) {
			t.Errorf("cap %d: chunks = %q, want %q", capacity, got, want)
		}
	}
}

func TestPaginateWorkIsDeterministic(t *testing.T) {
	doc := Document{Title: "T", BodyMarkdown: "a\n\nb\n\n" + paragraph(900, "c")}
	first := PaginateWork(doc, 500)
	second := PaginateWork(doc, 500)
	if !reflect.DeepEqual(first, second) {
		t.Error("paginating the same document twice gave different pages")
	}
}

func TestPaginateWorkEmpty(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"no content", Document{Title: "Nothing"}},
		{"empty body", Document{BodyMarkdown: ""}},
		{"blank body", Document{BodyMarkdown: "\n\n   \n"}},
		{"empty manifest", Document{ImageManifest: &ImageManifest{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if frags := PaginateWork(tt.doc, 1000); len(frags) != 0 {
				t.Errorf("expected no pages, got %d", len(frags))
			}
		})
	}
}

func TestPaginateWorkImages(t *testing.T) {
	manifest := &ImageManifest{PageWidth: 600, PageHeight: 800}
	for i := 1; i <= 5; i++ {
		manifest.Pages = append(manifest.Pages, ImagePage{Number: i + 10, Source: "scan-" + string(rune('0'+i)) + ".png"})
	}
	doc := Document{BodyMarkdown: "ignored\n\nbody", ImageManifest: manifest}

	for _, capacity := range []int{1, 1000} {
		frags := PaginateWork(doc, capacity)
		if len(frags) != 5 {
			t.Fatalf("cap %d: expected 5 pages, got %d", capacity, len(frags))
		}
		for i, f := range frags {
			if f.Kind != KindImage {
				t.Errorf("page %d: kind = %s", i, f.Kind)
			}
			if f.Image == nil || f.Image.PageNumber != i+11 || f.Image.Source != manifest.Pages[i].Source {
				t.Errorf("page %d: unexpected image %+v", i, f.Image)
			}
			if f.Ordinal != i {
				t.Errorf("page %d: ordinal = %d", i, f.Ordinal)
			}
		}
	}
}

func TestImageSourceIsEscaped(t *testing.T) {
	doc := Document{ImageManifest: &ImageManifest{Pages: []ImagePage{{Number: 1, Source: `a.png" onerror="x`}}}}
	frags := PaginateWork(doc, 1000)
	if strings.Contains(frags[0].HTML, `" onerror="`) {
		t.Errorf("image source not escaped: %s", frags[0].HTML)
	}
}

func TestRenderMarkdown(t *testing.T) {
	frags := PaginateWork(Document{BodyMarkdown: "Hello *world*\n\n<script>alert(1)</script>"}, 1000)
	if len(frags) != 1 {
		t.Fatalf("expected 1 page, got %d", len(frags))
	}
	if !strings.Contains(frags[0].HTML, "<em>world</em>") {
		t.Errorf("markdown not rendered: %s", frags[0].HTML)
	}
	if strings.Contains(frags[0].HTML, "<script>") {
		t.Errorf("raw html should be dropped: %s", frags[0].HTML)
	}
}

func TestSpreadCount(t *testing.T) {
	tests := []struct {
		n, perView, expected int
	}{
		{0, 2, 0},
		{1, 2, 1},
		{2, 2, 1},
		{5, 2, 3},
		{5, 1, 5},
		{3, 0, 0},
	}
	for _, tt := range tests {
		if got := SpreadCount(tt.n, tt.perView); got != tt.expected {
			t.Errorf("SpreadCount(%d, %d) = %d, want %d", tt.n, tt.perView, got, tt.expected)
		}
	}
}
