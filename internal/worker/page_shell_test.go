package worker

import (
	"strings"
	"testing"
)

func TestComposePage_AppliesStyleOverrides(t *testing.T) {
	page := composePage("우리 결혼합니다", "<section>본문</section>", map[string]string{
		"accent_color": "#8a6d3b",
		"align":        "left",
	})

	if !strings.Contains(page, "<section>본문</section>") {
		t.Fatalf("body missing from page:\n%s", page)
	}
	if !strings.Contains(page, "--accent-color: #8a6d3b;") {
		t.Fatalf("accent color override missing:\n%s", page)
	}
	if !strings.Contains(page, "--text-align: left;") {
		t.Fatalf("text align override missing:\n%s", page)
	}
	if strings.Contains(page, "--font-family: ;") {
		t.Fatalf("empty style must not produce an override:\n%s", page)
	}
}

func TestComposePage_Deterministic(t *testing.T) {
	styles := map[string]string{
		"align":        "center",
		"font_family":  "Noto Serif KR",
		"accent_color": "#b76e79",
	}
	first := composePage("t", "<p>x</p>", styles)
	for i := 0; i < 10; i++ {
		if got := composePage("t", "<p>x</p>", styles); got != first {
			t.Fatalf("composePage output not deterministic")
		}
	}
}

func TestComposePage_EscapesTitle(t *testing.T) {
	page := composePage(`<script>alert("x")</script>`, "", nil)
	if strings.Contains(page, "<script>alert") {
		t.Fatalf("title must be escaped:\n%s", page)
	}
	if !strings.Contains(page, "&lt;script&gt;") {
		t.Fatalf("expected escaped title in page:\n%s", page)
	}
}
