package extract

import (
	"strings"
	"testing"
)

func TestTextStripsScriptsAndNormalisesWhitespace(t *testing.T) {
	body := []byte(`<html><head><title>ignored</title></head><body>
		<h1>London   Weather</h1>
		<script>var tracking = true;</script>
		<p>Rain
		expected    tomorrow.</p>
		<noscript>enable js</noscript>
	</body></html>`)

	text, err := Text(body, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "London Weather Rain expected tomorrow." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTextDropSelectors(t *testing.T) {
	body := []byte(`<html><body><div class="advert-banner">BUY NOW</div><p>content</p></body></html>`)
	text, err := Text(body, Options{DropSelectors: []string{"[class*='advert']"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(text, "BUY NOW") {
		t.Fatalf("ad content survived: %q", text)
	}
	if text != "content" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTextEmptyBody(t *testing.T) {
	if _, err := Text(nil, DefaultOptions()); err == nil {
		t.Fatal("expected error for empty body")
	}
}
