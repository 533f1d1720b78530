package web

import (
	"context"
	"strings"
	"testing"
)

func TestIndex(t *testing.T) {
	var b strings.Builder
	if err := Index("/stats", 500).Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	html := b.String()
	for _, want := range []string{`data-src="/stats/cpu"`, `data-src="/stats/requests/total"`, `data-interval="500"`, "<h2>health</h2>"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestIndex_EscapesPrefix(t *testing.T) {
	var b strings.Builder
	if err := Index(`/x"><script>`, 1000).Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(b.String(), `/x"><script>`) {
		t.Error("prefix rendered unescaped")
	}
}

func TestMetricPanel(t *testing.T) {
	var b strings.Builder
	if err := metricPanel("network", "/m/network").Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	if want := `<section><h2>network</h2><pre data-src="/m/network"></pre></section>`; b.String() != want {
		t.Errorf("panel = %s, want %s", b.String(), want)
	}
}
