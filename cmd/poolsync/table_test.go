package main

import (
	"strings"
	"testing"
)

func TestRenderTableAlignsAndPadsRows(t *testing.T) {
	out := renderTable(
		[]string{"Source", "Files"},
		[][]string{
			{"/pool/a", "1200"},
			{"/pool/b"},
		},
		2)

	for _, want := range []string{"Source", "Files", "/pool/a", "1200", "/pool/b"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
	// Right-aligned numeric column: the value hugs the column's closing border.
	if !strings.Contains(out, "1200 │") {
		t.Fatalf("expected right-aligned files column:\n%s", out)
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, [][]string{{"x"}}); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
