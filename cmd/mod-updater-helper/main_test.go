package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/caedis/mod-updater/internal/fetch"
)

func TestHelperRejectsForeignHosts(t *testing.T) {
	root := newRootCmd(fetch.New("test"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"get-metafile", "https://example.com/mods.json"})

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, fetch.ErrHostNotAllowed) {
		t.Fatalf("err=%v want ErrHostNotAllowed", err)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestHelperArgCounts(t *testing.T) {
	tests := [][]string{
		{"get-metafile"},
		{"get-file", "https://github.com/o/r/a.zip"},
		{"validate-key"},
		{"get-metafile", "a", "b", "c"},
	}
	for _, args := range tests {
		root := newRootCmd(fetch.New("test"))
		root.SetArgs(args)
		if err := root.ExecuteContext(context.Background()); err == nil {
			t.Fatalf("args %v should be rejected", args)
		}
	}
}
