package archive

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nwaples/rardecode/v2"
)

func TestOpenOptionsDecodeOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    OpenOptions
		wantLen int
	}{
		{name: "empty", opts: OpenOptions{}, wantLen: 0},
		{name: "max dictionary only", opts: OpenOptions{MaxDictionaryBytes: 1 << 20}, wantLen: 1},
		{name: "password only", opts: OpenOptions{Password: "secret"}, wantLen: 1},
		{name: "both", opts: OpenOptions{MaxDictionaryBytes: 1 << 20, Password: "secret"}, wantLen: 2},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := len(tc.opts.decodeOptions()); got != tc.wantLen {
				t.Fatalf("decodeOptions len=%d, want %d", got, tc.wantLen)
			}
		})
	}
}

func TestIsPasswordError(t *testing.T) {
	t.Parallel()

	if !IsPasswordError(rardecode.ErrArchiveEncrypted) {
		t.Fatal("expected ErrArchiveEncrypted to be classified as password error")
	}
	if !IsPasswordError(fmt.Errorf("wrapped: %w", rardecode.ErrBadPassword)) {
		t.Fatal("expected wrapped ErrBadPassword to be classified as password error")
	}
	if IsPasswordError(errors.New("other failure")) {
		t.Fatal("did not expect generic error to be classified as password error")
	}
}

func TestNormalizeEntryName(t *testing.T) {
	t.Parallel()

	if got, want := normalizeEntryName(`a\b\c.bin`), "a/b/c.bin"; got != want {
		t.Fatalf("normalizeEntryName=%q, want %q", got, want)
	}
}
