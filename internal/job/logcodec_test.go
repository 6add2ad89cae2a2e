package job

import (
	"strings"
	"testing"
)

func TestLogCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"single line", "analysis complete"},
		{"multi line", "step 1\nstep 2\nstep 3"},
		{"unicode", "résultat: 成功\n"},
		{"multi megabyte", strings.Repeat("chr1\t12345\trs6054257\tG\tA\n", 200_000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeLog(EncodeLog(tt.text))
			if err != nil {
				t.Fatalf("DecodeLog: %v", err)
			}
			if got != tt.text {
				t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(tt.text))
			}
		})
	}
}

func TestLogCodec_Compresses(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("the same line over and over\n", 10_000)
	blob := EncodeLog(text)
	if len(blob) >= len(text)/10 {
		t.Errorf("blob is %d bytes for %d bytes of repetitive input", len(blob), len(text))
	}
}

func TestDecodeLog_Malformed(t *testing.T) {
	t.Parallel()

	for _, blob := range [][]byte{nil, {}, {0xde, 0xad, 0xbe, 0xef}} {
		got, err := DecodeLog(blob)
		if err == nil {
			t.Errorf("DecodeLog(%v) succeeded, want error", blob)
		}
		if got != "" {
			t.Errorf("DecodeLog(%v) = %q, want empty sentinel", blob, got)
		}
	}
}
