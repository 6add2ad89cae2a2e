package job

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// EncodeLog compresses a log transcript for storage. The output is a plain
// zlib (RFC 1950) stream, byte-compatible with blobs written by earlier
// deployments of this service.
func EncodeLog(text string) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write([]byte(text)) //nolint:errcheck // bytes.Buffer writes cannot fail
	w.Close()
	return buf.Bytes()
}

// DecodeLog is the inverse of EncodeLog. Malformed input returns an empty
// string plus an error; callers render that as "log unavailable" rather than
// failing the whole status view.
func DecodeLog(blob []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return "", fmt.Errorf("decoding stored log: %w", err)
	}
	defer r.Close()

	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decoding stored log: %w", err)
	}
	return string(text), nil
}
