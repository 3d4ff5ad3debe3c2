package upload

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/xxh3"

	"github.com/vaultfm/vaultfm/internal/constants"
)

// ContentHash returns the hex XXH3-128 digest of r, the content digest the
// backend stores for deduplication.
func ContentHash(r io.Reader) (string, int64, error) {
	h := xxh3.New()
	buf := make([]byte, constants.HashBufferSize)
	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return "", n, err
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:]), n, nil
}

func hashSource(src Source) (string, error) {
	rc, err := src.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	digest, _, err := ContentHash(rc)
	return digest, err
}
