package backup

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"corectx/internal/errs"
)

// BackupFile stages payloads uncompressed; Cleanup zstd-compresses the
// payloads of aged sessions it keeps, and Restore decompresses them.
// Backup sessions accumulate fast under repeated edit/apply cycles, and
// source text compresses well. encoder/decoder are process-wide
// singletons; zstd's are safe for concurrent use and expensive enough to
// build that per-call construction would dominate compaction of large
// sessions.
var (
	payloadEncoder     *zstd.Encoder
	payloadEncoderOnce sync.Once
	payloadDecoder     *zstd.Decoder
	payloadDecoderOnce sync.Once
)

func getEncoder() *zstd.Encoder {
	payloadEncoderOnce.Do(func() {
		payloadEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return payloadEncoder
}

func getDecoder() *zstd.Decoder {
	payloadDecoderOnce.Do(func() {
		payloadDecoder, _ = zstd.NewReader(nil)
	})
	return payloadDecoder
}

// compressPayload zstd-compresses content for staging to disk.
func compressPayload(content []byte) []byte {
	return getEncoder().EncodeAll(content, make([]byte, 0, len(content)))
}

// decompressPayload reverses compressPayload, used when restoring a
// staged file back to the working tree.
func decompressPayload(compressed []byte) ([]byte, error) {
	out, err := getDecoder().DecodeAll(compressed, nil)
	if err != nil {
		return nil, errs.InternalErr(err, "decompressing staged backup payload")
	}
	return out, nil
}
