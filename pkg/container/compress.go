// SPDX-License-Identifier: MPL-2.0

package container

import (
	"archive/zip"

	"github.com/klauspost/compress/zstd"
)

// RegisterCompressors enables the zstd method on a zip writer, in addition to
// the stored and deflate methods archive/zip supports natively.
func RegisterCompressors(zw *zip.Writer) {
	zw.RegisterCompressor(MethodZstd, zstdCompressor())
}

func zstdCompressor() zip.Compressor {
	return zstd.ZipCompressor(zstd.WithEncoderLevel(zstd.SpeedDefault))
}
