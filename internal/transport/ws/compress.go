package ws

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/flate"
)

// compressMinSize mirrors the teacher's message compressor's
// MinSizeForCompression default order of magnitude — small frames
// (snapshots of a thin book, single candle ticks) aren't worth the
// CPU.
const compressMinSize = 256

var flateWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := flate.NewWriter(nil, flate.BestSpeed)
		return w
	},
}

// compress deflates data using a pooled flate.Writer, the same
// pool-and-reset pattern the teacher's MessageCompressor uses for its
// gzip/zlib/deflate/zstd pools.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := flateWriterPool.Get().(*flate.Writer)
	defer flateWriterPool.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// shouldCompress reports whether a frame of this size clears the
// compression threshold.
func shouldCompress(size int) bool { return size >= compressMinSize }
