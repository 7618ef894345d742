package cache

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/akande-ai/akande/pkg/models"
)

// maxSnapshotLine bounds a single encoded entry when importing.
const maxSnapshotLine = 16 << 20

// Export writes every entry of src to w as a zstd-compressed stream of JSON
// lines and returns the number of entries written.
func Export(ctx context.Context, src Admin, w io.Writer) (int, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}

	n := 0
	err = src.Entries(ctx, func(e models.CacheEntry) error {
		line, err := sonic.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %q: %w", e.Key, err)
		}
		line = append(line, '\n')
		if _, err := enc.Write(line); err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
		n++
		return nil
	})
	if err != nil {
		_ = enc.Close()
		return n, err
	}
	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("flush snapshot: %w", err)
	}
	return n, nil
}

// Import reads a snapshot produced by Export and restores each entry into
// dst, keeping original timestamps. Existing keys are overwritten.
func Import(ctx context.Context, dst Admin, r io.Reader) (int, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSnapshotLine)

	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e models.CacheEntry
		if err := sonic.Unmarshal(line, &e); err != nil {
			return n, fmt.Errorf("decode entry %d: %w", n+1, err)
		}
		if e.Key == "" {
			return n, fmt.Errorf("decode entry %d: empty key", n+1)
		}
		if err := dst.Restore(ctx, e); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("read snapshot: %w", err)
	}
	return n, nil
}
