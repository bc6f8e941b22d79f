package chain

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/wire"
	"github.com/pkg/errors"
)

// ChunkSize is the number of blocks stored per chunk file. A branch's
// blocks live at <branchDir>/blocks/<chunkID>, one flat file per
// ChunkSize-block range; chunks are addressed by blockID/ChunkSize and
// whole chunk files are copied when forking a new branch.
const ChunkSize = 1000

func chunkIDFor(blockID uint64) uint64 {
	return blockID / ChunkSize
}

func blocksDir(branchDir string) string {
	return filepath.Join(branchDir, "blocks")
}

func chunkPath(branchDir string, chunkID uint64) string {
	return filepath.Join(blocksDir(branchDir), strconv.FormatUint(chunkID, 10))
}

// appendBlockToChunk writes b, framed with its length, to the end of the
// chunk file that block.ID belongs in.
func appendBlockToChunk(branchDir string, b *block.Block) error {
	if err := os.MkdirAll(blocksDir(branchDir), 0o755); err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "create blocks dir")
	}

	data, err := b.Serialize()
	if err != nil {
		return err
	}

	path := chunkPath(branchDir, chunkIDFor(b.ID))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "open chunk file")
	}
	defer f.Close()

	buf := &lengthPrefixWriter{}
	if err := wire.WriteFrame(buf, data); err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "write chunk file")
	}
	return nil
}

// loadChunk reads every block out of the chunk file for chunkID, in
// on-disk order. A missing chunk file is not an error: it simply yields no
// blocks (the chunk hasn't been written to yet).
func loadChunk(branchDir string, chunkID uint64) ([]*block.Block, error) {
	f, err := os.Open(chunkPath(branchDir, chunkID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ledgererr.Wrap(ledgererr.KindIOError, err, "open chunk file")
	}
	defer f.Close()

	var blocks []*block.Block
	for {
		payload, err := wire.ReadFrame(f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		b, err := block.Deserialize(payload)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// copyChunkFile copies chunkID's file from one branch directory to
// another, used when forking a new branch off an existing one so the
// shared prefix of blocks doesn't need to be re-serialized.
func copyChunkFile(srcBranchDir, dstBranchDir string, chunkID uint64) error {
	if err := os.MkdirAll(blocksDir(dstBranchDir), 0o755); err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "create blocks dir")
	}

	src, err := os.Open(chunkPath(srcBranchDir, chunkID))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "open source chunk")
	}
	defer src.Close()

	dst, err := os.Create(chunkPath(dstBranchDir, chunkID))
	if err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "create destination chunk")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return ledgererr.Wrap(ledgererr.KindIOError, err, "copy chunk file")
	}
	return nil
}

// lengthPrefixWriter buffers wire.WriteFrame's output so a single os.File
// write can append it atomically relative to concurrent readers.
type lengthPrefixWriter struct {
	buf []byte
}

func (w *lengthPrefixWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *lengthPrefixWriter) Bytes() []byte {
	return w.buf
}
