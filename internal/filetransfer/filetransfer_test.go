package filetransfer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalChunksFor3KB(t *testing.T) {
	// spec.md scenario 2: a 3000-byte file splits into three chunks of
	// 1024, 1024, 952.
	assert.Equal(t, 3, TotalChunksFor(3000, ChunkSize))
}

func TestChunkIdempotence(t *testing.T) {
	tr := NewIncoming("f1", "alice@10.0.0.2", "photo.png", "", "image/png", 3000)
	require.True(t, tr.Accept())

	accepted, complete := tr.ReceiveChunk(0, make([]byte, 1024))
	assert.True(t, accepted)
	assert.False(t, complete)

	// Receiving the same index twice must leave state unchanged.
	accepted, complete = tr.ReceiveChunk(0, make([]byte, 1024))
	assert.True(t, accepted)
	assert.False(t, complete)
	assert.Equal(t, 1, tr.ReceivedCount())
	assert.Equal(t, int64(1024), tr.ReceivedBytes())
}

func TestReassemblyOutOfOrder(t *testing.T) {
	tr := NewIncoming("f2", "alice@10.0.0.2", "photo.png", "", "image/png", 3000)
	require.True(t, tr.Accept())

	chunk2 := make([]byte, 952)
	chunk0 := make([]byte, 1024)
	chunk1 := make([]byte, 1024)
	for i := range chunk0 {
		chunk0[i] = 'a'
	}
	for i := range chunk1 {
		chunk1[i] = 'b'
	}
	for i := range chunk2 {
		chunk2[i] = 'c'
	}

	// Arrives in order 2, 0, 1 — legal per spec.md scenario 2.
	_, complete := tr.ReceiveChunk(2, chunk2)
	assert.False(t, complete)
	_, complete = tr.ReceiveChunk(0, chunk0)
	assert.False(t, complete)
	_, complete = tr.ReceiveChunk(1, chunk1)
	assert.True(t, complete)

	assembled := tr.Assemble()
	require.Len(t, assembled, 3000)
	assert.Equal(t, byte('a'), assembled[0])
	assert.Equal(t, byte('b'), assembled[1024])
	assert.Equal(t, byte('c'), assembled[2048])
}

func TestChunkOutOfRangeRejected(t *testing.T) {
	tr := NewIncoming("f3", "alice@10.0.0.2", "x.bin", "", "application/octet-stream", 1024)
	require.True(t, tr.Accept())

	accepted, _ := tr.ReceiveChunk(5, []byte("x"))
	assert.False(t, accepted)
}

func TestChunkRejectedWhenNotInProgress(t *testing.T) {
	tr := NewIncoming("f4", "alice@10.0.0.2", "x.bin", "", "application/octet-stream", 1024)
	accepted, _ := tr.ReceiveChunk(0, []byte("x"))
	assert.False(t, accepted, "transfer is still Pending, not InProgress")
}

func TestMonotonicStatusTransitions(t *testing.T) {
	tr := NewIncoming("f5", "alice@10.0.0.2", "x.bin", "", "application/octet-stream", 1024)
	require.True(t, tr.Accept())
	require.False(t, tr.Accept(), "cannot accept twice")
	require.False(t, tr.Cancel(), "cannot cancel once in-progress")
	require.True(t, tr.Fail())
	require.False(t, tr.Fail(), "cannot fail twice")
}

func TestUniqueDownloadPathAppendsSuffix(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	path := UniqueDownloadPath(dir, "report.txt")
	assert.Equal(t, filepath.Join(dir, "report_1.txt"), path)
}

func TestSanitizeFilenameStripsPathSeparators(t *testing.T) {
	assert.Equal(t, "etc_passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "report.txt", SanitizeFilename("report.txt"))
}

func TestGCFinishedEvictsOldTransfers(t *testing.T) {
	mgr := NewManager()
	tr := NewIncoming("old", "alice@10.0.0.2", "x.bin", "", "application/octet-stream", 1)
	require.True(t, tr.Accept())
	accepted, complete := tr.ReceiveChunk(0, []byte("x"))
	require.True(t, accepted)
	require.True(t, complete)
	require.True(t, tr.Complete("/tmp/x.bin"))
	tr.CompletedAt = time.Now().Add(-25 * time.Hour)
	mgr.Put(tr)

	evicted := mgr.GCFinished(time.Now())
	assert.Equal(t, 1, evicted)
	_, ok := mgr.Get("old")
	assert.False(t, ok)
}
