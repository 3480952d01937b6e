// Package filetransfer implements the offer -> accept/reject -> chunking
// -> reassembly state machine (spec.md §4.9), the largest subsystem.
// Grounded on original_source/src/protocol/types/files/file_transfer.py
// and file_chunk_manager.py: an index-keyed sparse chunk map rather than
// a sequential writer (spec.md §9's explicit design note), a monotonic
// status machine, and filename sanitization with a numeric-suffix
// collision strategy.
package filetransfer

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ChunkSize is the fixed chunk size in raw bytes (spec.md §4.9).
const ChunkSize = 1024

// Direction of a transfer from this node's point of view.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Status is the transfer's lifecycle state. Transitions are monotonic
// per spec.md §3: Pending -> (InProgress | Cancelled) -> (Completed | Failed).
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Transfer is one file-transfer record, keyed by FileID (spec.md §3).
type Transfer struct {
	mu sync.Mutex

	FileID        string
	Direction     Direction
	RemoteUser    string
	Filename      string
	Description   string
	DeclaredSize  int64
	MIMEType      string
	ChunkSize     int
	TotalChunks   int
	Status        Status
	CreatedAt     time.Time
	CompletedAt   time.Time
	LocalPath     string

	// sourcePath is where an outgoing transfer reads bytes from.
	sourcePath string

	chunks         map[int][]byte
	receivedBytes  int64
}

// TotalChunksFor computes ceil(size/chunkSize), per spec.md §3.
func TotalChunksFor(size int64, chunkSize int) int {
	if size <= 0 {
		return 0
	}
	return int((size + int64(chunkSize) - 1) / int64(chunkSize))
}

// NewOutgoing builds a pending outgoing transfer for a local file.
func NewOutgoing(fileID, remoteUser, sourcePath, description, mimeType string, size int64) *Transfer {
	return &Transfer{
		FileID:       fileID,
		Direction:    DirectionOutgoing,
		RemoteUser:   remoteUser,
		Filename:     filepath.Base(sourcePath),
		Description:  description,
		DeclaredSize: size,
		MIMEType:     mimeType,
		ChunkSize:    ChunkSize,
		TotalChunks:  TotalChunksFor(size, ChunkSize),
		Status:       StatusPending,
		CreatedAt:    time.Now(),
		sourcePath:   sourcePath,
	}
}

// NewIncoming builds a pending incoming transfer from an offer.
func NewIncoming(fileID, remoteUser, filename, description, mimeType string, size int64) *Transfer {
	return &Transfer{
		FileID:       fileID,
		Direction:    DirectionIncoming,
		RemoteUser:   remoteUser,
		Filename:     SanitizeFilename(filename),
		Description:  description,
		DeclaredSize: size,
		MIMEType:     mimeType,
		ChunkSize:    ChunkSize,
		TotalChunks:  TotalChunksFor(size, ChunkSize),
		Status:       StatusPending,
		CreatedAt:    time.Now(),
		chunks:       make(map[int][]byte),
	}
}

// ReadChunk reads the raw bytes for chunkIndex from the outgoing
// transfer's source file.
func (t *Transfer) ReadChunk(chunkIndex int) ([]byte, error) {
	f, err := os.Open(t.sourcePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	offset := int64(chunkIndex) * int64(t.ChunkSize)
	buf := make([]byte, t.ChunkSize)
	n, err := f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

// Accept transitions a pending incoming transfer to in-progress.
func (t *Transfer) Accept() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != StatusPending {
		return false
	}
	t.Status = StatusInProgress
	t.chunks = make(map[int][]byte)
	return true
}

// MarkOutgoingAccepted transitions a pending outgoing transfer to
// in-progress once FILE_ACCEPT arrives.
func (t *Transfer) MarkOutgoingAccepted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != StatusPending {
		return false
	}
	t.Status = StatusInProgress
	return true
}

// Cancel transitions Pending -> Cancelled (e.g. FILE_REJECT, or an offer
// that got no response in time). A transfer already in progress cannot be
// cancelled.
func (t *Transfer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != StatusPending {
		return false
	}
	t.Status = StatusCancelled
	return true
}

// Fail transitions InProgress -> Failed, e.g. on a chunk decode/size
// error (spec.md §4.9 step 5).
func (t *Transfer) Fail() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != StatusInProgress {
		return false
	}
	t.Status = StatusFailed
	return true
}

// ReceiveChunk stores a decoded chunk at index, idempotently. It returns
// (accepted, complete): accepted is false if the transfer isn't
// in-progress or index is out of range (spec.md §3); a duplicate index
// is a silent no-op that still reports accepted=true with complete
// reflecting current state, per spec.md's idempotence invariant.
func (t *Transfer) ReceiveChunk(index int, data []byte) (accepted bool, complete bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status != StatusInProgress {
		return false, false
	}
	if index < 0 || index >= t.TotalChunks {
		return false, false
	}

	if _, dup := t.chunks[index]; !dup {
		t.chunks[index] = data
		t.receivedBytes += int64(len(data))
	}

	return true, len(t.chunks) == t.TotalChunks
}

// ReceivedCount returns how many distinct chunk indices have arrived.
func (t *Transfer) ReceivedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.chunks)
}

// ReceivedBytes returns the total bytes received so far.
func (t *Transfer) ReceivedBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.receivedBytes
}

// Assemble concatenates all chunks in index order. Callers must only
// call this once ReceiveChunk has reported complete==true.
func (t *Transfer) Assemble() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, 0, t.receivedBytes)
	for i := 0; i < t.TotalChunks; i++ {
		out = append(out, t.chunks[i]...)
	}
	return out
}

// Complete transitions InProgress -> Completed and records the final
// local path and completion time.
func (t *Transfer) Complete(localPath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != StatusInProgress {
		return false
	}
	t.Status = StatusCompleted
	t.CompletedAt = time.Now()
	t.LocalPath = localPath
	return true
}

// CurrentStatus returns the transfer's status under lock.
func (t *Transfer) CurrentStatus() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Status
}

// EncodeChunkData base64-encodes a chunk for FILE_CHUNK's DATA field.
func EncodeChunkData(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeChunkData decodes a FILE_CHUNK's DATA field.
func DecodeChunkData(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips path separators and unsafe characters from a
// declared filename before it's ever used to build a local path,
// grounded on the original's sanitization in file_transfer.py.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "unnamed_file"
	}
	return name
}

// UniqueDownloadPath returns a path under dir for filename, appending a
// numeric suffix ("name_1.ext") if a file of that name already exists,
// per spec.md scenario 2.
func UniqueDownloadPath(dir, filename string) string {
	candidate := filepath.Join(dir, filename)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// OptimalChunkSize is a documented-but-unused alternative chunk size
// (target ~50 chunks per transfer), grounded on file_chunk_manager.py's
// calculate_optimal_chunk_size. The protocol's CHUNK_SIZE is fixed at
// 1024 per spec.md; this is exposed only for the sender's verbose log
// line noting what an adaptive size would have chosen.
func OptimalChunkSize(fileSize int64) int {
	const (
		targetChunks = 50
		minSize      = ChunkSize
		maxSize      = 64 * 1024
	)
	if fileSize <= 0 {
		return minSize
	}
	ideal := int(fileSize / targetChunks)
	if ideal < minSize {
		return minSize
	}
	if ideal > maxSize {
		return maxSize
	}
	return ideal
}
