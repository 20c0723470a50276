package storage

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteCommitFrames(t *testing.T) {
	metadata := &commitMetadataPayload{
		TargetBranch:  "main",
		CommitMessage: "add files",
		Author:        authorInfo{Name: "Dev", Email: "dev@example.com"},
		Files: []fileEntryPayload{
			{Path: "a.txt", ContentID: "blob-1", Operation: "upsert", Mode: "100644"},
			{Path: "b.txt", ContentID: "blob-2", Operation: "upsert", Mode: "100644"},
			{Path: "old.txt", ContentID: "blob-3", Operation: "delete"},
		},
	}
	blobs := []blobStream{
		{contentID: "blob-1", source: Bytes([]byte("hello"))},
		{contentID: "blob-2", source: Bytes(nil)},
	}

	var buf bytes.Buffer
	if err := writeCommitFrames(&buf, metadata, blobs); err != nil {
		t.Fatalf("write frames: %v", err)
	}

	lines := readNDJSONLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(lines))
	}

	t.Run("metadata frame comes first", func(t *testing.T) {
		var frame metadataEnvelope
		if err := json.Unmarshal([]byte(lines[0]), &frame); err != nil {
			t.Fatalf("unmarshal metadata frame: %v", err)
		}
		if frame.Metadata == nil || frame.Metadata.TargetBranch != "main" {
			t.Errorf("unexpected metadata frame: %s", lines[0])
		}
		if len(frame.Metadata.Files) != 3 {
			t.Errorf("expected 3 file entries, got %d", len(frame.Metadata.Files))
		}
		// Optional fields stay absent, not null
		if strings.Contains(lines[0], "expected_head_sha") || strings.Contains(lines[0], "committer") {
			t.Errorf("unset optional fields leaked into frame: %s", lines[0])
		}
		if strings.Contains(lines[0], "ephemeral") {
			t.Errorf("false ephemeral flags leaked into frame: %s", lines[0])
		}
	})

	t.Run("blob frames follow in registration order", func(t *testing.T) {
		var first blobChunkEnvelope
		if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
			t.Fatalf("unmarshal blob frame: %v", err)
		}
		if first.BlobChunk.ContentID != "blob-1" || !first.BlobChunk.EOF {
			t.Errorf("unexpected first blob frame: %s", lines[1])
		}
		if string(decodeBase64(t, first.BlobChunk.Data)) != "hello" {
			t.Errorf("unexpected blob data: %s", first.BlobChunk.Data)
		}

		var second blobChunkEnvelope
		if err := json.Unmarshal([]byte(lines[2]), &second); err != nil {
			t.Fatalf("unmarshal blob frame: %v", err)
		}
		if second.BlobChunk.ContentID != "blob-2" || !second.BlobChunk.EOF || second.BlobChunk.Data != "" {
			t.Errorf("expected empty eof frame for empty blob, got %s", lines[2])
		}
	})
}

func TestWriteCommitFramesChunking(t *testing.T) {
	// Force multiple chunks with a small source read through the real
	// chunker; MaxChunkBytes itself is too large to exercise in a unit test.
	metadata := &commitMetadataPayload{
		TargetBranch:  "main",
		CommitMessage: "big file",
		Author:        authorInfo{Name: "Dev", Email: "dev@example.com"},
		Files:         []fileEntryPayload{{Path: "big.bin", ContentID: "blob-1", Operation: "upsert"}},
	}
	data := bytes.Repeat([]byte{0x42}, MaxChunkBytes+10)
	blobs := []blobStream{{contentID: "blob-1", source: Bytes(data)}}

	var buf bytes.Buffer
	if err := writeCommitFrames(&buf, metadata, blobs); err != nil {
		t.Fatalf("write frames: %v", err)
	}

	lines := readNDJSONLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected metadata + 2 blob frames, got %d", len(lines))
	}

	var first, second blobChunkEnvelope
	if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[2]), &second); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}

	if first.BlobChunk.EOF {
		t.Errorf("first chunk must not be eof")
	}
	if len(decodeBase64(t, first.BlobChunk.Data)) != MaxChunkBytes {
		t.Errorf("non-final chunk not exactly max size")
	}
	if !second.BlobChunk.EOF || len(decodeBase64(t, second.BlobChunk.Data)) != 10 {
		t.Errorf("unexpected final chunk: eof=%v len=%d", second.BlobChunk.EOF, len(decodeBase64(t, second.BlobChunk.Data)))
	}
}

func TestWriteDiffFrames(t *testing.T) {
	metadata := &commitMetadataPayload{
		TargetBranch:  "main",
		CommitMessage: "apply diff",
		Author:        authorInfo{Name: "Dev", Email: "dev@example.com"},
	}
	diff := strings.NewReader("--- a/a.txt\n+++ b/a.txt\n")

	var buf bytes.Buffer
	if err := writeDiffFrames(&buf, metadata, diff); err != nil {
		t.Fatalf("write diff frames: %v", err)
	}

	lines := readNDJSONLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(lines))
	}

	var frame diffChunkEnvelope
	if err := json.Unmarshal([]byte(lines[1]), &frame); err != nil {
		t.Fatalf("unmarshal diff frame: %v", err)
	}
	if !frame.DiffChunk.EOF {
		t.Errorf("expected eof diff chunk")
	}
	if !strings.HasPrefix(string(decodeBase64(t, frame.DiffChunk.Data)), "--- a/a.txt") {
		t.Errorf("unexpected diff data")
	}
}
