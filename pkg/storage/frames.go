package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// Wire payload shapes for the NDJSON frame stream. Optional metadata fields
// are omitted entirely when unset; absence, not false/null, means "not
// requested".

type metadataEnvelope struct {
	Metadata *commitMetadataPayload `json:"metadata"`
}

type commitMetadataPayload struct {
	TargetBranch    string             `json:"target_branch"`
	CommitMessage   string             `json:"commit_message"`
	Author          authorInfo         `json:"author"`
	Committer       *authorInfo        `json:"committer,omitempty"`
	ExpectedHeadSHA string             `json:"expected_head_sha,omitempty"`
	BaseBranch      string             `json:"base_branch,omitempty"`
	Ephemeral       bool               `json:"ephemeral,omitempty"`
	EphemeralBase   bool               `json:"ephemeral_base,omitempty"`
	Files           []fileEntryPayload `json:"files,omitempty"`
}

type authorInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type fileEntryPayload struct {
	Path      string `json:"path"`
	ContentID string `json:"content_id"`
	Operation string `json:"operation"`
	Mode      string `json:"mode,omitempty"`
}

type blobChunkEnvelope struct {
	BlobChunk blobChunkPayload `json:"blob_chunk"`
}

type blobChunkPayload struct {
	ContentID string `json:"content_id"`
	Data      string `json:"data"`
	EOF       bool   `json:"eof"`
}

type diffChunkEnvelope struct {
	DiffChunk diffChunkPayload `json:"diff_chunk"`
}

type diffChunkPayload struct {
	Data string `json:"data"`
	EOF  bool   `json:"eof"`
}

// blobStream pairs a content ID with its not-yet-materialized source.
type blobStream struct {
	contentID string
	source    ByteSource
}

// writeCommitFrames emits the metadata frame followed by each blob's chunk
// frames. Blobs stream strictly in order: all chunks of one blob are encoded
// (and its source fully drained) before the next source is even opened, so
// at most one source is in flight and memory stays proportional to the chunk
// bound, not to file size.
func writeCommitFrames(w io.Writer, metadata *commitMetadataPayload, blobs []blobStream) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(metadataEnvelope{Metadata: metadata}); err != nil {
		return err
	}

	for _, blob := range blobs {
		reader, err := blob.source.open()
		if err != nil {
			return fmt.Errorf("open content source %s: %w", blob.contentID, err)
		}
		err = chunkSegments(reader, MaxChunkBytes, func(segment ChunkSegment) error {
			return encoder.Encode(blobChunkEnvelope{BlobChunk: blobChunkPayload{
				ContentID: blob.contentID,
				Data:      base64.StdEncoding.EncodeToString(segment.Data),
				EOF:       segment.EOF,
			}})
		})
		if closer, ok := reader.(io.Closer); ok {
			_ = closer.Close()
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// writeDiffFrames emits the metadata frame followed by diff chunk frames.
func writeDiffFrames(w io.Writer, metadata *commitMetadataPayload, diff io.Reader) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(metadataEnvelope{Metadata: metadata}); err != nil {
		return err
	}

	return chunkSegments(diff, MaxChunkBytes, func(segment ChunkSegment) error {
		return encoder.Encode(diffChunkEnvelope{DiffChunk: diffChunkPayload{
			Data: base64.StdEncoding.EncodeToString(segment.Data),
			EOF:  segment.EOF,
		}})
	})
}
