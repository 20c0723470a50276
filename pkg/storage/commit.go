package storage

import (
	"context"
	"io"
	"strings"
)

type commitOperation struct {
	Path      string
	ContentID string
	Mode      GitFileMode
	Operation string
	Source    ByteSource
}

// CommitBuilder accumulates file operations for a single commit. Mutators
// record the first error and turn later calls into no-ops; check Err or let
// Send surface it. A builder is one-shot: once Send has run it rejects all
// further mutation and re-sending. Independent builders are safe to use
// concurrently; a single builder is not.
type CommitBuilder struct {
	options CommitOptions
	ops     []commitOperation
	repo    *Repo
	sent    bool
	err     error
}

// CreateCommit starts a commit against the repository. Options are
// validated and normalized up front, before any file is added.
func (r *Repo) CreateCommit(options CommitOptions) (*CommitBuilder, error) {
	builder := &CommitBuilder{options: options, repo: r}
	if err := builder.normalize(); err != nil {
		return nil, err
	}
	return builder, nil
}

func (b *CommitBuilder) normalize() error {
	b.options.TargetBranch = strings.TrimSpace(b.options.TargetBranch)
	b.options.TargetRef = strings.TrimSpace(b.options.TargetRef)
	b.options.CommitMessage = strings.TrimSpace(b.options.CommitMessage)

	// Explicit branch name wins over the legacy full-ref form.
	if b.options.TargetBranch != "" {
		branch, err := normalizeBranchName(b.options.TargetBranch)
		if err != nil {
			return err
		}
		b.options.TargetBranch = branch
	} else if b.options.TargetRef != "" {
		branch, err := normalizeLegacyTargetRef(b.options.TargetRef)
		if err != nil {
			return err
		}
		b.options.TargetBranch = branch
	} else {
		return newValidationError("createCommit targetBranch is required")
	}

	if b.options.CommitMessage == "" {
		return newValidationError("createCommit commitMessage is required")
	}

	if strings.TrimSpace(b.options.Author.Name) == "" || strings.TrimSpace(b.options.Author.Email) == "" {
		return newValidationError("createCommit author name and email are required")
	}
	b.options.Author.Name = strings.TrimSpace(b.options.Author.Name)
	b.options.Author.Email = strings.TrimSpace(b.options.Author.Email)

	b.options.ExpectedHeadSHA = strings.TrimSpace(b.options.ExpectedHeadSHA)
	b.options.BaseBranch = strings.TrimSpace(b.options.BaseBranch)
	if b.options.BaseBranch != "" && strings.HasPrefix(b.options.BaseBranch, "refs/") {
		return newValidationError("createCommit baseBranch must not include refs/ prefix")
	}

	if b.options.EphemeralBase && b.options.BaseBranch == "" {
		return newValidationError("createCommit ephemeralBase requires baseBranch")
	}

	if b.options.Committer != nil {
		if strings.TrimSpace(b.options.Committer.Name) == "" || strings.TrimSpace(b.options.Committer.Email) == "" {
			return newValidationError("createCommit committer name and email are required when provided")
		}
		b.options.Committer.Name = strings.TrimSpace(b.options.Committer.Name)
		b.options.Committer.Email = strings.TrimSpace(b.options.Committer.Email)
	}

	return nil
}

// AddFile registers an upsert. The source is materialized at send time, not
// here, so a source mutated between AddFile and Send is read in its final
// state.
func (b *CommitBuilder) AddFile(path string, source ByteSource, options *CommitFileOptions) *CommitBuilder {
	if b.err != nil {
		return b
	}
	if err := b.ensureNotSent(); err != nil {
		b.err = err
		return b
	}
	normalizedPath, err := normalizePath(path)
	if err != nil {
		b.err = err
		return b
	}
	if source == nil {
		b.err = newValidationError("unsupported content source; expected binary data")
		return b
	}

	mode := GitFileModeRegular
	if options != nil && options.Mode != "" {
		mode = options.Mode
	}

	b.ops = append(b.ops, commitOperation{
		Path:      normalizedPath,
		ContentID: b.repo.client.newID(),
		Mode:      mode,
		Operation: "upsert",
		Source:    source,
	})
	return b
}

// AddFileFromBytes registers a binary upsert from an in-memory buffer.
func (b *CommitBuilder) AddFileFromBytes(path string, contents []byte, options *CommitFileOptions) *CommitBuilder {
	if b.err != nil {
		return b
	}
	return b.AddFile(path, Bytes(contents), options)
}

// AddFileFromString registers a text upsert. Only UTF-8 is supported; Go has
// no environment capability for arbitrary text encodings.
func (b *CommitBuilder) AddFileFromString(path string, contents string, options *CommitTextFileOptions) *CommitBuilder {
	if b.err != nil {
		return b
	}
	encoding := "utf-8"
	if options != nil && options.Encoding != "" {
		encoding = options.Encoding
	}
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	if encoding != "utf8" && encoding != "utf-8" {
		b.err = newValidationError("unsupported encoding: " + encoding)
		return b
	}
	if options == nil {
		return b.AddFile(path, Bytes([]byte(contents)), nil)
	}
	return b.AddFile(path, Bytes([]byte(contents)), &options.CommitFileOptions)
}

// DeletePath registers a delete. Deletes carry no content and no mode.
// A delete and an upsert may target the same path; operations are applied
// in registration order, so the later one wins.
func (b *CommitBuilder) DeletePath(path string) *CommitBuilder {
	if b.err != nil {
		return b
	}
	if err := b.ensureNotSent(); err != nil {
		b.err = err
		return b
	}
	normalizedPath, err := normalizePath(path)
	if err != nil {
		b.err = err
		return b
	}
	b.ops = append(b.ops, commitOperation{
		Path:      normalizedPath,
		ContentID: b.repo.client.newID(),
		Operation: "delete",
	})
	return b
}

// Err returns the first error recorded by builder operations.
func (b *CommitBuilder) Err() error {
	return b.err
}

// Send streams the commit and waits for the acknowledgement. It is the
// builder's terminal operation.
func (b *CommitBuilder) Send(ctx context.Context) (CommitResult, error) {
	if b.err != nil {
		return CommitResult{}, b.err
	}
	if err := b.ensureNotSent(); err != nil {
		return CommitResult{}, err
	}
	b.sent = true

	if strings.TrimSpace(b.repo.ID) == "" {
		return CommitResult{}, newValidationError("createCommit repository id is required")
	}

	client := b.repo.client
	token, err := client.tokens.Token(ctx, b.repo.ID, TokenOptions{
		Permissions: []Permission{PermissionGitWrite},
		TTL:         resolveTTL(b.options.InvocationOptions),
	})
	if err != nil {
		return CommitResult{}, err
	}

	metadata := buildCommitMetadata(b.options, b.ops)

	var blobs []blobStream
	for _, op := range b.ops {
		if op.Operation != "upsert" {
			continue
		}
		blobs = append(blobs, blobStream{contentID: op.ContentID, source: op.Source})
	}

	pipeReader, pipeWriter := io.Pipe()
	go func() {
		if err := writeCommitFrames(pipeWriter, metadata, blobs); err != nil {
			_ = pipeWriter.CloseWithError(err)
			return
		}
		_ = pipeWriter.Close()
	}()

	url := client.basePath() + "/repos/commit-pack"
	resp, err := client.doStreamingPost(ctx, url, token, pipeReader)
	if err != nil {
		return CommitResult{}, err
	}
	defer resp.Body.Close()

	result, err := translateCommitResponse(resp, "createCommit")
	if err != nil {
		return CommitResult{}, err
	}
	client.l.Debugf(ctx, "commit %s accepted on %s", result.CommitSHA, result.TargetBranch)
	return result, nil
}

func (b *CommitBuilder) ensureNotSent() error {
	if b.sent {
		return newValidationError("createCommit builder cannot be reused after send")
	}
	return nil
}

func buildCommitMetadata(options CommitOptions, ops []commitOperation) *commitMetadataPayload {
	files := make([]fileEntryPayload, 0, len(ops))
	for _, op := range ops {
		entry := fileEntryPayload{
			Path:      op.Path,
			ContentID: op.ContentID,
			Operation: op.Operation,
		}
		if op.Operation == "upsert" && op.Mode != "" {
			entry.Mode = string(op.Mode)
		}
		files = append(files, entry)
	}

	metadata := &commitMetadataPayload{
		TargetBranch:  options.TargetBranch,
		CommitMessage: options.CommitMessage,
		Author: authorInfo{
			Name:  options.Author.Name,
			Email: options.Author.Email,
		},
		Files: files,
	}

	if options.ExpectedHeadSHA != "" {
		metadata.ExpectedHeadSHA = options.ExpectedHeadSHA
	}
	if options.BaseBranch != "" {
		metadata.BaseBranch = options.BaseBranch
	}
	if options.Committer != nil {
		metadata.Committer = &authorInfo{
			Name:  options.Committer.Name,
			Email: options.Committer.Email,
		}
	}
	if options.Ephemeral {
		metadata.Ephemeral = true
	}
	if options.EphemeralBase {
		metadata.EphemeralBase = true
	}

	return metadata
}

func normalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", newValidationError("file path must be a non-empty string")
	}
	return strings.TrimPrefix(path, "/"), nil
}

func normalizeBranchName(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", newValidationError("createCommit targetBranch is required")
	}
	if strings.HasPrefix(trimmed, "refs/heads/") {
		branch := strings.TrimSpace(strings.TrimPrefix(trimmed, "refs/heads/"))
		if branch == "" {
			return "", newValidationError("createCommit targetBranch is required")
		}
		return branch, nil
	}
	if strings.HasPrefix(trimmed, "refs/") {
		return "", newValidationError("createCommit targetBranch must not include refs/ prefix")
	}
	return trimmed, nil
}

func normalizeLegacyTargetRef(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", newValidationError("createCommit targetRef is required")
	}
	if !strings.HasPrefix(trimmed, "refs/heads/") {
		return "", newValidationError("createCommit targetRef must start with refs/heads/")
	}
	branch := strings.TrimSpace(strings.TrimPrefix(trimmed, "refs/heads/"))
	if branch == "" {
		return "", newValidationError("createCommit targetRef must include a branch name")
	}
	return branch, nil
}
