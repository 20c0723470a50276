package storage

import (
	"context"
	"io"
	"strings"
)

// CreateCommitFromDiff applies a unified diff as a single commit. Unlike
// CreateCommit there is no builder stage; the diff is the whole payload, so
// validation and send collapse into one call.
func (r *Repo) CreateCommitFromDiff(ctx context.Context, options CommitFromDiffOptions) (CommitResult, error) {
	options, err := normalizeDiffCommitOptions(options)
	if err != nil {
		return CommitResult{}, err
	}

	if strings.TrimSpace(r.ID) == "" {
		return CommitResult{}, newValidationError("createCommitFromDiff repository id is required")
	}

	client := r.client
	token, err := client.tokens.Token(ctx, r.ID, TokenOptions{
		Permissions: []Permission{PermissionGitWrite},
		TTL:         resolveTTL(options.InvocationOptions),
	})
	if err != nil {
		return CommitResult{}, err
	}

	diff, err := options.Diff.open()
	if err != nil {
		return CommitResult{}, err
	}

	metadata := buildDiffCommitMetadata(options)

	pipeReader, pipeWriter := io.Pipe()
	go func() {
		if err := writeDiffFrames(pipeWriter, metadata, diff); err != nil {
			_ = pipeWriter.CloseWithError(err)
			return
		}
		_ = pipeWriter.Close()
	}()

	url := client.basePath() + "/repos/diff-commit"
	resp, err := client.doStreamingPost(ctx, url, token, pipeReader)
	if err != nil {
		return CommitResult{}, err
	}
	defer resp.Body.Close()

	result, err := translateCommitResponse(resp, "createCommitFromDiff")
	if err != nil {
		return CommitResult{}, err
	}
	client.l.Debugf(ctx, "diff commit %s accepted on %s", result.CommitSHA, result.TargetBranch)
	return result, nil
}

func normalizeDiffCommitOptions(options CommitFromDiffOptions) (CommitFromDiffOptions, error) {
	options.TargetBranch = strings.TrimSpace(options.TargetBranch)
	options.CommitMessage = strings.TrimSpace(options.CommitMessage)
	options.ExpectedHeadSHA = strings.TrimSpace(options.ExpectedHeadSHA)
	options.BaseBranch = strings.TrimSpace(options.BaseBranch)

	if options.Diff == nil {
		return options, newValidationError("createCommitFromDiff diff is required")
	}

	branch, err := normalizeDiffBranchName(options.TargetBranch)
	if err != nil {
		return options, err
	}
	options.TargetBranch = branch

	if options.CommitMessage == "" {
		return options, newValidationError("createCommitFromDiff commitMessage is required")
	}

	if strings.TrimSpace(options.Author.Name) == "" || strings.TrimSpace(options.Author.Email) == "" {
		return options, newValidationError("createCommitFromDiff author name and email are required")
	}
	options.Author.Name = strings.TrimSpace(options.Author.Name)
	options.Author.Email = strings.TrimSpace(options.Author.Email)

	if options.BaseBranch != "" && strings.HasPrefix(options.BaseBranch, "refs/") {
		return options, newValidationError("createCommitFromDiff baseBranch must not include refs/ prefix")
	}
	if options.EphemeralBase && options.BaseBranch == "" {
		return options, newValidationError("createCommitFromDiff ephemeralBase requires baseBranch")
	}

	if options.Committer != nil {
		if strings.TrimSpace(options.Committer.Name) == "" || strings.TrimSpace(options.Committer.Email) == "" {
			return options, newValidationError("createCommitFromDiff committer name and email are required when provided")
		}
		options.Committer.Name = strings.TrimSpace(options.Committer.Name)
		options.Committer.Email = strings.TrimSpace(options.Committer.Email)
	}

	return options, nil
}

func normalizeDiffBranchName(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", newValidationError("createCommitFromDiff targetBranch is required")
	}
	if strings.HasPrefix(trimmed, "refs/heads/") {
		branch := strings.TrimSpace(strings.TrimPrefix(trimmed, "refs/heads/"))
		if branch == "" {
			return "", newValidationError("createCommitFromDiff targetBranch must include a branch name")
		}
		return branch, nil
	}
	if strings.HasPrefix(trimmed, "refs/") {
		return "", newValidationError("createCommitFromDiff targetBranch must not include refs/ prefix")
	}
	return trimmed, nil
}

func buildDiffCommitMetadata(options CommitFromDiffOptions) *commitMetadataPayload {
	metadata := &commitMetadataPayload{
		TargetBranch:  options.TargetBranch,
		CommitMessage: options.CommitMessage,
		Author: authorInfo{
			Name:  options.Author.Name,
			Email: options.Author.Email,
		},
	}

	if options.ExpectedHeadSHA != "" {
		metadata.ExpectedHeadSHA = options.ExpectedHeadSHA
	}
	if options.BaseBranch != "" {
		metadata.BaseBranch = options.BaseBranch
	}
	if options.Ephemeral {
		metadata.Ephemeral = true
	}
	if options.EphemeralBase {
		metadata.EphemeralBase = true
	}
	if options.Committer != nil {
		metadata.Committer = &authorInfo{
			Name:  options.Committer.Name,
			Email: options.Committer.Email,
		}
	}

	return metadata
}
