// Package ghmeta verifies that a GitHub-remote plan row's recorded commit
// SHA can still be fetched from the repository before the row is
// handed to a build worker, the same way cmd/autobuilder in the teacher
// repo resolves commits with go-github before building them.
package ghmeta

import (
	"context"

	"github.com/google/go-github/v27/github"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

// Client wraps a go-github client scoped to one optional access token.
type Client struct {
	gh *github.Client
}

// NewClient builds a Client. An empty accessToken yields an unauthenticated
// client, subject to GitHub's lower unauthenticated rate limit.
func NewClient(ctx context.Context, accessToken string) *Client {
	if accessToken == "" {
		return &Client{gh: github.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return &Client{gh: github.NewClient(oauth2.NewClient(ctx, ts))}
}

// VerifyError reports a GitHub remote row whose recorded commit could not be
// confirmed.
type VerifyError struct {
	Owner, Repo, SHA string
	Err              error
}

func (e *VerifyError) Error() string {
	return xerrors.Errorf("verify %s/%s@%s: %w", e.Owner, e.Repo, e.SHA, e.Err).Error()
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Verify confirms that sha is a real, fetchable commit on owner/repo. Plan
// rows of type github carry owner/repo/sha in Row.Metadata
// (RemoteUsername/RemoteRepo/RemoteSha); this is the pre-flight check run
// before such a row is scheduled for build, so a stale pinned commit fails
// fast instead of surfacing as an opaque build-worker error later.
func (c *Client) Verify(ctx context.Context, owner, repo, sha string) error {
	_, _, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha)
	if err != nil {
		return &VerifyError{Owner: owner, Repo: repo, SHA: sha, Err: err}
	}
	return nil
}
