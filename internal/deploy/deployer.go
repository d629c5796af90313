// Package deploy - GitHub Pages deployment for generated applications
// Publishes a generated file set as a public repository and waits for
// the Pages site to come up.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/git"
	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/internal/metrics"
	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// GitHub is the repository API surface the deployer needs.
type GitHub interface {
	Owner() string
	PagesURL(repo string) string
	CreateRepo(ctx context.Context, name, description string) (*git.Repo, error)
	GetRepo(ctx context.Context, name string) (*git.Repo, error)
	GetContentSHA(ctx context.Context, repo, path, branch string) (string, error)
	PutFile(ctx context.Context, repo, path, branch, message string, content []byte, sha string) error
	HeadCommitSHA(ctx context.Context, repo, branch string) (string, error)
	EnablePages(ctx context.Context, repo, branch string) error
}

// Deployer publishes generated file sets as GitHub Pages sites.
type Deployer struct {
	gh     GitHub
	poller *Poller
}

// NewDeployer creates a deployer over the given GitHub client.
func NewDeployer(gh GitHub, poller *Poller) *Deployer {
	return &Deployer{gh: gh, poller: poller}
}

// RepoName normalizes a task id into a GitHub repository name. Dots and
// underscores become hyphens.
func RepoName(task string) string {
	name := strings.ReplaceAll(task, ".", "-")
	return strings.ReplaceAll(name, "_", "-")
}

// Deploy publishes files for one round. Round 1 creates the repository;
// later rounds update it in place, falling back to creation when the
// repository no longer exists.
func (d *Deployer) Deploy(ctx context.Context, task string, round int, files models.FileSet) (*models.DeploymentResult, error) {
	repoName := RepoName(task)
	if round <= 1 {
		metrics.Get().RecordDeploy("create")
		return d.createAndDeploy(ctx, repoName, task, files)
	}
	return d.update(ctx, repoName, task, round, files)
}

func (d *Deployer) createAndDeploy(ctx context.Context, repoName, task string, files models.FileSet) (*models.DeploymentResult, error) {
	logging.L().Info("Creating repository", zap.String("repo", repoName))

	repo, err := d.gh.CreateRepo(ctx, repoName, fmt.Sprintf("Auto-generated application: %s", task))
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	logging.L().Info("Repository created", zap.String("url", repo.HTMLURL))

	branch := repo.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	commitSHA, err := d.uploadFiles(ctx, repoName, branch, files, "Initial commit")
	if err != nil {
		return nil, err
	}

	pagesURL := d.enablePages(ctx, repoName, branch)

	d.poller.Wait(ctx, pagesURL)

	return &models.DeploymentResult{
		RepoURL:   repo.HTMLURL,
		CommitSHA: commitSHA,
		PagesURL:  pagesURL,
	}, nil
}

func (d *Deployer) update(ctx context.Context, repoName, task string, round int, files models.FileSet) (*models.DeploymentResult, error) {
	logging.L().Info("Updating repository", zap.String("repo", repoName), zap.Int("round", round))

	repo, err := d.gh.GetRepo(ctx, repoName)
	if errors.Is(err, git.ErrNotFound) {
		logging.L().Warn("Repository not found, creating new one", zap.String("repo", repoName))
		metrics.Get().RecordDeploy("fallback")
		return d.createAndDeploy(ctx, repoName, task, files)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up repository: %w", err)
	}
	metrics.Get().RecordDeploy("update")

	branch := repo.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	commitSHA, err := d.uploadFiles(ctx, repoName, branch, files, fmt.Sprintf("Update application (Round %d)", round))
	if err != nil {
		return nil, err
	}

	pagesURL := d.gh.PagesURL(repoName)

	logging.L().Info("Waiting for Pages to rebuild")
	d.poller.WaitWithWarmup(ctx, pagesURL)

	return &models.DeploymentResult{
		RepoURL:   repo.HTMLURL,
		CommitSHA: commitSHA,
		PagesURL:  pagesURL,
	}, nil
}

// uploadFiles writes every file through the contents API, updating in
// place when the path already exists, and returns the head commit sha.
func (d *Deployer) uploadFiles(ctx context.Context, repoName, branch string, files models.FileSet, message string) (string, error) {
	logging.L().Info("Uploading files", zap.Int("count", len(files)), zap.String("repo", repoName))

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sha, err := d.gh.GetContentSHA(ctx, repoName, name, branch)
		switch {
		case err == nil:
			if err := d.gh.PutFile(ctx, repoName, name, branch, message, files[name], sha); err != nil {
				return "", fmt.Errorf("error uploading %s: %w", name, err)
			}
			logging.L().Info("Updated file", zap.String("name", name))
		case errors.Is(err, git.ErrNotFound):
			if err := d.gh.PutFile(ctx, repoName, name, branch, message, files[name], ""); err != nil {
				return "", fmt.Errorf("error uploading %s: %w", name, err)
			}
			logging.L().Info("Created file", zap.String("name", name))
		default:
			return "", fmt.Errorf("error uploading %s: %w", name, err)
		}
	}

	sha, err := d.gh.HeadCommitSHA(ctx, repoName, branch)
	if err != nil {
		return "", fmt.Errorf("failed to read head commit: %w", err)
	}
	logging.L().Info("Commit SHA", zap.String("sha", sha))
	return sha, nil
}

// enablePages is best-effort. Failures are logged and the derived URL
// returned regardless.
func (d *Deployer) enablePages(ctx context.Context, repoName, branch string) string {
	logging.L().Info("Enabling GitHub Pages", zap.String("repo", repoName))

	pagesURL := d.gh.PagesURL(repoName)
	if err := d.gh.EnablePages(ctx, repoName, branch); err != nil {
		logging.L().Warn("Could not enable Pages", zap.String("repo", repoName), zap.Error(err))
	} else {
		logging.L().Info("GitHub Pages enabled", zap.String("url", pagesURL))
	}
	return pagesURL
}
