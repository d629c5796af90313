// Package tasks - background execution of accepted build requests
// A bounded worker pool drains the queue; the orchestrator runs one
// round through generate, deploy and notify, trapping every error so
// nothing propagates back past the HTTP accept.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/ai"
	"github.com/ggokuldas06/tds-project1/internal/artifacts"
	"github.com/ggokuldas06/tds-project1/internal/deploy"
	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/internal/metrics"
	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// Generator produces raw model output for a prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// RepoDeployer publishes a file set for one round.
type RepoDeployer interface {
	Deploy(ctx context.Context, task string, round int, files models.FileSet) (*models.DeploymentResult, error)
}

// Notifier delivers the completion record to the evaluation server.
type Notifier interface {
	Notify(ctx context.Context, evaluationURL string, notification *models.EvaluationNotification) bool
}

// RunStore persists task run records. Persistence is advisory; the
// orchestrator logs store errors and keeps going.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.TaskRun) error
	SaveRun(ctx context.Context, run *models.TaskRun) error
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Email     string
	Generator Generator
	Deployer  RepoDeployer
	Notifier  Notifier
	Runs      RunStore // nil disables persistence
}

// Orchestrator runs one accepted request through the full pipeline.
type Orchestrator struct {
	deps Deps

	mu        sync.Mutex
	repoLocks map[string]*sync.Mutex
}

// NewOrchestrator creates an orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:      deps,
		repoLocks: make(map[string]*sync.Mutex),
	}
}

// Process runs one round end to end. It never returns an error: every
// failure is logged, recorded on the run row and swallowed, matching
// the contract that accepted tasks cannot fail the caller.
func (o *Orchestrator) Process(ctx context.Context, req *models.TaskRequest) {
	start := time.Now()
	metrics.Get().RecordTaskStart()

	run := &models.TaskRun{
		RunID:  uuid.New().String(),
		Task:   req.Task,
		Round:  req.Round,
		Nonce:  req.Nonce,
		Status: models.RunStatusQueued,
	}
	o.createRun(ctx, run)

	log := logging.L().With(
		zap.String("run_id", run.RunID),
		zap.String("task", req.Task),
		zap.Int("round", req.Round))
	log.Info("Processing task")

	run.Status = models.RunStatusGenerating
	o.saveRun(ctx, run)

	files, source, err := o.generate(ctx, req)
	if err != nil {
		o.fail(ctx, run, start, fmt.Errorf("code generation failed: %w", err), log)
		return
	}
	log.Info("Application generated",
		zap.String("parse_source", source),
		zap.Int("files", len(files)))

	run.ParseSource = source
	run.FileCount = len(files)
	run.Status = models.RunStatusDeploying
	o.saveRun(ctx, run)

	// Rounds for the same task share a repository; serialize them so a
	// duplicate delivery cannot interleave contents API writes.
	unlock := o.lockRepo(deploy.RepoName(req.Task))
	result, err := o.deps.Deployer.Deploy(ctx, req.Task, req.Round, files)
	unlock()
	if err != nil {
		o.fail(ctx, run, start, fmt.Errorf("deployment failed: %w", err), log)
		return
	}

	run.RepoURL = result.RepoURL
	run.CommitSHA = result.CommitSHA
	run.PagesURL = result.PagesURL
	run.Status = models.RunStatusNotifying
	o.saveRun(ctx, run)

	notification := &models.EvaluationNotification{
		Email:     o.deps.Email,
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		RepoURL:   result.RepoURL,
		CommitSHA: result.CommitSHA,
		PagesURL:  result.PagesURL,
	}
	run.Notified = o.deps.Notifier.Notify(ctx, req.EvaluationURL, notification)

	now := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	o.saveRun(ctx, run)

	metrics.Get().RecordTaskOutcome(true, time.Since(start))
	log.Info("Task completed",
		zap.String("repo_url", result.RepoURL),
		zap.String("pages_url", result.PagesURL),
		zap.Bool("notified", run.Notified),
		zap.Duration("took", time.Since(start)))
}

// generate builds the prompt, calls the model and turns the response
// into a deployable file set with attachments merged and the standard
// artifacts added.
func (o *Orchestrator) generate(ctx context.Context, req *models.TaskRequest) (models.FileSet, string, error) {
	prompt := ai.BuildPrompt(req.Task, req.Round, req.Brief, req.Checks, req.Attachments)

	raw, err := o.deps.Generator.Generate(ctx, ai.SystemPrompt, prompt)
	if err != nil {
		return nil, "", err
	}

	parsed := ai.Parse(raw)
	files := ai.MergeAttachments(parsed.Files, req.Attachments)
	files = artifacts.Augment(files, req.Task, req.Brief)
	return files, parsed.Source, nil
}

func (o *Orchestrator) fail(ctx context.Context, run *models.TaskRun, start time.Time, err error, log *zap.Logger) {
	log.Error("Task processing failed", zap.Error(err))

	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.Error = err.Error()
	run.CompletedAt = &now
	o.saveRun(ctx, run)

	metrics.Get().RecordTaskOutcome(false, time.Since(start))
}

func (o *Orchestrator) createRun(ctx context.Context, run *models.TaskRun) {
	if o.deps.Runs == nil {
		return
	}
	if err := o.deps.Runs.CreateRun(ctx, run); err != nil {
		logging.L().Warn("Could not persist task run",
			zap.String("run_id", run.RunID), zap.Error(err))
	}
}

func (o *Orchestrator) saveRun(ctx context.Context, run *models.TaskRun) {
	if o.deps.Runs == nil {
		return
	}
	if err := o.deps.Runs.SaveRun(ctx, run); err != nil {
		logging.L().Warn("Could not update task run",
			zap.String("run_id", run.RunID), zap.Error(err))
	}
}

// lockRepo acquires the per-repository mutex, creating it on first use,
// and returns the unlock.
func (o *Orchestrator) lockRepo(name string) func() {
	o.mu.Lock()
	l, ok := o.repoLocks[name]
	if !ok {
		l = &sync.Mutex{}
		o.repoLocks[name] = l
	}
	o.mu.Unlock()

	l.Lock()
	return l.Unlock
}
