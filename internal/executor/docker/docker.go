package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/data-analyzer/internal/executor"
)

// Executor implements the executor.Executor interface using Docker.
//
// Each execution takes a single-use container from the pre-warmed pool,
// stages its own job directory (runner + snippet + dataset) via the copy
// API, runs the snippet, and reads the artifact back out before the
// container is destroyed. Nothing is shared between jobs — two concurrent
// analyses can never see each other's artifact.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New creates a new Docker Executor and initializes the connection.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	// Make sure the image is pulled. The scientific stack image is big, so
	// the first pull gets a generous budget; subsequent starts are instant.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	logger.Info("ensuring sandbox image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	io.Copy(io.Discard, reader)
	logger.Info("sandbox image is ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	exec.pool = NewPool(cli, cfg, logger)
	exec.pool.Start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Execute runs the provided snippet against the dataset in a sandboxed
// Docker container and captures stdout, stderr, the exit code, and the
// output.png artifact if one was produced.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()

	// Get a pre-warmed container ID from the pool
	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	// Always ensure we clean up the container that we acquired
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	// Stage the job directory: runner script, snippet, dataset.
	archive, err := buildJobArchive(req.Code, req.Dataset)
	if err != nil {
		return nil, err
	}
	if err := e.cli.CopyToContainer(ctx, containerID, "/tmp", archive, container.CopyToContainerOptions{}); err != nil {
		return nil, fmt.Errorf("failed to stage job files: %w", err)
	}

	// We apply a timeout context purely for the exec wait
	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	// The container idles on `sleep infinity`; the actual work happens in
	// a docker exec with the job directory as its working directory, so
	// the snippet's relative output.png lands next to its inputs.
	execConfig := container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   "/tmp/" + jobDir,
		Cmd:          []string{"python", runnerName},
	}

	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	// Channels to manage sync and timeout
	done := make(chan struct{})
	go func() {
		// Use stdcopy to demultiplex stdout from stderr
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	var finalExitCode int

	select {
	case <-done:
		// Completed normally
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			finalExitCode = inspectResp.ExitCode
		}
	case <-executeCtx.Done():
		// Timeout reached
		finalExitCode = 124 // Custom exit code for timeout (similar to unix timeout command)
		stderr.WriteString("\nExecution timed out.\n")
	}

	result := &executor.ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: finalExitCode,
		Duration: time.Since(start),
	}

	// A raised snippet never yields an artifact — the error takes priority
	// and skips the capture step entirely.
	if finalExitCode == 0 {
		result.Artifact = e.captureArtifact(ctx, containerID)
	}

	return result, nil
}

// captureArtifact reads the conventional output file out of the job
// directory. Absence is the normal "nothing visual to show" case, not an
// application error, so every failure path returns nil.
func (e *Executor) captureArtifact(ctx context.Context, containerID string) []byte {
	rc, _, err := e.cli.CopyFromContainer(ctx, containerID, "/tmp/"+jobDir+"/"+artifactName)
	if err != nil {
		e.logger.Debug("no artifact produced", slog.String("id", containerID))
		return nil
	}
	defer rc.Close()

	data, err := extractSingleFile(rc)
	if err != nil {
		e.logger.Warn("failed to read artifact archive", slog.String("error", err.Error()))
		return nil
	}

	e.logger.Debug("captured artifact", slog.Int("bytes", len(data)))
	return data
}
