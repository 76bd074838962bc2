// Package executor applies parsed actions to a local workspace directory.
// It is the reference implementation of the execution boundary: file writes
// first, then install, then run, with per-action results.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/atelierhq/atelier/internal/action"
	"github.com/atelierhq/atelier/internal/logging"
)

// Local executes actions against a directory on the local filesystem.
type Local struct {
	root string

	// maxParallelWrites bounds concurrent file writes within one batch.
	maxParallelWrites int
}

// NewLocal creates an executor rooted at dir. The directory is created if it
// does not exist.
func NewLocal(dir string) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("executor root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create executor root: %w", err)
	}
	return &Local{root: dir, maxParallelWrites: 8}, nil
}

// Execute runs a batch in pipeline order. File writes and deletes run
// concurrently with each other; install and run are dispatched only after
// every preceding file action in the batch succeeded. One command's failure
// blocks later commands but never erases the results already produced.
func (l *Local) Execute(ctx context.Context, batch []action.Action) []action.Result {
	var fileActions, commandActions []action.Action
	for _, a := range batch {
		switch a.Type {
		case action.TypeWriteFile, action.TypeDeleteFile:
			fileActions = append(fileActions, a)
		default:
			commandActions = append(commandActions, a)
		}
	}

	results := make(map[string]action.Result, len(batch))
	filesOK := l.applyFiles(ctx, fileActions, results)

	gateOpen := filesOK
	for _, a := range commandActions {
		if !gateOpen {
			results[a.ID] = action.Result{
				ActionID: a.ID,
				Success:  false,
				Error:    "skipped: an earlier action in the batch failed",
			}
			continue
		}
		res := l.runCommand(ctx, a)
		results[a.ID] = res
		if !res.Success {
			gateOpen = false
		}
	}

	// Results come back in batch order regardless of execution order.
	ordered := make([]action.Result, 0, len(batch))
	for _, a := range batch {
		ordered = append(ordered, results[a.ID])
	}
	return ordered
}

func (l *Local) applyFiles(ctx context.Context, fileActions []action.Action, results map[string]action.Result) bool {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxParallelWrites)

	resCh := make([]action.Result, len(fileActions))
	for i, a := range fileActions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				resCh[i] = action.Result{ActionID: a.ID, Success: false, Error: err.Error()}
				return err
			}
			res := l.applyFile(a)
			resCh[i] = res
			if !res.Success {
				return fmt.Errorf("%s %s: %s", a.Type, a.Path, res.Error)
			}
			return nil
		})
	}
	err := g.Wait()

	for _, res := range resCh {
		if res.ActionID != "" {
			results[res.ActionID] = res
		}
	}
	// Cancellation can leave actions that never started; report them.
	for _, a := range fileActions {
		if _, ok := results[a.ID]; !ok {
			results[a.ID] = action.Result{ActionID: a.ID, Success: false, Error: "not started"}
		}
	}
	return err == nil
}

func (l *Local) applyFile(a action.Action) action.Result {
	target, err := l.resolve(a.Path)
	if err != nil {
		return action.Result{ActionID: a.ID, Success: false, Error: err.Error()}
	}

	switch a.Type {
	case action.TypeWriteFile:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return action.Result{ActionID: a.ID, Success: false, Error: err.Error()}
		}
		if err := os.WriteFile(target, []byte(a.Content), 0o644); err != nil {
			return action.Result{ActionID: a.ID, Success: false, Error: err.Error()}
		}
		return action.Result{ActionID: a.ID, Success: true, Output: a.Path}

	case action.TypeDeleteFile:
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return action.Result{ActionID: a.ID, Success: false, Error: err.Error()}
		}
		return action.Result{ActionID: a.ID, Success: true, Output: a.Path}

	default:
		return action.Result{ActionID: a.ID, Success: false, Error: fmt.Sprintf("not a file action: %s", a.Type)}
	}
}

func (l *Local) runCommand(ctx context.Context, a action.Action) action.Result {
	switch a.Type {
	case action.TypeInstall:
		args := append([]string{"install"}, a.Packages...)
		cmd := exec.CommandContext(ctx, "npm", args...)
		cmd.Dir = l.root
		out, err := cmd.CombinedOutput()
		if err != nil {
			log.Warn().Err(err).Str("output", logging.Snippet(string(out), 240)).Msg("install failed")
			return action.Result{ActionID: a.ID, Success: false, Output: string(out), Error: err.Error()}
		}
		return action.Result{ActionID: a.ID, Success: true, Output: string(out)}

	case action.TypeRun:
		// Dev servers do not exit; start detached and report the pid.
		parts := strings.Fields(a.Command)
		if len(parts) == 0 {
			return action.Result{ActionID: a.ID, Success: false, Error: "empty run command"}
		}
		cmd := exec.Command(parts[0], parts[1:]...)
		cmd.Dir = l.root
		for k, v := range a.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		if len(cmd.Env) > 0 {
			cmd.Env = append(os.Environ(), cmd.Env...)
		}
		if err := cmd.Start(); err != nil {
			return action.Result{ActionID: a.ID, Success: false, Error: err.Error()}
		}
		pid := strconv.Itoa(cmd.Process.Pid)
		log.Info().Str("command", a.Command).Str("pid", pid).Msg("dev process started")
		return action.Result{
			ActionID: a.ID,
			Success:  true,
			Output:   "started: " + a.Command,
			Metadata: map[string]string{"pid": pid},
		}

	default:
		return action.Result{ActionID: a.ID, Success: false, Error: fmt.Sprintf("unsupported action type: %s", a.Type)}
	}
}

// resolve maps an action path into the root, rejecting escapes.
func (l *Local) resolve(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute path not allowed: %s", p)
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", p)
	}
	return filepath.Join(l.root, clean), nil
}
