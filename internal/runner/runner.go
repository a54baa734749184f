// Package runner executes Metasploit modules over RPC, one at a time, and
// collects typed results. Auxiliary modules run through a framework console
// so their output can be captured; everything else runs as a background job
// that is polled until it finishes or times out.
package runner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"msfauditor/internal/msfrpc"
)

// RPC is the subset of the msfrpc client the runner needs. Narrowed to an
// interface so sequence behavior is testable without a live msfrpcd.
type RPC interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ModuleExecute(ctx context.Context, moduleType, name string, options map[string]interface{}) (*msfrpc.ExecuteResult, error)
	JobList(ctx context.Context) (map[string]string, error)
	JobStop(ctx context.Context, jobID int) error
	SessionList(ctx context.Context) (map[uint32]msfrpc.Session, error)
	ConsoleCreate(ctx context.Context) (*msfrpc.Console, error)
	ConsoleDestroy(ctx context.Context, consoleID string) error
	ConsoleWrite(ctx context.Context, consoleID, data string) error
	ConsoleRead(ctx context.Context, consoleID string) (*msfrpc.ConsoleOutput, error)
}

// ModuleSpec identifies one module to run.
type ModuleSpec struct {
	// Path is the full module path, e.g. auxiliary/scanner/portscan/tcp.
	Path string
	// Type overrides the type derived from the path prefix when set.
	Type string
	// Options are extra datastore options beyond RHOSTS.
	Options map[string]interface{}
	// Priority is carried through to the result for reporting.
	Priority string
}

// Status of a single module run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Result is the outcome of one module run.
type Result struct {
	Module          string  `json:"module" yaml:"module"`
	Type            string  `json:"module_type" yaml:"module_type"`
	Target          string  `json:"target" yaml:"target"`
	Status          Status  `json:"status" yaml:"status"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	JobID           int     `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	UUID            string  `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Output          string  `json:"output,omitempty" yaml:"output,omitempty"`
	Error           string  `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp       string  `json:"timestamp" yaml:"timestamp"`

	Duration time.Duration `json:"-" yaml:"-"`
}

// StatusFunc receives per-module progress during a sequence.
type StatusFunc func(index int, spec ModuleSpec, status Status, d time.Duration, err error)

// Runner drives module execution over an RPC connection.
type Runner struct {
	rpc     RPC
	timeout time.Duration
	poll    time.Duration
	logger  *log.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPollInterval overrides the one second job/console poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.poll = d }
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// New creates a runner with a per-module timeout.
func New(rpc RPC, timeout time.Duration, opts ...Option) *Runner {
	r := &Runner{
		rpc:     rpc,
		timeout: timeout,
		poll:    time.Second,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect logs in to the RPC service.
func (r *Runner) Connect(ctx context.Context) error {
	if err := r.rpc.Login(ctx); err != nil {
		return fmt.Errorf("connecting to Metasploit RPC: %w", err)
	}
	r.logger.Info("connected to Metasploit RPC")
	return nil
}

// Close logs out. Errors are logged, not returned; the run already
// finished.
func (r *Runner) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.rpc.Logout(ctx); err != nil {
		r.logger.Warn("logout failed", "error", err)
		return
	}
	r.logger.Info("disconnected from Metasploit RPC")
}

// ResolveType splits a module path into its type and framework-internal
// name. An explicit type wins over the path prefix; a bare path with no
// known prefix defaults to auxiliary.
func ResolveType(spec ModuleSpec) (moduleType, name string) {
	path := spec.Path
	for _, typ := range []string{"auxiliary", "exploit", "payload", "encoder", "nop", "post", "evasion"} {
		if strings.HasPrefix(path, typ+"/") {
			name = strings.TrimPrefix(path, typ+"/")
			if spec.Type != "" {
				return spec.Type, name
			}
			return typ, name
		}
	}
	if spec.Type != "" {
		return spec.Type, path
	}
	return "auxiliary", path
}

var sensitiveFragments = []string{"pass", "key", "secret", "token"}

// MaskValue hides option values whose names suggest credentials.
func MaskValue(name string, value interface{}) string {
	lower := strings.ToLower(name)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return "***"
		}
	}
	return fmt.Sprintf("%v", value)
}

// RunModule executes a single module against the target and waits for it
// to finish, up to the per-module timeout.
func (r *Runner) RunModule(ctx context.Context, spec ModuleSpec, target string) Result {
	moduleType, name := ResolveType(spec)
	started := time.Now()

	result := Result{
		Module:    spec.Path,
		Type:      moduleType,
		Target:    target,
		Timestamp: started.UTC().Format(time.RFC3339),
	}

	options := map[string]interface{}{}
	for k, v := range spec.Options {
		options[k] = v
	}
	if moduleType == "auxiliary" || moduleType == "exploit" {
		options["RHOSTS"] = target
	}

	r.logger.Info("running module", "module", spec.Path, "type", moduleType, "target", target)
	for k, v := range options {
		r.logger.Debug("module option", "name", k, "value", MaskValue(k, v))
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var err error
	if moduleType == "auxiliary" {
		result.Output, err = r.runInConsole(runCtx, spec.Path, options)
	} else {
		err = r.runAsJob(runCtx, moduleType, name, options, &result)
		if err == nil && moduleType == "exploit" {
			r.recordSessions(runCtx, &result)
		}
	}

	result.Duration = time.Since(started)
	result.DurationSeconds = result.Duration.Seconds()

	switch {
	case err == nil:
		result.Status = StatusCompleted
		r.logger.Info("module completed", "module", spec.Path, "duration", result.Duration.Round(time.Millisecond))
	case runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		result.Status = StatusTimeout
		result.Error = fmt.Sprintf("timed out after %s", r.timeout)
		r.logger.Warn("module timed out", "module", spec.Path, "timeout", r.timeout)
	default:
		result.Status = StatusFailed
		result.Error = err.Error()
		r.logger.Error("module failed", "module", spec.Path, "error", err)
	}
	return result
}

// runAsJob starts the module via module.execute and polls the job list
// until the job finishes. A run that returns no job id completed
// immediately.
func (r *Runner) runAsJob(ctx context.Context, moduleType, name string, options map[string]interface{}, result *Result) error {
	exec, err := r.rpc.ModuleExecute(ctx, moduleType, name, options)
	if err != nil {
		return err
	}
	result.JobID = exec.JobID
	result.UUID = exec.UUID
	if exec.JobID == 0 && exec.UUID == "" {
		return nil
	}

	jobKey := strconv.Itoa(exec.JobID)
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Kill the job so a timed out module does not keep running
			// server-side. Separate context: ctx is already dead.
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if stopErr := r.rpc.JobStop(stopCtx, exec.JobID); stopErr != nil {
				r.logger.Warn("failed to stop job", "job", exec.JobID, "error", stopErr)
			}
			cancel()
			return ctx.Err()
		case <-ticker.C:
			jobs, err := r.rpc.JobList(ctx)
			if err != nil {
				return fmt.Errorf("polling job %d: %w", exec.JobID, err)
			}
			if _, running := jobs[jobKey]; !running {
				return nil
			}
		}
	}
}

// recordSessions appends any session the exploit opened to the result
// output. Matched on the exploit UUID so concurrent sessions from other
// operators are not claimed.
func (r *Runner) recordSessions(ctx context.Context, result *Result) {
	sessions, err := r.rpc.SessionList(ctx)
	if err != nil {
		r.logger.Warn("session list failed", "error", err)
		return
	}
	for id, session := range sessions {
		if result.UUID != "" && session.ExploitUUID != result.UUID {
			continue
		}
		line := fmt.Sprintf("session %d opened: %s %s via %s\n",
			id, session.Type, session.TunnelPeer, session.ViaPayload)
		result.Output += line
		r.logger.Info("session opened", "session", id, "type", session.Type, "peer", session.TunnelPeer)
	}
}

// runInConsole drives a framework console: use the module, set options,
// run, then drain buffered output until the console goes idle. This is the
// only way msfrpc exposes auxiliary module output.
func (r *Runner) runInConsole(ctx context.Context, modulePath string, options map[string]interface{}) (string, error) {
	console, err := r.rpc.ConsoleCreate(ctx)
	if err != nil {
		return "", fmt.Errorf("creating console: %w", err)
	}
	defer func() {
		destroyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.rpc.ConsoleDestroy(destroyCtx, console.ID); err != nil {
			r.logger.Warn("failed to destroy console", "console", console.ID, "error", err)
		}
	}()

	// Drain the banner before sending commands.
	if _, err := r.drainConsole(ctx, console.ID); err != nil {
		return "", err
	}

	var commands strings.Builder
	fmt.Fprintf(&commands, "use %s\n", modulePath)
	// Deterministic option order keeps console transcripts stable.
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&commands, "set %s %v\n", name, options[name])
	}
	commands.WriteString("run\n")

	if err := r.rpc.ConsoleWrite(ctx, console.ID, commands.String()); err != nil {
		return "", fmt.Errorf("writing to console: %w", err)
	}

	return r.drainConsole(ctx, console.ID)
}

// drainConsole reads console output until the console reports idle and the
// buffer is empty.
func (r *Runner) drainConsole(ctx context.Context, consoleID string) (string, error) {
	var output strings.Builder
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return output.String(), ctx.Err()
		case <-ticker.C:
			chunk, err := r.rpc.ConsoleRead(ctx, consoleID)
			if err != nil {
				return output.String(), fmt.Errorf("reading console: %w", err)
			}
			output.WriteString(chunk.Data)
			if !chunk.Busy && chunk.Data == "" {
				return output.String(), nil
			}
		}
	}
}

// RunSequence executes specs in order against the target, continuing past
// failures. The status callback, when set, observes every transition.
func (r *Runner) RunSequence(ctx context.Context, specs []ModuleSpec, target string, status StatusFunc) []Result {
	notify := func(i int, spec ModuleSpec, st Status, d time.Duration, err error) {
		if status != nil {
			status(i, spec, st, d, err)
		}
	}

	results := make([]Result, 0, len(specs))
	for i, spec := range specs {
		if ctx.Err() != nil {
			break
		}
		notify(i, spec, StatusRunning, 0, nil)

		result := r.RunModule(ctx, spec, target)
		results = append(results, result)

		var err error
		if result.Error != "" {
			err = fmt.Errorf("%s", result.Error)
		}
		notify(i, spec, result.Status, result.Duration, err)
	}
	return results
}
