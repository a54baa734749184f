package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"msfauditor/internal/msfrpc"
)

// stubRPC is a scripted RPC backend. Console reads and job lists pop from
// queues so tests can drive the polling loops deterministically.
type stubRPC struct {
	mu sync.Mutex

	loginErr   error
	executeErr error
	execResult msfrpc.ExecuteResult

	jobLists   []map[string]string
	jobStopped []int
	sessions   map[uint32]msfrpc.Session

	consoleReads  []msfrpc.ConsoleOutput
	consoleInput  strings.Builder
	consoleErr    error
	destroyedIDs  []string
	createdConsos int
}

func (s *stubRPC) Login(ctx context.Context) error  { return s.loginErr }
func (s *stubRPC) Logout(ctx context.Context) error { return nil }

func (s *stubRPC) ModuleExecute(ctx context.Context, moduleType, name string, options map[string]interface{}) (*msfrpc.ExecuteResult, error) {
	if s.executeErr != nil {
		return nil, s.executeErr
	}
	res := s.execResult
	return &res, nil
}

func (s *stubRPC) JobList(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobLists) == 0 {
		return map[string]string{}, nil
	}
	jobs := s.jobLists[0]
	s.jobLists = s.jobLists[1:]
	return jobs, nil
}

func (s *stubRPC) JobStop(ctx context.Context, jobID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStopped = append(s.jobStopped, jobID)
	return nil
}

func (s *stubRPC) SessionList(ctx context.Context) (map[uint32]msfrpc.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		return map[uint32]msfrpc.Session{}, nil
	}
	return s.sessions, nil
}

func (s *stubRPC) ConsoleCreate(ctx context.Context) (*msfrpc.Console, error) {
	if s.consoleErr != nil {
		return nil, s.consoleErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdConsos++
	return &msfrpc.Console{ID: "0", Prompt: "msf6 > "}, nil
}

func (s *stubRPC) ConsoleDestroy(ctx context.Context, consoleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyedIDs = append(s.destroyedIDs, consoleID)
	return nil
}

func (s *stubRPC) ConsoleWrite(ctx context.Context, consoleID, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consoleInput.WriteString(data)
	return nil
}

func (s *stubRPC) ConsoleRead(ctx context.Context, consoleID string) (*msfrpc.ConsoleOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.consoleReads) == 0 {
		return &msfrpc.ConsoleOutput{}, nil
	}
	out := s.consoleReads[0]
	s.consoleReads = s.consoleReads[1:]
	return &out, nil
}

func newTestRunner(rpc RPC, timeout time.Duration) *Runner {
	return New(rpc, timeout, WithPollInterval(time.Millisecond))
}

func TestResolveType(t *testing.T) {
	tests := []struct {
		spec     ModuleSpec
		wantType string
		wantName string
	}{
		{ModuleSpec{Path: "auxiliary/scanner/portscan/tcp"}, "auxiliary", "scanner/portscan/tcp"},
		{ModuleSpec{Path: "exploit/unix/webapp/thing"}, "exploit", "unix/webapp/thing"},
		{ModuleSpec{Path: "post/multi/gather/env"}, "post", "multi/gather/env"},
		{ModuleSpec{Path: "scanner/http/title"}, "auxiliary", "scanner/http/title"},
		{ModuleSpec{Path: "scanner/http/title", Type: "exploit"}, "exploit", "scanner/http/title"},
	}

	for _, tt := range tests {
		gotType, gotName := ResolveType(tt.spec)
		if gotType != tt.wantType || gotName != tt.wantName {
			t.Errorf("ResolveType(%q) = (%q, %q), want (%q, %q)",
				tt.spec.Path, gotType, gotName, tt.wantType, tt.wantName)
		}
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"RHOSTS", "10.0.0.1", "10.0.0.1"},
		{"PASSWORD", "hunter2", "***"},
		{"SMBPass", "hunter2", "***"},
		{"API_KEY", "sk-abc", "***"},
		{"TOKEN", "t", "***"},
		{"THREADS", 10, "10"},
	}

	for _, tt := range tests {
		if got := MaskValue(tt.name, tt.value); got != tt.want {
			t.Errorf("MaskValue(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRunModuleConsoleCapture(t *testing.T) {
	rpc := &stubRPC{
		consoleReads: []msfrpc.ConsoleOutput{
			{Data: "banner\n", Busy: false},
			{Data: "", Busy: false}, // banner drained
			{Data: "[*] Scanning 10.0.0.1\n", Busy: true},
			{Data: "[+] 10.0.0.1:80 open\n", Busy: true},
			{Data: "[*] Auxiliary module execution completed\n", Busy: false},
			{Data: "", Busy: false}, // idle and empty: done
		},
	}
	r := newTestRunner(rpc, 5*time.Second)

	result := r.RunModule(context.Background(), ModuleSpec{
		Path:    "auxiliary/scanner/portscan/tcp",
		Options: map[string]interface{}{"THREADS": 10, "PORTS": "80,443"},
	}, "10.0.0.1")

	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed (error: %s)", result.Status, result.Error)
	}
	if !strings.Contains(result.Output, "10.0.0.1:80 open") {
		t.Errorf("Output missing scan line:\n%s", result.Output)
	}
	if strings.Contains(result.Output, "banner") {
		t.Errorf("Output contains pre-command banner:\n%s", result.Output)
	}

	input := rpc.consoleInput.String()
	if !strings.HasPrefix(input, "use auxiliary/scanner/portscan/tcp\n") {
		t.Errorf("console input does not start with use:\n%s", input)
	}
	if !strings.HasSuffix(input, "run\n") {
		t.Errorf("console input does not end with run:\n%s", input)
	}
	// Options are set in sorted order.
	portsIdx := strings.Index(input, "set PORTS 80,443\n")
	rhostsIdx := strings.Index(input, "set RHOSTS 10.0.0.1\n")
	threadsIdx := strings.Index(input, "set THREADS 10\n")
	if portsIdx < 0 || rhostsIdx < 0 || threadsIdx < 0 {
		t.Fatalf("missing set commands:\n%s", input)
	}
	if !(portsIdx < rhostsIdx && rhostsIdx < threadsIdx) {
		t.Errorf("set commands not sorted:\n%s", input)
	}

	if len(rpc.destroyedIDs) != 1 {
		t.Errorf("console destroyed %d times, want 1", len(rpc.destroyedIDs))
	}
}

func TestRunModuleAsJob(t *testing.T) {
	rpc := &stubRPC{
		execResult: msfrpc.ExecuteResult{JobID: 3, UUID: "uuid-3"},
		jobLists: []map[string]string{
			{"3": "Exploit: unix/webapp/thing"},
			{"3": "Exploit: unix/webapp/thing"},
			{},
		},
		sessions: map[uint32]msfrpc.Session{
			1: {Type: "shell", TunnelPeer: "10.0.0.1:4444", ViaPayload: "payload/generic/shell_reverse_tcp", ExploitUUID: "uuid-3"},
			2: {Type: "shell", TunnelPeer: "10.9.9.9:4444", ExploitUUID: "someone-else"},
		},
	}
	r := newTestRunner(rpc, 5*time.Second)

	result := r.RunModule(context.Background(), ModuleSpec{Path: "exploit/unix/webapp/thing"}, "10.0.0.1")

	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed (error: %s)", result.Status, result.Error)
	}
	if result.JobID != 3 || result.UUID != "uuid-3" {
		t.Errorf("JobID/UUID = %d/%q", result.JobID, result.UUID)
	}
	if !strings.Contains(result.Output, "session 1 opened") {
		t.Errorf("Output missing opened session:\n%s", result.Output)
	}
	if strings.Contains(result.Output, "session 2") {
		t.Errorf("Output claims another operator's session:\n%s", result.Output)
	}
}

func TestRunModuleTimeout(t *testing.T) {
	rpc := &stubRPC{
		execResult: msfrpc.ExecuteResult{JobID: 9, UUID: "uuid-9"},
	}
	alwaysRunning := &foreverJobRPC{stubRPC: rpc}

	r := newTestRunner(alwaysRunning, 20*time.Millisecond)
	result := r.RunModule(context.Background(), ModuleSpec{Path: "exploit/unix/webapp/thing"}, "10.0.0.1")

	if result.Status != StatusTimeout {
		t.Fatalf("Status = %s, want timeout", result.Status)
	}
	if len(rpc.jobStopped) != 1 || rpc.jobStopped[0] != 9 {
		t.Errorf("jobStopped = %v, want [9]", rpc.jobStopped)
	}
}

// foreverJobRPC reports its job as always running.
type foreverJobRPC struct {
	*stubRPC
}

func (f *foreverJobRPC) JobList(ctx context.Context) (map[string]string, error) {
	return map[string]string{"9": "Exploit: unix/webapp/thing"}, nil
}

func TestRunModuleFailure(t *testing.T) {
	rpc := &stubRPC{consoleErr: errors.New("console limit reached")}
	r := newTestRunner(rpc, time.Second)

	result := r.RunModule(context.Background(), ModuleSpec{Path: "auxiliary/scanner/http/title"}, "10.0.0.1")
	if result.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", result.Status)
	}
	if !strings.Contains(result.Error, "console limit reached") {
		t.Errorf("Error = %q", result.Error)
	}
}

func TestRunSequenceContinuesPastFailures(t *testing.T) {
	rpc := &stubRPC{consoleErr: errors.New("boom")}
	r := newTestRunner(rpc, time.Second)

	specs := []ModuleSpec{
		{Path: "auxiliary/scanner/http/title"},
		{Path: "auxiliary/scanner/http/robots_txt"},
	}

	var transitions []string
	results := r.RunSequence(context.Background(), specs, "10.0.0.1",
		func(i int, spec ModuleSpec, status Status, d time.Duration, err error) {
			transitions = append(transitions, fmt.Sprintf("%d:%s", i, status))
		})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, result := range results {
		if result.Status != StatusFailed {
			t.Errorf("%s status = %s, want failed", result.Module, result.Status)
		}
	}

	want := []string{"0:running", "0:failed", "1:running", "1:failed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestRunSequenceStopsOnCancel(t *testing.T) {
	rpc := &stubRPC{
		consoleReads: []msfrpc.ConsoleOutput{{Data: "", Busy: false}, {Data: "", Busy: false}},
	}
	r := newTestRunner(rpc, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := r.RunSequence(ctx, []ModuleSpec{
		{Path: "auxiliary/scanner/http/title"},
		{Path: "auxiliary/scanner/http/robots_txt"},
	}, "10.0.0.1", nil)

	if len(results) != 0 {
		t.Errorf("got %d results on cancelled context, want 0", len(results))
	}
}

func TestRunModuleSetsRHOSTS(t *testing.T) {
	rpc := &stubRPC{
		consoleReads: []msfrpc.ConsoleOutput{
			{Data: "", Busy: false},
			{Data: "done\n", Busy: false},
			{Data: "", Busy: false},
		},
	}
	r := newTestRunner(rpc, time.Second)

	r.RunModule(context.Background(), ModuleSpec{Path: "auxiliary/scanner/http/title"}, "example.com")

	if !strings.Contains(rpc.consoleInput.String(), "set RHOSTS example.com\n") {
		t.Errorf("RHOSTS not set for auxiliary run:\n%s", rpc.consoleInput.String())
	}
}
