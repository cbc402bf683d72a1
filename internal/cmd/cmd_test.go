package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/de-monkey-v/hyper-team-sub000/internal/config"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/member"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
	"github.com/de-monkey-v/hyper-team-sub000/internal/testutil"
)

// executeCommand runs the root command with args and returns captured output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so values do not leak
// between executions of the shared command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type cliEnv struct {
	base  string
	procs *testutil.FakeManager
}

// setupCLI points the CLI at a temp workspace with a fake pane manager and
// fast polling.
func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{base: testutil.Workspace(t), procs: testutil.NewFakeManager()}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HYPERTEAM_PATHS_BASE_DIR", env.base)
	t.Setenv("HYPERTEAM_MAILBOX_POLL_INTERVAL_MS", "10")
	t.Setenv("HYPERTEAM_MAILBOX_MAX_BACKOFF_MS", "50")
	t.Setenv("HYPERTEAM_MAILBOX_USE_FSNOTIFY", "false")
	t.Setenv("HYPERTEAM_LIFECYCLE_SPAWN_TIMEOUT_MS", "500")
	t.Setenv("HYPERTEAM_LIFECYCLE_SHUTDOWN_WAIT_SECONDS", "2")
	t.Setenv("HYPERTEAM_LIFECYCLE_SHUTDOWN_ATTEMPTS", "1")

	orig := newProcessManager
	newProcessManager = func(*config.Config, *logging.Logger) process.Manager { return env.procs }
	t.Cleanup(func() { newProcessManager = orig })
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := executeCommand(t, args...)
	if err != nil {
		t.Fatalf("hyperteam %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// answerShutdowns runs a member inbox loop for name until it approves a
// shutdown request.
func (e *cliEnv) answerShutdowns(t *testing.T, team, name string) <-chan error {
	t.Helper()
	reg := registry.New(e.base)
	mail := mailbox.New(reg, mailbox.WithFSNotify(false), mailbox.WithPolling(10*time.Millisecond, 50*time.Millisecond))
	agent, err := member.New(mail, team, name)
	if err != nil {
		t.Fatalf("member.New() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- agent.Run(ctx)
	}()
	t.Cleanup(cancel)
	return done
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "hyperteam" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "hyperteam")
	}

	expected := []string{"team", "member", "msg", "task", "orphans", "serve", "monitor", "logs", "config"}
	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, name := range expected {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestTeamLifecycle(t *testing.T) {
	env := setupCLI(t)

	out := env.run(t, "team", "create", "alpha", "-d", "parser rewrite")
	if !strings.Contains(out, "Created team alpha (lead team-lead@alpha)") {
		t.Errorf("create output = %q", out)
	}
	if _, err := executeCommand(t, "team", "create", "alpha"); err == nil {
		t.Error("creating a duplicate team should fail")
	}
	if _, err := executeCommand(t, "team", "create", "Bad_Name"); err == nil {
		t.Error("an invalid team name should fail")
	}

	out = env.run(t, "member", "spawn", "alpha", "w1", "--prompt", "review the parser")
	if !strings.Contains(out, "Spawned w1@alpha") {
		t.Errorf("spawn output = %q", out)
	}
	if spawned := env.procs.Spawned(); len(spawned) != 1 || spawned[0].Prompt != "review the parser" {
		t.Errorf("spawned specs = %+v", spawned)
	}

	out = env.run(t, "team", "list")
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "2/2 active") {
		t.Errorf("list output = %q", out)
	}

	out = env.run(t, "member", "list", "alpha", "-o", "json")
	var handles []struct {
		Member string `json:"member"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal([]byte(out), &handles); err != nil {
		t.Fatalf("member list json: %v\n%s", err, out)
	}
	if len(handles) != 2 || handles[1].Member != "w1" || handles[1].State != "active" {
		t.Errorf("handles = %+v", handles)
	}

	done := env.answerShutdowns(t, "alpha", "w1")
	out = env.run(t, "team", "delete", "alpha")
	if !strings.Contains(out, "Deleted team alpha") {
		t.Errorf("delete output = %q", out)
	}
	if err := <-done; err != nil {
		t.Errorf("member loop error = %v", err)
	}
	if len(env.procs.Terminated()) != 1 {
		t.Errorf("terminated = %+v, want w1's pane", env.procs.Terminated())
	}

	out = env.run(t, "team", "list")
	if !strings.Contains(out, "No teams.") {
		t.Errorf("list after delete = %q", out)
	}
}

func TestMemberShutdown_Timeout(t *testing.T) {
	env := setupCLI(t)
	env.run(t, "team", "create", "alpha")
	env.run(t, "member", "spawn", "alpha", "w1")

	// Nobody answers for w1.
	_, err := executeCommand(t, "member", "shutdown", "alpha", "w1")
	if err == nil {
		t.Fatal("expected shutdown timeout")
	}
	if !strings.Contains(err.Error(), "shutdown timeout") {
		t.Errorf("error = %v", err)
	}
}

func TestMessaging(t *testing.T) {
	env := setupCLI(t)
	env.run(t, "team", "create", "alpha")
	env.run(t, "member", "spawn", "alpha", "w1")

	env.run(t, "msg", "send", "alpha", "w1", "start with the lexer", "-s", "first task")
	env.run(t, "msg", "broadcast", "alpha", "standup in 5")

	out := env.run(t, "msg", "inbox", "alpha", "w1", "-o", "json")
	var msgs []mailbox.Message
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatalf("inbox json: %v\n%s", err, out)
	}
	if len(msgs) != 2 || msgs[0].Text != "start with the lexer" || msgs[1].Type() != mailbox.TypeBroadcast {
		t.Fatalf("inbox = %+v", msgs)
	}

	out = env.run(t, "msg", "inbox", "alpha", "w1", "--type", "broadcast")
	if strings.Contains(out, "lexer") || !strings.Contains(out, "standup in 5") {
		t.Errorf("type filter output = %q", out)
	}

	env.run(t, "msg", "read", "alpha", "w1", msgs[0].ID)
	out = env.run(t, "msg", "inbox", "alpha", "w1")
	if strings.Contains(out, "lexer") {
		t.Errorf("read message still listed: %q", out)
	}
	out = env.run(t, "msg", "inbox", "alpha", "w1", "--all")
	if !strings.Contains(out, "lexer") {
		t.Errorf("--all should include read messages: %q", out)
	}

	if _, err := executeCommand(t, "msg", "send", "alpha", "ghost", "hi"); err == nil {
		t.Error("sending to an unknown member should fail")
	}
}

// addTask runs task add and returns the new task's ID.
func (e *cliEnv) addTask(t *testing.T, team, subject string, extra ...string) string {
	t.Helper()
	out := e.run(t, append([]string{"task", "add", team, subject}, extra...)...)
	id := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "Added task #"))
	if id == "" || strings.Contains(id, " ") {
		t.Fatalf("cannot parse task id from %q", out)
	}
	return id
}

func TestTaskCommands(t *testing.T) {
	env := setupCLI(t)
	env.run(t, "team", "create", "alpha")
	env.run(t, "member", "spawn", "alpha", "w1")

	design := env.addTask(t, "alpha", "design api")
	impl := env.addTask(t, "alpha", "implement", "--tag", "core", "--priority", "2")
	env.run(t, "task", "block", "alpha", design, impl)

	if _, err := executeCommand(t, "task", "block", "alpha", impl, design); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("reverse edge should be rejected as a cycle, got %v", err)
	}
	if _, err := executeCommand(t, "task", "claim", "alpha", impl, "w1"); err == nil {
		t.Error("claiming a blocked task should fail")
	}

	out := env.run(t, "task", "roots", "alpha")
	if strings.TrimSpace(out) != design {
		t.Errorf("roots = %q, want %s", out, design)
	}

	env.run(t, "task", "claim", "alpha", design, "w1")
	env.run(t, "task", "status", "alpha", design, "completed")
	env.run(t, "task", "claim", "alpha", impl, "w1")

	out = env.run(t, "task", "list", "alpha", "-o", "json")
	var tasks []taskgraph.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("task list json: %v\n%s", err, out)
	}
	if len(tasks) != 2 || tasks[0].Status != taskgraph.StatusCompleted || tasks[1].Owner != "w1" {
		t.Errorf("tasks = %+v", tasks)
	}
	if tasks[1].Priority != 2 || len(tasks[1].Tags) != 1 || tasks[1].Tags[0] != "core" {
		t.Errorf("flags not applied: %+v", tasks[1])
	}

	out = env.run(t, "task", "graph", "alpha", "--width", "0")
	if !strings.Contains(out, "design api") || !strings.Contains(out, "└── ") {
		t.Errorf("tree output:\n%s", out)
	}
	out = env.run(t, "task", "graph", "alpha", "-o", "dot")
	if !strings.Contains(out, "digraph") || !strings.Contains(out, `"`+design+`" -> "`+impl+`"`) {
		t.Errorf("dot output:\n%s", out)
	}

	out = env.run(t, "task", "cycles", "alpha")
	if !strings.Contains(out, "No cycles.") {
		t.Errorf("cycles output = %q", out)
	}

	env.run(t, "task", "archive", "alpha", design)
	out = env.run(t, "task", "roots", "alpha")
	if strings.Contains(out, design) {
		t.Errorf("archived task still a root: %q", out)
	}

	if _, err := executeCommand(t, "task", "add", "ghost", "x"); err == nil {
		t.Error("adding a task to an unknown team should fail")
	}
}

func TestIdleNotificationCompletesTask(t *testing.T) {
	env := setupCLI(t)
	env.run(t, "team", "create", "alpha")
	env.run(t, "member", "spawn", "alpha", "w1")
	id := env.addTask(t, "alpha", "write tests")
	env.run(t, "task", "claim", "alpha", id, "w1")

	reg := registry.New(env.base)
	agent, err := member.New(mailbox.New(reg), "alpha", "w1")
	if err != nil {
		t.Fatalf("member.New() error = %v", err)
	}
	if err := agent.NotifyIdle(id, "done"); err != nil {
		t.Fatalf("NotifyIdle() error = %v", err)
	}

	out := env.run(t, "msg", "process", "alpha")
	if !strings.Contains(out, "Handled 1") {
		t.Errorf("process output = %q", out)
	}

	store, err := taskgraph.Open(taskgraph.BackendJSON, env.base)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	g, err := store.Load(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if task, _ := g.Get(id); task.Status != taskgraph.StatusCompleted {
		t.Errorf("task status = %s, want completed", task.Status)
	}
}

func TestOrphans(t *testing.T) {
	env := setupCLI(t)
	env.run(t, "team", "create", "alpha")
	env.run(t, "member", "spawn", "alpha", "w1")
	env.procs.AddPane("beta", "ghost")

	out := env.run(t, "orphans")
	if !strings.Contains(out, "orphan pane") || strings.Contains(out, "stale member") {
		t.Errorf("orphans output = %q", out)
	}

	env.procs.Kill(naming.PaneName("alpha", "w1"))
	out = env.run(t, "orphans", "--reap")
	if !strings.Contains(out, "Reaped") {
		t.Errorf("reap output = %q", out)
	}
	out = env.run(t, "orphans")
	if !strings.Contains(out, "No orphans.") {
		t.Errorf("after reap = %q", out)
	}
}

func TestLogs(t *testing.T) {
	env := setupCLI(t)
	env.run(t, "team", "create", "alpha")

	out := env.run(t, "logs", "--team", "alpha", "-n", "0")
	if !strings.Contains(out, "team created") {
		t.Errorf("logs output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(env.base, "logs", logging.LogFileName)); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}
