package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/me/branchq/internal/branch"
	"github.com/me/branchq/internal/config"
	"github.com/me/branchq/internal/dispatch"
	"github.com/me/branchq/internal/journal"
	"github.com/me/branchq/internal/lifecycle"
	"github.com/me/branchq/internal/script"
	"github.com/me/branchq/internal/segmentation"
	"github.com/me/branchq/internal/server"
	"github.com/me/branchq/pkg/model"
)

// startTestServer starts a full server over one in-memory branch and
// returns its URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rule, err := dispatch.New(dispatch.RuleSimple, nil)
	if err != nil {
		t.Fatalf("dispatch rule: %v", err)
	}
	jnl, err := journal.NewSQLiteJournal(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := jnl.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate journal: %v", err)
	}
	t.Cleanup(func() { jnl.Close() })

	b := model.NewBranch("br1", "Main", "MB")
	b.Queues["q1"] = &model.Queue{ID: "q1", Name: "Standard", TicketPrefix: "A"}
	b.ServicePoints["sp1"] = &model.ServicePoint{ID: "sp1", Name: "Window 1"}
	b.Users["u1"] = &model.User{ID: "u1", Name: "clerk"}
	b.WorkProfiles["wp1"] = &model.WorkProfile{ID: "wp1", Name: "all", QueueIDs: []string{"q1"}}
	b.Services["svc1"] = &model.Service{ID: "svc1", Name: "Deposits", LinkedQueueID: "q1"}

	resolver := segmentation.NewResolver(script.NewEngine(script.DefaultTimeout, srvLogger), srvLogger)
	svc := branch.NewService(lifecycle.NewMachine(srvLogger), resolver, rule, nil, jnl, srvLogger)
	svc.AddBranch(b)

	srv := server.New(config.DefaultServerConfig(), svc, srvLogger, server.WithJournal(jnl))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// issueTestTicket creates a visit via the API and returns its ID.
func issueTestTicket(t *testing.T, serverURL string) string {
	t.Helper()

	c := NewClient(serverURL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	resp, err := c.Post("/api/v1/branches/br1/visits", map[string]any{"service_id": "svc1"})
	if err != nil {
		t.Fatalf("create visit: %v", err)
	}
	var data map[string]any
	json.Unmarshal(resp.Data, &data)
	return data["id"].(string)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// captureStdout runs the CLI and returns what it printed.
func captureStdout(t *testing.T, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	_, err := runCLI(t, args...)

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String(), err
}

func TestBranchesCommand(t *testing.T) {
	url := startTestServer(t)

	output, err := captureStdout(t, "--server", url, "branches")
	if err != nil {
		t.Fatalf("branches error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "br1") {
		t.Errorf("expected br1 in output, got: %s", output)
	}
	if !strings.Contains(output, "Main") {
		t.Errorf("expected branch name in output, got: %s", output)
	}
}

func TestQueuesCommand(t *testing.T) {
	url := startTestServer(t)
	issueTestTicket(t, url)

	output, err := captureStdout(t, "--server", url, "queues", "br1")
	if err != nil {
		t.Fatalf("queues error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "q1") {
		t.Errorf("expected q1 in output, got: %s", output)
	}
}

func TestTicketCommand(t *testing.T) {
	url := startTestServer(t)

	output, err := captureStdout(t, "--server", url, "ticket", "br1", "svc1", "--param", "vip=yes")
	if err != nil {
		t.Fatalf("ticket error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "Ticket issued: A001") {
		t.Errorf("expected issued ticket in output, got: %s", output)
	}
	if !strings.Contains(output, "Queue: q1") {
		t.Errorf("expected queue in output, got: %s", output)
	}
}

func TestTicketCommand_BadParam(t *testing.T) {
	url := startTestServer(t)

	_, err := captureStdout(t, "--server", url, "ticket", "br1", "svc1", "--param", "novalue")
	if err == nil {
		t.Fatal("expected error for malformed --param")
	}
}

func TestVisitCommand(t *testing.T) {
	url := startTestServer(t)
	visitID := issueTestTicket(t, url)

	output, err := captureStdout(t, "--server", url, "visit", "br1", visitID, "--events")
	if err != nil {
		t.Fatalf("visit error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, visitID) {
		t.Errorf("expected visit ID in output, got: %s", output)
	}
	if !strings.Contains(output, "WAITING_IN_QUEUE") {
		t.Errorf("expected waiting status in output, got: %s", output)
	}
	if !strings.Contains(output, "PLACED_IN_QUEUE") {
		t.Errorf("expected placement event in output, got: %s", output)
	}
}

func TestCallFlow(t *testing.T) {
	url := startTestServer(t)
	issueTestTicket(t, url)

	output, err := captureStdout(t, "--server", url, "open", "br1", "sp1", "--user", "u1", "--profile", "wp1")
	if err != nil {
		t.Fatalf("open error: %v\noutput: %s", err, output)
	}

	output, err = captureStdout(t, "--server", url, "call", "br1", "sp1")
	if err != nil {
		t.Fatalf("call error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "Called: A001") {
		t.Errorf("expected called ticket in output, got: %s", output)
	}

	output, err = captureStdout(t, "--server", url, "serve", "br1", "sp1")
	if err != nil {
		t.Fatalf("serve error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "SERVING") {
		t.Errorf("expected serving status in output, got: %s", output)
	}

	output, err = captureStdout(t, "--server", url, "finish", "br1", "sp1")
	if err != nil {
		t.Fatalf("finish error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "END") {
		t.Errorf("expected ended status in output, got: %s", output)
	}
}

func TestCallCommand_NothingWaiting(t *testing.T) {
	url := startTestServer(t)

	output, err := captureStdout(t, "--server", url, "open", "br1", "sp1", "--user", "u1", "--profile", "wp1")
	if err != nil {
		t.Fatalf("open error: %v\noutput: %s", err, output)
	}

	output, err = captureStdout(t, "--server", url, "call", "br1", "sp1")
	if err != nil {
		t.Fatalf("call error: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "No visits waiting.") {
		t.Errorf("expected empty-call notice, got: %s", output)
	}
}

func TestCallCommand_Unstaffed(t *testing.T) {
	url := startTestServer(t)
	issueTestTicket(t, url)

	_, err := captureStdout(t, "--server", url, "call", "br1", "sp1")
	if err == nil {
		t.Fatal("expected error calling at an unstaffed service point")
	}
	if !strings.Contains(err.Error(), "FORBIDDEN") {
		t.Errorf("expected forbidden error, got: %v", err)
	}
}

func TestBackCommand_InvalidTarget(t *testing.T) {
	url := startTestServer(t)

	_, err := captureStdout(t, "--server", url, "back", "br1", "sp1", "--to", "somewhere")
	if err == nil {
		t.Fatal("expected error for invalid --to target")
	}
}
