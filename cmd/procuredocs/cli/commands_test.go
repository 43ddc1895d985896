package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/procuredocs/procuredocs/internal/auth"
	"github.com/procuredocs/procuredocs/jobs"
)

func buffers() (*bytes.Buffer, *bytes.Buffer, Streams) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	return stdout, stderr, Streams{Stdout: stdout, Stderr: stderr}
}

func TestMigrateCommand(t *testing.T) {
	var gotCommand string
	var gotArgs []string
	migrator := func(ctx context.Context, command string, args ...string) error {
		gotCommand = command
		gotArgs = args
		return nil
	}

	stdout, _, streams := buffers()
	require.Equal(t, 0, MigrateCommand(context.Background(), migrator, nil, streams))
	require.Equal(t, "up", gotCommand)
	require.Contains(t, stdout.String(), "migrate up ok")

	_, _, streams = buffers()
	require.Equal(t, 0, MigrateCommand(context.Background(), migrator, []string{"up-to", "2"}, streams))
	require.Equal(t, "up-to", gotCommand)
	require.Equal(t, []string{"2"}, gotArgs)

	_, stderr, streams := buffers()
	require.Equal(t, 2, MigrateCommand(context.Background(), migrator, []string{"explode"}, streams))
	require.Contains(t, stderr.String(), "unknown command")

	failing := func(ctx context.Context, command string, args ...string) error { return errors.New("no table") }
	_, stderr, streams = buffers()
	require.Equal(t, 1, MigrateCommand(context.Background(), failing, []string{"status"}, streams))
	require.Contains(t, stderr.String(), "no table")
}

func TestTokenCommand(t *testing.T) {
	verifier := auth.NewVerifier("cli-test-secret-that-is-long-enough", "procuredocs")

	stdout, _, streams := buffers()
	require.Equal(t, 0, TokenCommand(verifier, []string{"-account", "acct-1", "-ttl", "1h"}, streams))
	account, err := verifier.Verify(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	require.Equal(t, "acct-1", account)

	_, stderr, streams := buffers()
	require.Equal(t, 2, TokenCommand(verifier, nil, streams))
	require.Contains(t, stderr.String(), "-account is required")

	_, stderr, streams = buffers()
	require.Equal(t, 1, TokenCommand(nil, []string{"-account", "acct-1"}, streams))
	require.Contains(t, stderr.String(), "AUTH_JWT_SECRET")
}

type stubEnqueuer struct {
	payload jobs.SupplierSyncPayload
	err     error
}

func (s *stubEnqueuer) EnqueueSupplierSync(ctx context.Context, payload jobs.SupplierSyncPayload) (*asynq.TaskInfo, error) {
	s.payload = payload
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueDefault}, nil
}

func TestEnqueueCommand(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	stdout, _, streams := buffers()
	code := EnqueueCommand(context.Background(), enqueuer, []string{
		"-document", "doc-1", "-user", "u1", "-supplier", "Acme Corp", "-data", `{"status":"inactive"}`,
	}, streams)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "queued task-1 on default")
	require.Equal(t, "Acme Corp", enqueuer.payload.SupplierName)
	require.JSONEq(t, `"inactive"`, string(enqueuer.payload.UpdateData["status"]))

	_, _, streams = buffers()
	require.Equal(t, 2, EnqueueCommand(context.Background(), enqueuer, []string{"-document", "doc-1"}, streams))

	_, stderr, streams := buffers()
	require.Equal(t, 2, EnqueueCommand(context.Background(), enqueuer, []string{
		"-document", "doc-1", "-user", "u1", "-supplier", "Acme", "-data", `[1]`,
	}, streams))
	require.Contains(t, stderr.String(), "JSON object")

	enqueuer.err = jobs.ErrAlreadyQueued
	stdout, _, streams = buffers()
	require.Equal(t, 0, EnqueueCommand(context.Background(), enqueuer, []string{
		"-document", "doc-1", "-user", "u1", "-supplier", "Acme",
	}, streams))
	require.Contains(t, stdout.String(), "already queued")
}

type stubQueueOps struct {
	stats QueueStats
	err   error
}

func (s stubQueueOps) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if name != jobs.TaskIdempotencyPurge {
		return nil, errors.New("unsupported")
	}
	return &asynq.TaskInfo{ID: "purge-1", Queue: jobs.QueueDefault, EnqueuedAt: time.Now()}, nil
}

func (s stubQueueOps) InspectQueue(ctx context.Context) (QueueStats, error) {
	return s.stats, s.err
}

func TestTriggerAndQueueCommands(t *testing.T) {
	ops := stubQueueOps{stats: QueueStats{Queue: jobs.QueueDefault, Pending: 4, Retry: 1}}

	stdout, _, streams := buffers()
	require.Equal(t, 0, TriggerCommand(context.Background(), ops, []string{jobs.TaskIdempotencyPurge}, streams))
	require.Contains(t, stdout.String(), "queued purge-1")

	_, _, streams = buffers()
	require.Equal(t, 1, TriggerCommand(context.Background(), ops, []string{"other"}, streams))
	_, _, streams = buffers()
	require.Equal(t, 2, TriggerCommand(context.Background(), ops, nil, streams))

	stdout, _, streams = buffers()
	require.Equal(t, 0, QueueCommand(context.Background(), ops, streams))
	var decoded QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	require.Equal(t, 4, decoded.Pending)

	_, _, streams = buffers()
	require.Equal(t, 1, QueueCommand(context.Background(), stubQueueOps{err: errors.New("down")}, streams))
}
