package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procuredocs/procuredocs/internal/auth"
	"github.com/procuredocs/procuredocs/jobs"
)

// Streams holds the writers a command reports to.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (s Streams) withDefaults() Streams {
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	if s.Stderr == nil {
		s.Stderr = os.Stderr
	}
	return s
}

// Migrator runs one goose command.
type Migrator func(ctx context.Context, command string, args ...string) error

// MigrateCommand runs `migrate [up|down|status|version|reset] [args]`.
func MigrateCommand(ctx context.Context, migrate Migrator, args []string, streams Streams) int {
	streams = streams.withDefaults()
	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	switch command {
	case "up", "down", "status", "version", "reset", "redo", "up-to", "down-to":
	default:
		_, _ = fmt.Fprintf(streams.Stderr, "migrate: unknown command %q\n", command)
		return 2
	}
	if migrate == nil {
		_, _ = fmt.Fprintln(streams.Stderr, "migrate: database not configured")
		return 1
	}
	if err := migrate(ctx, command, args...); err != nil {
		_, _ = fmt.Fprintf(streams.Stderr, "migrate %s failed: %v\n", command, err)
		return 1
	}
	_, _ = fmt.Fprintf(streams.Stdout, "migrate %s ok\n", command)
	return 0
}

// TokenCommand issues a bearer token: `token -account <id> [-ttl 24h]`.
func TokenCommand(verifier *auth.Verifier, args []string, streams Streams) int {
	streams = streams.withDefaults()
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(streams.Stderr)
	account := fs.String("account", "", "account id to place in the token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*account) == "" {
		_, _ = fmt.Fprintln(streams.Stderr, "token: -account is required")
		return 2
	}
	if !verifier.Enabled() {
		_, _ = fmt.Fprintln(streams.Stderr, "token: AUTH_JWT_SECRET is not set")
		return 1
	}
	token, err := verifier.Issue(*account, *ttl)
	if err != nil {
		_, _ = fmt.Fprintf(streams.Stderr, "token: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(streams.Stdout, token)
	return 0
}

// SyncEnqueuer queues supplier sync tasks.
type SyncEnqueuer interface {
	EnqueueSupplierSync(ctx context.Context, payload jobs.SupplierSyncPayload) (*asynq.TaskInfo, error)
}

// EnqueueCommand queues a supplier sync task:
// `enqueue -document <id> -user <id> -supplier <name> [-data '{"status":"inactive"}']`.
func EnqueueCommand(ctx context.Context, enqueuer SyncEnqueuer, args []string, streams Streams) int {
	streams = streams.withDefaults()
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(streams.Stderr)
	document := fs.String("document", "", "document id")
	user := fs.String("user", "", "owning account id")
	supplier := fs.String("supplier", "", "extracted supplier name")
	data := fs.String("data", "", "updateData as a JSON object")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *document == "" || *user == "" || *supplier == "" {
		_, _ = fmt.Fprintln(streams.Stderr, "enqueue: -document, -user and -supplier are required")
		return 2
	}
	payload := jobs.SupplierSyncPayload{DocumentID: *document, UserID: *user, SupplierName: *supplier}
	if *data != "" {
		if err := json.Unmarshal([]byte(*data), &payload.UpdateData); err != nil {
			_, _ = fmt.Fprintf(streams.Stderr, "enqueue: -data must be a JSON object: %v\n", err)
			return 2
		}
	}
	info, err := enqueuer.EnqueueSupplierSync(ctx, payload)
	if err != nil {
		if errors.Is(err, jobs.ErrAlreadyQueued) {
			_, _ = fmt.Fprintf(streams.Stdout, "document %s already queued\n", *document)
			return 0
		}
		_, _ = fmt.Fprintf(streams.Stderr, "enqueue: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(streams.Stdout, "queued %s on %s\n", info.ID, info.Queue)
	return 0
}

// QueueOps is the queue surface used by the trigger and queue commands.
type QueueOps interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// TriggerCommand enqueues a maintenance job by name.
func TriggerCommand(ctx context.Context, ops QueueOps, args []string, streams Streams) int {
	streams = streams.withDefaults()
	if len(args) != 1 {
		_, _ = fmt.Fprintf(streams.Stderr, "trigger: expected one job name (%s)\n", jobs.TaskIdempotencyPurge)
		return 2
	}
	info, err := ops.Trigger(ctx, args[0])
	if err != nil {
		_, _ = fmt.Fprintf(streams.Stderr, "trigger: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(streams.Stdout, "queued %s on %s\n", info.ID, info.Queue)
	return 0
}

// QueueCommand prints default queue statistics as JSON.
func QueueCommand(ctx context.Context, ops QueueOps, streams Streams) int {
	streams = streams.withDefaults()
	stats, err := ops.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(streams.Stderr, "queue: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(streams.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return 1
	}
	return 0
}
