// Package tasks runs chapter and book refreshes on a persistent backlite
// queue so they survive restarts and are retried on transient API failures.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Enqueuer adds tasks to the queue and returns their IDs.
type Enqueuer interface {
	Enqueue(tasks ...backlite.Task) ([]string, error)
}

// Client wraps backlite with a dedicated SQLite database. A refresh for a
// book or chapter that is still pending or running is not queued twice; the
// existing task ID is returned instead.
type Client struct {
	client *backlite.Client
	db     *sql.DB
	config Config

	mu       sync.Mutex
	started  bool
	inFlight map[string]string // refresh key -> task ID
}

// refreshKeyer is implemented by tasks that refresh one library entity.
type refreshKeyer interface {
	refreshKey() string
}

// TasksDBPath returns the queue database path that sits next to the main
// database: "reader.db" becomes "reader-tasks.db".
func TasksDBPath(mainDBPath string) string {
	dir := filepath.Dir(mainDBPath)
	base := filepath.Base(mainDBPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, base[:len(base)-len(ext)]+"-tasks"+ext)
}

func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	db, err := sql.Open("sqlite3", TasksDBPath(mainDBPath)+"?_journal=WAL&_timeout=5000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Workers + 5)
	db.SetMaxIdleConns(cfg.Workers + 2)
	db.SetConnMaxLifetime(time.Hour)

	client, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          &stdLogger{},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create backlite client: %w", err)
	}

	if err := client.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to install backlite schema: %w", err)
	}

	return &Client{
		client:   client,
		db:       db,
		config:   cfg,
		inFlight: map[string]string{},
	}, nil
}

// Register adds queues. Call before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.client.Register(q)
	}
}

// Start begins processing tasks. It does not block.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	log.Printf("[TASK] Queue started with %d workers", c.config.Workers)
	c.client.Start(ctx)
}

// Stop waits for active tasks to complete. Returns true if all workers
// finished before the context deadline.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return true
	}

	success := c.client.Stop(ctx)
	if success {
		log.Println("[TASK] Queue stopped gracefully")
	} else {
		log.Println("[TASK] Queue stopped with timeout, some refreshes may not have completed")
	}
	return success
}

// Close releases the database. Call after Stop.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Enqueue saves tasks and returns one ID per task, in order. Refreshes that
// are already queued keep their original ID.
func (c *Client) Enqueue(tasks ...backlite.Task) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, len(tasks))
	var (
		fresh    []backlite.Task
		freshPos []int
	)
	for i, task := range tasks {
		if id, ok := c.queuedLocked(task); ok {
			ids[i] = id
			continue
		}
		fresh = append(fresh, task)
		freshPos = append(freshPos, i)
	}
	if len(fresh) == 0 {
		return ids, nil
	}

	saved, err := c.client.Add(fresh...).Save()
	if err != nil {
		return nil, fmt.Errorf("enqueue %d tasks: %w", len(fresh), err)
	}
	for j, id := range saved {
		ids[freshPos[j]] = id
		if k, ok := fresh[j].(refreshKeyer); ok {
			c.inFlight[k.refreshKey()] = id
		}
	}
	return ids, nil
}

// queuedLocked returns the ID of an identical refresh that has not finished.
func (c *Client) queuedLocked(task backlite.Task) (string, bool) {
	k, ok := task.(refreshKeyer)
	if !ok {
		return "", false
	}
	id, ok := c.inFlight[k.refreshKey()]
	if !ok {
		return "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := c.client.Status(ctx, id)
	if err == nil && (status == backlite.TaskStatusPending || status == backlite.TaskStatusRunning) {
		return id, true
	}
	delete(c.inFlight, k.refreshKey())
	return "", false
}

// Status returns the status of a task by ID.
func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.client.Status(ctx, taskID)
}

type stdLogger struct{}

func (l *stdLogger) Info(message string, params ...any) {
	log.Printf("[TASK] "+message, params...)
}

func (l *stdLogger) Error(message string, params ...any) {
	log.Printf("[TASK ERROR] "+message, params...)
}
