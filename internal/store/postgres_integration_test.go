//go:build integration

package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Joel-Projects/modlogd/config"
	"github.com/Joel-Projects/modlogd/internal/database"
	"github.com/Joel-Projects/modlogd/internal/models"
)

// containersAvailable returns true if a Docker or Podman socket is present
func containersAvailable() bool {
	if _, err := os.Stat("/var/run/docker.sock"); err == nil {
		return true
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		if uid := os.Getuid(); uid > 0 {
			candidate := "/run/user/" + strconv.Itoa(uid) + "/podman/podman.sock"
			if _, err := os.Stat(candidate); err == nil {
				return true
			}
		}
	} else {
		candidate := filepath.Join(runtimeDir, "podman", "podman.sock")
		if _, err := os.Stat(candidate); err == nil {
			return true
		}
	}
	return false
}

// applyMigrations reads scripts/init.sql and executes it against the database
func applyMigrations(ctx context.Context, t *testing.T, dsn string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root := cwd
	for i := 0; i < 5; i++ {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			break
		}
		root = filepath.Dir(root)
	}
	b, err := os.ReadFile(filepath.Join(root, "scripts", "init.sql"))
	if err != nil {
		t.Fatalf("read init.sql: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect for migrations: %v", err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
}

func TestPostgresStore_WithContainer(t *testing.T) {
	if !containersAvailable() {
		t.Skip("no container runtime available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image: "postgres:15-alpine",
		Env: map[string]string{
			"POSTGRES_DB":       "modlog",
			"POSTGRES_USER":     "modlog",
			"POSTGRES_PASSWORD": "password",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	dsn := "postgres://modlog:password@" + host + ":" + port.Port() + "/modlog?sslmode=disable"
	applyMigrations(ctx, t, dsn)

	cfg := config.DatabaseConfig{
		URL:             dsn,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close(ctx)

	st := New(db)

	body := "offending comment body"
	action := models.ModAction{
		ID:             "ModAction_int1",
		CreatedUTC:     time.Now().UTC().Truncate(time.Microsecond),
		Moderator:      "int_mod",
		Subreddit:      "intsub",
		ModAction:      "removecomment",
		TargetFullname: "t1_abc",
		TargetType:     models.TargetComment,
		TargetID:       "abc",
		TargetBody:     &body,
	}

	inserted, err := st.UpsertAction(ctx, &action)
	if err != nil {
		t.Fatalf("UpsertAction: %v", err)
	}
	if !inserted {
		t.Fatal("first write should insert")
	}

	// Redelivery: one row, reported not new.
	replay := action
	inserted, err = st.UpsertAction(ctx, &replay)
	if err != nil {
		t.Fatalf("UpsertAction replay: %v", err)
	}
	if inserted {
		t.Fatal("second write should report not newly inserted")
	}

	ids, err := st.RecentIDs(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("RecentIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "ModAction_int1" {
		t.Fatalf("expected exactly one persisted id, got %v", ids)
	}
}
