package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codefionn/bookshelf/internal/catalog/catalogtest"
	"github.com/codefionn/bookshelf/internal/command"
	"github.com/codefionn/bookshelf/internal/config"
	"github.com/codefionn/bookshelf/internal/persist"
	"github.com/codefionn/bookshelf/internal/socketclient"
	"github.com/codefionn/bookshelf/internal/socketserver"
	"github.com/codefionn/bookshelf/internal/store"
)

func startServer(t *testing.T) *socketserver.Server {
	t.Helper()
	srv := socketserver.NewServer(socketserver.Options{Addr: "127.0.0.1:0"},
		command.NewDispatcher(store.New(), catalogtest.New()), nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		srv.Stop()
		srv.Wait()
	})
	return srv
}

func TestReplSendsLinesAndSkipsBlanks(t *testing.T) {
	srv := startServer(t)
	client := socketclient.NewClient(srv.Addr().String())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	in := strings.NewReader("register alice pw\n\n   \nlogout\n")
	var out bytes.Buffer
	if err := repl(context.Background(), client, in, &out, false); err != nil {
		t.Fatalf("repl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 output lines, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "Registered new user with the ID ") {
		t.Errorf("unexpected register reply %q", lines[0])
	}
	if lines[2] != "Logged out" {
		t.Errorf("unexpected logout reply %q", lines[2])
	}
}

func TestReplStopsAfterKill(t *testing.T) {
	srv := startServer(t)
	client := socketclient.NewClient(srv.Addr().String())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	in := strings.NewReader("killcommand\nhelp\n")
	var out bytes.Buffer
	if err := repl(context.Background(), client, in, &out, false); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "Server shutting down" {
		t.Errorf("output = %q", got)
	}

	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestOpenArtifacts(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		backend string
		want    string
	}{
		{"json", config.BackendJSON, "*persist.FileArtifact"},
		{"sqlite", config.BackendSQLite, "*persist.SQLiteArtifact"},
		{"s3", config.BackendS3, "*persist.S3Artifact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Storage.Backend = tt.backend
			cfg.Storage.DataDir = filepath.Join(dir, tt.name)
			cfg.Storage.S3.Bucket = "shelf"
			cfg.Storage.S3.Region = "us-east-1"

			users, lists, closeFn, err := openArtifacts(cfg)
			if err != nil {
				t.Fatalf("openArtifacts: %v", err)
			}
			defer closeFn()

			for _, a := range []persist.Artifact{users, lists} {
				if got := typeName(a); got != tt.want {
					t.Errorf("artifact type = %s, want %s", got, tt.want)
				}
			}
			if users.Name() == lists.Name() {
				t.Errorf("users and lists share the name %q", users.Name())
			}
		})
	}
}

func typeName(a persist.Artifact) string {
	switch a.(type) {
	case *persist.FileArtifact:
		return "*persist.FileArtifact"
	case *persist.SQLiteArtifact:
		return "*persist.SQLiteArtifact"
	case *persist.S3Artifact:
		return "*persist.S3Artifact"
	default:
		return "unknown"
	}
}
