package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/repositories"
	"github.com/desertthunder/eventory/internal/routes"
	"github.com/desertthunder/eventory/internal/services"
	"github.com/desertthunder/eventory/internal/shared"
	tu "github.com/desertthunder/eventory/internal/testing"
)

// writeTestConfig saves a config backed by a temporary sqlite file and returns its path.
func writeTestConfig(t *testing.T, mutate func(*shared.Config)) string {
	t.Helper()
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Database.DSN = filepath.Join(dir, "eventory.db")
	config.Login.SessionPath = filepath.Join(dir, "session.toml")
	config.Login.LogPath = filepath.Join(dir, "eventory.log")
	if mutate != nil {
		mutate(config)
	}

	path := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(path, config); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// run executes the CLI with args against a fresh runner and returns what it printed.
func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	output := &bytes.Buffer{}
	r := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: output})

	argv := append([]string{"eventory", "--config", configPath}, args...)
	err := newApp(r).Run(context.Background(), argv)
	return output.String(), err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := services.NewAPIService("http://127.0.0.1:9999", httpClient)
			youtube := services.NewYouTubeService("", 0)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
				YouTube:    youtube,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.youtube != youtube {
				t.Error("expected youtube to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.api == nil || runner.youtube == nil {
				t.Error("expected clients to be built from the config")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				HTTPClient: nil,
			})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "login", "logout", "status", "serve", "routes", "users"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestConfigure(t *testing.T) {
	t.Run("loads config file", func(t *testing.T) {
		path := writeTestConfig(t, func(c *shared.Config) {
			c.Login.APIURL = "http://127.0.0.1:4000"
		})

		r := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: io.Discard})
		if err := newApp(r).Run(context.Background(), []string{"eventory", "--config", path, "routes", "list"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if r.config.Login.APIURL != "http://127.0.0.1:4000" {
			t.Errorf("expected api_url from file, got %s", r.config.Login.APIURL)
		}
		if r.configPath != path {
			t.Errorf("expected configPath %s, got %s", path, r.configPath)
		}
	})

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := run(t, filepath.Join(t.TempDir(), "missing.toml"), "routes", "list")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("EVENTORY_API_URL", "http://127.0.0.1:5000")
		path := writeTestConfig(t, nil)

		r := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: io.Discard})
		if err := newApp(r).Run(context.Background(), []string{"eventory", "--config", path, "routes", "list"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if r.config.Login.APIURL != "http://127.0.0.1:5000" {
			t.Errorf("expected api_url from environment, got %s", r.config.Login.APIURL)
		}
	})
}

func TestRoutesCommands(t *testing.T) {
	path := writeTestConfig(t, nil)

	t.Run("list json", func(t *testing.T) {
		out, err := run(t, path, "routes", "list", "--format", "json")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var rows []map[string]any
		if err := json.Unmarshal([]byte(out), &rows); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if len(rows) != len(routes.Catalog()) {
			t.Errorf("expected %d routes, got %d", len(routes.Catalog()), len(rows))
		}
	})

	t.Run("list to file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "routes.md")
		out, err := run(t, path, "routes", "list", "--format", "md", "--output", file)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out != "" {
			t.Errorf("expected nothing on stdout, got %q", out)
		}
		if content := tu.MustReadFile(t, file); !strings.Contains(content, "# Routes") {
			t.Errorf("expected markdown file, got %q", content)
		}
	})

	t.Run("list unknown format", func(t *testing.T) {
		_, err := run(t, path, "routes", "list", "--format", "yaml")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"segment", []string{"/events/:eventId", "42"}, "/events/42"},
		{"segment ignores params", []string{"/events/:eventId/stats", "7", "--param", "mode=weekly"}, "/events/7/stats"},
		{"query", []string{"/events/form/edit?eventId", "--param", "eventId=abc"}, "/events/form/edit?eventId=abc"},
		{"extra query", []string{"/events?page", "-q", "page=2", "-q", "tag=a b"}, "/events?page=2&tag=a%20b"},
		{"repeated key", []string{"/login?redirectTo", "-q", "redirectTo=/x", "-q", "tab=1", "-q", "tab=2"}, "/login?redirectTo=%2Fx&tab=1&tab=2"},
	}

	for _, tt := range tests {
		t.Run("resolve "+tt.name, func(t *testing.T) {
			args := append([]string{"routes", "resolve"}, tt.args...)
			out, err := run(t, path, args...)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("resolve errors", func(t *testing.T) {
		cases := []struct {
			args []string
			want error
		}{
			{[]string{"routes", "resolve"}, shared.ErrMissingArgument},
			{[]string{"routes", "resolve", "/nope"}, routes.ErrUnknownTemplate},
			{[]string{"routes", "resolve", "/events/:eventId"}, routes.ErrParameterCountMismatch},
			{[]string{"routes", "resolve", "/events?page"}, routes.ErrMissingQueryParameter},
			{[]string{"routes", "resolve", "/events?page", "-q", "novalue"}, shared.ErrInvalidFlag},
		}

		for _, c := range cases {
			if _, err := run(t, path, c.args...); !errors.Is(err, c.want) {
				t.Errorf("%v: expected %v, got %v", c.args, c.want, err)
			}
		}
	})
}

func TestSetupAndUsersCommands(t *testing.T) {
	path := writeTestConfig(t, nil)

	out, err := run(t, path, "setup", "database")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "Database ready") {
		t.Errorf("expected setup confirmation, got %q", out)
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	ctx := context.Background()
	users := repositories.NewUserRepository(db)
	for _, u := range []*models.User{
		models.NewUser(&models.Identity{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"}, models.SignupForm{Role: models.RoleInfluencer}),
		models.NewUser(&models.Identity{UID: "u2", Email: "bob@example.com"}, models.SignupForm{Role: models.RoleParticipant}),
	} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}
	channel := &models.Channel{UID: "u1", ChannelID: "UC1", Title: "Ada Live"}
	if err := repositories.NewChannelRepository(db).Upsert(ctx, channel); err != nil {
		t.Fatalf("failed to seed channel: %v", err)
	}
	db.Close()

	t.Run("users list", func(t *testing.T) {
		out, err := run(t, path, "users", "list", "--format", "csv")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "u1,Ada,ada@example.com,influencer") || !strings.Contains(out, "u2,,bob@example.com,participant") {
			t.Errorf("expected both users, got %q", out)
		}
	})

	t.Run("users list by role", func(t *testing.T) {
		out, err := run(t, path, "users", "list", "--role", "participant")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "Users: 1") || strings.Contains(out, "u1") {
			t.Errorf("expected only u2, got %q", out)
		}
	})

	t.Run("users list invalid role", func(t *testing.T) {
		if _, err := run(t, path, "users", "list", "--role", "admin"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("users show", func(t *testing.T) {
		out, err := run(t, path, "users", "show", "u1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "YouTube: Ada Live") {
			t.Errorf("expected linked channel, got %q", out)
		}

		out, err = run(t, path, "users", "show", "u2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "YouTube: not linked") {
			t.Errorf("expected unlinked channel, got %q", out)
		}
	})

	t.Run("users show missing", func(t *testing.T) {
		if _, err := run(t, path, "users", "show", "nobody"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
		if _, err := run(t, path, "users", "show"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("setup rollback", func(t *testing.T) {
		out, err := run(t, path, "setup", "rollback")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "Rolled back") {
			t.Errorf("expected rollback confirmation, got %q", out)
		}
	})
}

func TestSetupConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	r := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: io.Discard, ConfigPath: path})
	if err := r.SetupConfig(context.Background(), nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	tu.AssertFileExists(t, path)

	if err := r.SetupConfig(context.Background(), nil); err == nil {
		t.Error("expected error when the config file exists")
	}
}

func TestSessionCommands(t *testing.T) {
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	var deleted bool
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(services.SessionCookie)
		if err != nil || c.Value != "tok" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"not authenticated"}`))
			return
		}

		switch r.Method {
		case http.MethodDelete:
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			tu.JSONHandler(t, http.StatusOK, models.Ok(models.Session{UID: "u1", Email: "ada@example.com", ExpiresAt: expires}))(w, r)
		}
	}))
	defer gateway.Close()

	path := writeTestConfig(t, func(c *shared.Config) {
		c.Login.APIURL = gateway.URL
	})
	config, err := shared.LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	file := services.SessionFile{Path: config.Login.SessionPath}

	t.Run("status when signed out", func(t *testing.T) {
		if _, err := run(t, path, "status"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("logout when signed out", func(t *testing.T) {
		out, err := run(t, path, "logout")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "Not signed in") {
			t.Errorf("expected not signed in message, got %q", out)
		}
	})

	if err := file.Save(services.StoredSession{Token: "tok", UID: "u1", Email: "ada@example.com", Role: "influencer"}); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	t.Run("status", func(t *testing.T) {
		out, err := run(t, path, "status")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "Email:    ada@example.com") || !strings.Contains(out, "active until") {
			t.Errorf("unexpected status output %q", out)
		}
	})

	t.Run("status json", func(t *testing.T) {
		out, err := run(t, path, "status", "--json")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var status map[string]any
		if err := json.Unmarshal([]byte(out), &status); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if status["active"] != true || status["role"] != "influencer" {
			t.Errorf("unexpected status %v", status)
		}
	})

	t.Run("status with rejected token", func(t *testing.T) {
		other := writeTestConfig(t, func(c *shared.Config) {
			c.Login.APIURL = gateway.URL
		})
		otherConfig, _ := shared.LoadConfig(other)
		stale := services.SessionFile{Path: otherConfig.Login.SessionPath}
		if err := stale.Save(services.StoredSession{Token: "stale", UID: "u1"}); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		out, err := run(t, other, "status")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out, "expired") {
			t.Errorf("expected expired session, got %q", out)
		}
	})

	t.Run("logout", func(t *testing.T) {
		out, err := run(t, path, "logout")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !deleted {
			t.Error("expected gateway session to be deleted")
		}
		if !strings.Contains(out, "Signed out ada@example.com") {
			t.Errorf("unexpected logout output %q", out)
		}
		if _, err := file.Load(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected session file to be cleared, got %v", err)
		}
	})
}

func TestCommandValidation(t *testing.T) {
	t.Run("login requires google credentials", func(t *testing.T) {
		path := writeTestConfig(t, func(c *shared.Config) {
			c.Credentials.Google.ClientID = ""
		})
		if _, err := run(t, path, "login"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("serve requires a session secret", func(t *testing.T) {
		path := writeTestConfig(t, func(c *shared.Config) {
			c.Server.SessionSecret = ""
		})
		if _, err := run(t, path, "serve"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("serve requires a google client id", func(t *testing.T) {
		path := writeTestConfig(t, func(c *shared.Config) {
			c.Credentials.Google.ClientID = ""
		})
		if _, err := run(t, path, "serve"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("serve rejects an invalid port", func(t *testing.T) {
		path := writeTestConfig(t, nil)
		if _, err := run(t, path, "serve", "--port", "70000"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"a=1", "b=x=y", "a=2", "a=3"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	list, ok := params["a"].([]string)
	if !ok || len(list) != 3 || list[2] != "3" {
		t.Errorf("expected a=[1 2 3], got %v", params["a"])
	}
	if params["b"] != "x=y" {
		t.Errorf("expected b=x=y, got %v", params["b"])
	}

	if _, err := parseParams([]string{"=v"}); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
}
