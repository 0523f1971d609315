package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/presshost/presshost/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	calls [][]string
	onRun func(name string, args []string)
	fail  func(name string, args []string) (string, error)
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.onRun != nil {
		r.onRun(name, args)
	}
	if r.fail != nil {
		if out, err := r.fail(name, args); err != nil {
			return out, err
		}
	}
	return "", nil
}

func (r *fakeRunner) ran(parts ...string) bool {
	for _, call := range r.calls {
		if strings.Contains(strings.Join(call, " "), strings.Join(parts, " ")) {
			return true
		}
	}
	return false
}

type fakeStore struct {
	transitions []string
	installLog  string
	failed      bool
	failLog     string
}

func (s *fakeStore) TransitionSite(_ context.Context, _ int64, from, to db.SiteStatus) error {
	s.transitions = append(s.transitions, string(from)+"->"+string(to))
	return nil
}

func (s *fakeStore) MarkSiteFailed(_ context.Context, _ int64, errorLog string) error {
	s.failed = true
	s.failLog = errorLog
	return nil
}

func (s *fakeStore) AppendInstallLog(_ context.Context, _ int64, entry string) error {
	s.installLog += entry
	return nil
}

func testSite() *db.Site {
	return &db.Site{
		ID:         1,
		UserID:     1,
		Domain:     "foo.example.com",
		Title:      "Foo Site",
		AdminEmail: "admin@foo.example.com",
		AdminUser:  "admin",
		DBName:     "cp_foo_example_com",
		DBUser:     "cp_foo_example_com",
		DBPassword: "s3cretpw",
		Status:     db.StatusPending,
	}
}

func newTestProvisioner(t *testing.T, store *fakeStore, runner *fakeRunner) (*Provisioner, string, string) {
	t.Helper()

	root := t.TempDir()
	installDir := filepath.Join(root, "www")
	nginxDir := filepath.Join(root, "nginx")
	require.NoError(t, os.MkdirAll(filepath.Join(nginxDir, "sites-available"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(nginxDir, "sites-enabled"), 0o755))

	// unzip runs against the fake, so materialize what it would have
	// produced: a single top-level directory inside the temp dir.
	runner.onRun = func(name string, args []string) {
		if name != "unzip" {
			return
		}
		unpacked := filepath.Join(args[3], "classicpress")
		if err := os.MkdirAll(unpacked, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(unpacked, "index.php"), []byte("<?php\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p := &Provisioner{
		store:      store,
		databases:  NewMySQLProvisioner(runner),
		webserver:  NewNginxConfigurer(runner, nginxDir, "unix:/run/php/php8.1-fpm.sock"),
		installer:  NewClassicPressInstaller(runner, "https://www.classicpress.net/latest.zip", "www-data"),
		installDir: installDir,
		logger:     zap.NewNop(),
	}
	return p, installDir, nginxDir
}

func TestRunSuccess(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{}
	p, installDir, nginxDir := newTestProvisioner(t, store, runner)
	site := testSite()

	ok := p.Run(context.Background(), site)

	require.True(t, ok)
	assert.Equal(t, []string{"pending->installing", "installing->active"}, store.transitions)
	assert.Equal(t, db.StatusActive, site.Status)
	assert.False(t, store.failed)

	// Database commands
	assert.True(t, runner.ran("mysql", "-e", "CREATE DATABASE IF NOT EXISTS cp_foo_example_com;"))
	assert.True(t, runner.ran("GRANT ALL PRIVILEGES ON cp_foo_example_com.*"))
	assert.True(t, runner.ran("FLUSH PRIVILEGES;"))

	// Web server commands and vhost content
	assert.True(t, runner.ran("nginx", "-t"))
	assert.True(t, runner.ran("systemctl", "reload", "nginx"))

	vhost, err := os.ReadFile(filepath.Join(nginxDir, "sites-available", "foo.example.com.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(vhost), "server_name foo.example.com www.foo.example.com;")
	assert.Contains(t, string(vhost), "fastcgi_pass unix:/run/php/php8.1-fpm.sock;")
	assert.Contains(t, string(vhost), "deny all;")

	link, err := os.Readlink(filepath.Join(nginxDir, "sites-enabled", "foo.example.com.conf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nginxDir, "sites-available", "foo.example.com.conf"), link)

	// Application files
	siteDir := filepath.Join(installDir, "foo.example.com")
	assert.FileExists(t, filepath.Join(siteDir, "index.php"))
	assert.NoDirExists(t, filepath.Join(siteDir, "temp"))

	wpConfig, err := os.ReadFile(filepath.Join(siteDir, "wp-config.php"))
	require.NoError(t, err)
	assert.Contains(t, string(wpConfig), "define('DB_NAME', 'cp_foo_example_com');")
	assert.Contains(t, string(wpConfig), "define('DB_PASSWORD', 's3cretpw');")

	// Installer reuses the generated database password as admin password
	assert.True(t, runner.ran("wp", "core", "install"))
	assert.True(t, runner.ran("--admin_password=s3cretpw"))
	assert.True(t, runner.ran("--url=http://foo.example.com"))

	assert.Contains(t, store.installLog, "database cp_foo_example_com provisioned")
	assert.Contains(t, store.installLog, "application installed")
}

func TestRunDatabaseStepFails(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{
		fail: func(name string, _ []string) (string, error) {
			if name == "mysql" {
				return "Database error", errors.New("exit status 1")
			}
			return "", nil
		},
	}
	p, _, _ := newTestProvisioner(t, store, runner)
	site := testSite()

	ok := p.Run(context.Background(), site)

	require.False(t, ok)
	assert.Equal(t, []string{"pending->installing"}, store.transitions)
	assert.Equal(t, db.StatusFailed, site.Status)
	assert.True(t, store.failed)
	assert.Contains(t, store.failLog, "Database error")

	// Later steps never ran
	assert.False(t, runner.ran("nginx", "-t"))
	assert.False(t, runner.ran("wp", "core", "install"))
}

func TestRunNginxValidationFails(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{
		fail: func(name string, args []string) (string, error) {
			if name == "nginx" && len(args) > 0 && args[0] == "-t" {
				return "nginx: configuration file /etc/nginx/nginx.conf test failed", errors.New("exit status 1")
			}
			return "", nil
		},
	}
	p, _, _ := newTestProvisioner(t, store, runner)
	site := testSite()

	ok := p.Run(context.Background(), site)

	require.False(t, ok)
	assert.True(t, store.failed)
	assert.Contains(t, store.failLog, "nginx config test failed")
	assert.Contains(t, store.failLog, "test failed")
	assert.False(t, runner.ran("wp", "core", "install"))
}

func TestRunInstallerFails(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{
		fail: func(name string, _ []string) (string, error) {
			if name == "sudo" {
				return "Error: Database connection failed", errors.New("exit status 1")
			}
			return "", nil
		},
	}
	p, _, _ := newTestProvisioner(t, store, runner)
	site := testSite()

	ok := p.Run(context.Background(), site)

	require.False(t, ok)
	assert.True(t, store.failed)
	assert.Contains(t, store.failLog, "installer failed")
	assert.Equal(t, []string{"pending->installing"}, store.transitions)
}
