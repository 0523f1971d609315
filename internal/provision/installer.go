package provision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/presshost/presshost/internal/db"
)

// ApplicationInstaller downloads and installs the CMS into a site's working
// directory.
type ApplicationInstaller interface {
	Install(ctx context.Context, site *db.Site, siteDir string) error
}

var wpConfigTemplate = template.Must(template.New("wp-config").Parse(`<?php
define('DB_NAME', '{{.DBName}}');
define('DB_USER', '{{.DBUser}}');
define('DB_PASSWORD', '{{.DBPassword}}');
define('DB_HOST', 'localhost');
define('DB_CHARSET', 'utf8mb4');
define('DB_COLLATE', '');

$table_prefix = 'wp_';

define('WP_DEBUG', false);

if (!defined('ABSPATH')) {
    define('ABSPATH', dirname(__FILE__) . '/');
}

require_once(ABSPATH . 'wp-settings.php');
`))

// ClassicPressInstaller fetches the release archive, unpacks it, normalizes
// ownership and permissions, writes wp-config.php and runs the one-shot
// wp-cli installer.
type ClassicPressInstaller struct {
	runner      CommandRunner
	downloadURL string
	webUser     string
}

func NewClassicPressInstaller(runner CommandRunner, downloadURL, webUser string) *ClassicPressInstaller {
	return &ClassicPressInstaller{
		runner:      runner,
		downloadURL: downloadURL,
		webUser:     webUser,
	}
}

func (i *ClassicPressInstaller) Install(ctx context.Context, site *db.Site, siteDir string) error {
	archivePath := filepath.Join(siteDir, "latest.zip")
	tempDir := filepath.Join(siteDir, "temp")

	if out, err := i.runner.Run(ctx, "wget", i.downloadURL, "-O", archivePath); err != nil {
		return fmt.Errorf("download failed: %s", out)
	}

	if out, err := i.runner.Run(ctx, "unzip", "-q", archivePath, "-d", tempDir); err != nil {
		return fmt.Errorf("unpack failed: %s", out)
	}

	if err := promoteUnpacked(tempDir, siteDir); err != nil {
		return fmt.Errorf("unpack failed: %v", err)
	}
	_ = os.RemoveAll(tempDir)
	_ = os.Remove(archivePath)

	owner := i.webUser + ":" + i.webUser
	if out, err := i.runner.Run(ctx, "chown", "-R", owner, siteDir); err != nil {
		return fmt.Errorf("ownership change failed: %s", out)
	}
	if out, err := i.runner.Run(ctx, "find", siteDir, "-type", "d", "-exec", "chmod", "755", "{}", ";"); err != nil {
		return fmt.Errorf("permission change failed: %s", out)
	}
	if out, err := i.runner.Run(ctx, "find", siteDir, "-type", "f", "-exec", "chmod", "644", "{}", ";"); err != nil {
		return fmt.Errorf("permission change failed: %s", out)
	}

	if err := i.writeConfig(site, siteDir); err != nil {
		return err
	}

	// The installer reuses the generated database password as the initial
	// admin password. Compatibility carry-over from the original tooling;
	// changing it needs explicit sign-off (see DESIGN.md).
	out, err := i.runner.Run(ctx, "sudo", "-u", i.webUser, "wp", "core", "install",
		"--path="+siteDir,
		"--url=http://"+site.Domain,
		"--title="+site.Title,
		"--admin_user="+site.AdminUser,
		"--admin_password="+site.DBPassword,
		"--admin_email="+site.AdminEmail,
		"--skip-email",
	)
	if err != nil {
		return fmt.Errorf("installer failed: %s", out)
	}

	return nil
}

// promoteUnpacked moves the contents of the archive's single top-level
// directory up into the site directory.
func promoteUnpacked(tempDir, siteDir string) error {
	roots, err := os.ReadDir(tempDir)
	if err != nil {
		return err
	}

	for _, root := range roots {
		entries, err := os.ReadDir(filepath.Join(tempDir, root.Name()))
		if err != nil {
			return err
		}
		for _, entry := range entries {
			src := filepath.Join(tempDir, root.Name(), entry.Name())
			dst := filepath.Join(siteDir, entry.Name())
			if err := os.Rename(src, dst); err != nil {
				return err
			}
		}
	}

	return nil
}

func (i *ClassicPressInstaller) writeConfig(site *db.Site, siteDir string) error {
	var buf bytes.Buffer
	err := wpConfigTemplate.Execute(&buf, struct {
		DBName     string
		DBUser     string
		DBPassword string
	}{
		DBName:     site.DBName,
		DBUser:     site.DBUser,
		DBPassword: site.DBPassword,
	})
	if err != nil {
		return fmt.Errorf("render wp-config: %w", err)
	}

	configPath := filepath.Join(siteDir, "wp-config.php")
	if err := os.WriteFile(configPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write wp-config: %w", err)
	}
	return nil
}
