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

// WebServerConfigurer publishes a virtual host for a site's domain.
type WebServerConfigurer interface {
	Configure(ctx context.Context, site *db.Site, siteDir string) error
}

var vhostTemplate = template.Must(template.New("vhost").Parse(`server {
    listen 80;
    listen [::]:80;
    server_name {{.Domain}} www.{{.Domain}};
    root {{.SiteDir}};

    index index.php index.html index.htm;

    location / {
        try_files $uri $uri/ /index.php?$args;
    }

    location ~ \.php$ {
        include snippets/fastcgi-php.conf;
        fastcgi_pass {{.PHPFPMSocket}};
        fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
        include fastcgi_params;
    }

    location ~ /\.ht {
        deny all;
    }
}
`))

// NginxConfigurer writes the vhost into sites-available, links it into
// sites-enabled, validates the configuration and reloads nginx.
type NginxConfigurer struct {
	runner       CommandRunner
	configDir    string
	phpFPMSocket string
}

func NewNginxConfigurer(runner CommandRunner, configDir, phpFPMSocket string) *NginxConfigurer {
	return &NginxConfigurer{
		runner:       runner,
		configDir:    configDir,
		phpFPMSocket: phpFPMSocket,
	}
}

func (n *NginxConfigurer) Configure(ctx context.Context, site *db.Site, siteDir string) error {
	var buf bytes.Buffer
	err := vhostTemplate.Execute(&buf, struct {
		Domain       string
		SiteDir      string
		PHPFPMSocket string
	}{
		Domain:       site.Domain,
		SiteDir:      siteDir,
		PHPFPMSocket: n.phpFPMSocket,
	})
	if err != nil {
		return fmt.Errorf("render nginx config: %w", err)
	}

	availablePath := filepath.Join(n.configDir, "sites-available", site.Domain+".conf")
	if err := os.WriteFile(availablePath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write nginx config: %w", err)
	}

	enabledPath := filepath.Join(n.configDir, "sites-enabled", site.Domain+".conf")
	_ = os.Remove(enabledPath)
	if err := os.Symlink(availablePath, enabledPath); err != nil {
		return fmt.Errorf("enable nginx config: %w", err)
	}

	if out, err := n.runner.Run(ctx, "nginx", "-t"); err != nil {
		return fmt.Errorf("nginx config test failed: %s", out)
	}

	if out, err := n.runner.Run(ctx, "systemctl", "reload", "nginx"); err != nil {
		return fmt.Errorf("nginx reload failed: %s", out)
	}

	return nil
}
