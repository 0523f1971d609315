package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/presshost/presshost/internal/db"
	"go.uber.org/zap"
)

// SiteStore is the slice of the registry the provisioner mutates. Each status
// change is its own committed write; there is no transaction spanning a run.
type SiteStore interface {
	TransitionSite(ctx context.Context, id int64, from, to db.SiteStatus) error
	MarkSiteFailed(ctx context.Context, id int64, errorLog string) error
	AppendInstallLog(ctx context.Context, id int64, entry string) error
}

// Provisioner executes the ordered steps that turn a pending site into a
// running installation. It is queue-agnostic: callers hand it a freshly
// loaded Site and get back a success flag, with all error detail folded into
// the persisted error log.
type Provisioner struct {
	store      SiteStore
	databases  DatabaseProvisioner
	webserver  WebServerConfigurer
	installer  ApplicationInstaller
	installDir string
	logger     *zap.Logger
}

type Options struct {
	InstallDir     string
	NginxConfigDir string
	PHPFPMSocket   string
	DownloadURL    string
	WebUser        string
}

func New(store SiteStore, opts Options, logger *zap.Logger) *Provisioner {
	runner := NewExecRunner()
	return &Provisioner{
		store:      store,
		databases:  NewMySQLProvisioner(runner),
		webserver:  NewNginxConfigurer(runner, opts.NginxConfigDir, opts.PHPFPMSocket),
		installer:  NewClassicPressInstaller(runner, opts.DownloadURL, opts.WebUser),
		installDir: opts.InstallDir,
		logger:     logger,
	}
}

// Run provisions one site. The installing transition is committed before any
// side-effecting step; any step error marks the site failed with the error
// text stored verbatim. Steps are not retried and nothing is rolled back.
func (p *Provisioner) Run(ctx context.Context, site *db.Site) bool {
	if err := p.store.TransitionSite(ctx, site.ID, db.StatusPending, db.StatusInstalling); err != nil {
		p.logger.Error("Failed to start provisioning",
			zap.Int64("site_id", site.ID),
			zap.String("domain", site.Domain),
			zap.Error(err),
		)
		return false
	}
	site.Status = db.StatusInstalling

	if err := p.provision(ctx, site); err != nil {
		p.logger.Error("Provisioning failed",
			zap.Int64("site_id", site.ID),
			zap.String("domain", site.Domain),
			zap.Error(err),
		)
		if markErr := p.store.MarkSiteFailed(ctx, site.ID, err.Error()); markErr != nil {
			p.logger.Error("Failed to mark site failed",
				zap.Int64("site_id", site.ID),
				zap.Error(markErr),
			)
		}
		site.Status = db.StatusFailed
		return false
	}

	if err := p.store.TransitionSite(ctx, site.ID, db.StatusInstalling, db.StatusActive); err != nil {
		p.logger.Error("Failed to activate site",
			zap.Int64("site_id", site.ID),
			zap.Error(err),
		)
		return false
	}
	site.Status = db.StatusActive

	p.logger.Info("Site provisioned",
		zap.Int64("site_id", site.ID),
		zap.String("domain", site.Domain),
	)
	return true
}

func (p *Provisioner) provision(ctx context.Context, site *db.Site) error {
	siteDir := filepath.Join(p.installDir, site.Domain)
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return fmt.Errorf("create site directory: %v", err)
	}
	p.logStep(ctx, site.ID, "created site directory "+siteDir)

	if err := p.databases.Provision(ctx, site); err != nil {
		return err
	}
	p.logStep(ctx, site.ID, "database "+site.DBName+" provisioned")

	if err := p.webserver.Configure(ctx, site, siteDir); err != nil {
		return err
	}
	p.logStep(ctx, site.ID, "nginx vhost configured for "+site.Domain)

	if err := p.installer.Install(ctx, site, siteDir); err != nil {
		return err
	}
	p.logStep(ctx, site.ID, "application installed")

	return nil
}

func (p *Provisioner) logStep(ctx context.Context, siteID int64, entry string) {
	if err := p.store.AppendInstallLog(ctx, siteID, entry+"\n"); err != nil {
		p.logger.Warn("Failed to append install log",
			zap.Int64("site_id", siteID),
			zap.Error(err),
		)
	}
}
