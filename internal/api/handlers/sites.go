package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/presshost/presshost/internal/config"
	"github.com/presshost/presshost/internal/db"
	"github.com/presshost/presshost/internal/metrics"
	"github.com/presshost/presshost/internal/provision"
	"github.com/presshost/presshost/internal/queue"
	"go.uber.org/zap"
)

// Dispatcher is the queue side the API pushes to.
type Dispatcher interface {
	Push(ctx context.Context, job *queue.Job) error
}

type SiteHandler struct {
	repo    *db.Repository
	queue   Dispatcher
	metrics *metrics.Collector
	cfg     *config.Config
	logger  *zap.Logger
}

func NewSiteHandler(repo *db.Repository, q Dispatcher, m *metrics.Collector, cfg *config.Config, logger *zap.Logger) *SiteHandler {
	return &SiteHandler{
		repo:    repo,
		queue:   q,
		metrics: m,
		cfg:     cfg,
		logger:  logger,
	}
}

type CreateSiteRequest struct {
	Domain     string `json:"domain" binding:"required,fqdn"`
	Title      string `json:"title" binding:"required,min=1,max=255"`
	AdminEmail string `json:"admin_email" binding:"required,email"`
	AdminUser  string `json:"admin_user" binding:"required,min=1,max=60"`
}

func (h *SiteHandler) CreateSite(c *gin.Context) {
	var req CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("user_id")

	creds, err := provision.NewCredentials(req.Domain)
	if err != nil {
		h.logger.Error("Failed to generate credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	site := &db.Site{
		UserID:     userID,
		Domain:     req.Domain,
		Title:      req.Title,
		AdminEmail: req.AdminEmail,
		AdminUser:  req.AdminUser,
		DBName:     creds.Name,
		DBUser:     creds.User,
		DBPassword: creds.Password,
	}

	if err := h.repo.CreateSite(c.Request.Context(), site, h.cfg.Provision.MaxSitesPerUser); err != nil {
		switch {
		case errors.Is(err, db.ErrSiteLimitReached):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Maximum number of sites reached"})
		case errors.Is(err, db.ErrDomainTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Domain already exists"})
		default:
			h.logger.Error("Failed to create site", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create site"})
		}
		return
	}

	// Queue provisioning
	job := &queue.Job{
		ID:        uuid.New().String(),
		Operation: queue.OpCreate,
		SiteID:    site.ID,
		CreatedAt: time.Now(),
	}

	if err := h.queue.Push(c.Request.Context(), job); err != nil {
		// The record exists either way; the caller polls status.
		h.metrics.RecordQueuePushFailure()
		h.logger.Error("Failed to dispatch provisioning job",
			zap.Int64("site_id", site.ID),
			zap.Error(err),
		)
	}

	h.logger.Info("Site created",
		zap.Int64("site_id", site.ID),
		zap.String("domain", site.Domain),
		zap.Int64("user_id", userID),
	)

	c.JSON(http.StatusCreated, site)
}

func (h *SiteHandler) ListSites(c *gin.Context) {
	userID := c.GetInt64("user_id")

	sites, err := h.repo.ListSitesByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list sites", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, sites)
}

func (h *SiteHandler) GetSite(c *gin.Context) {
	userID := c.GetInt64("user_id")

	siteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
		return
	}

	site, err := h.repo.GetUserSite(c.Request.Context(), siteID, userID)
	if err != nil {
		if errors.Is(err, db.ErrSiteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
			return
		}
		h.logger.Error("Failed to get site", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, site)
}

func (h *SiteHandler) DeleteSite(c *gin.Context) {
	userID := c.GetInt64("user_id")

	siteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
		return
	}

	site, err := h.repo.GetUserSite(c.Request.Context(), siteID, userID)
	if err != nil {
		if errors.Is(err, db.ErrSiteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
			return
		}
		h.logger.Error("Failed to get site", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	job := &queue.Job{
		ID:        uuid.New().String(),
		Operation: queue.OpDelete,
		SiteID:    site.ID,
		CreatedAt: time.Now(),
	}

	if err := h.queue.Push(c.Request.Context(), job); err != nil {
		h.metrics.RecordQueuePushFailure()
		h.logger.Error("Failed to dispatch deletion job",
			zap.Int64("site_id", site.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule deletion"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Site deletion started"})
}
