package services

import (
	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/automation"
	"github.com/shopchat/shopchat-backend/internal/config"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

// Services holds all service instances
type Services struct {
	Chat        *ChatService
	Webhook     *WebhookService
	Analytics   *AnalyticsService
	Diagnostics *DiagnosticsService
	Bridge      *BridgeService

	Automation *automation.Client
	Config     *config.Config
	Logger     *logrus.Logger
}

// NewServices creates all service instances
func NewServices(
	cfg *config.Config,
	store repository.Store,
	analytics repository.AnalyticsRepository,
	client *automation.Client,
	logger *logrus.Logger,
) *Services {
	if logger == nil {
		logger = logrus.New()
	}
	if client == nil {
		client = automation.NewClient(cfg.Webhook.Timeout, logger)
	}

	chat := NewChatService(store, logger)
	webhook := NewWebhookService(client, cfg.Webhook, logger)

	return &Services{
		Chat:        chat,
		Webhook:     webhook,
		Analytics:   NewAnalyticsService(analytics, logger),
		Diagnostics: NewDiagnosticsService(client, store, cfg.Webhook.ChatURL, cfg.WebhookURLs(), webhook.HostAllowed),
		Bridge:      NewBridgeService(chat, webhook, logger),
		Automation:  client,
		Config:      cfg,
		Logger:      logger,
	}
}
