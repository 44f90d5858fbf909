package provider

import (
	"github.com/eoshub-next/internal/cache"
	"github.com/eoshub-next/internal/config"
	"github.com/eoshub-next/internal/eos"
	"github.com/eoshub-next/internal/logger"
	"github.com/eoshub-next/internal/models"
	"github.com/eoshub-next/internal/queue"
	"github.com/eoshub-next/internal/repository"
	"github.com/eoshub-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	EOSClient   *eos.Client

	// Repositories
	OrderRepo         repository.OrderRepository
	PaymentResultRepo repository.PaymentResultRepository
	ProductRepo       repository.ProductRepository

	// Services
	OrderService     *service.OrderService
	PaymentService   *service.PaymentService
	ProvisionService *service.ProvisionService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		EOSClient:   eos.NewClient(cfg.EOS.WalletHost, cfg.EOS.AccountPath, cfg.EOS.Timeout()),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentResultRepo = repository.NewPaymentResultRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
}

func (c *Container) initServices() {
	c.OrderService = service.NewOrderService(c.OrderRepo, c.ProductRepo, c.EOSClient, &c.Config.Payletter)
	c.PaymentService = service.NewPaymentService(models.DB, c.OrderRepo, c.PaymentResultRepo, c.QueueClient, &c.Config.Payletter)
	c.ProvisionService = service.NewProvisionService(c.OrderRepo, c.ProductRepo, c.EOSClient)
}
