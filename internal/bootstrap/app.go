package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"gemmachat/internal/ai"
	"gemmachat/internal/app"
	"gemmachat/internal/config"
	"gemmachat/internal/employee"
	"gemmachat/internal/model"
	mysqlClient "gemmachat/internal/platform/mysql"
	rabbitmqClient "gemmachat/internal/platform/rabbitmq"
	redisClient "gemmachat/internal/platform/redis"
	"gemmachat/internal/repository"
	"gemmachat/internal/usage"
	"gemmachat/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	UserRepo       *repository.UserRepository
	SessionRepo    *repository.SessionRepository
	AuthService    *app.AuthService
	ModelClient    *ai.OllamaClient
	EmployeeClient *employee.Client
	UsagePublisher *rabbitmqClient.UsagePublisher
	UsageCounter   *usage.Counter
	UsageWorker    *worker.UsageWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	a := &App{Config: cfg, StartedAt: time.Now()}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	a.MySQL = mysqlDB
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.Session{}); err != nil {
		return nil, a.closeAfter(fmt.Errorf("auto migrate tables failed: %w", err))
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, a.closeAfter(err)
	}
	a.Redis = redisCli

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, a.closeAfter(err)
	}
	a.MQConn = mqConn

	a.UserRepo = repository.NewUserRepository(mysqlDB)
	a.SessionRepo = repository.NewSessionRepository(mysqlDB)
	a.AuthService = app.NewAuthService(
		a.UserRepo,
		a.SessionRepo,
		cfg.Auth.SessionSecret,
		time.Duration(cfg.Auth.SessionTTLHours)*time.Hour,
	)
	// explicit bootstrap step, never an import-time side effect
	if err := a.AuthService.EnsureDefaultAdmin(); err != nil {
		return nil, a.closeAfter(fmt.Errorf("ensure default admin failed: %w", err))
	}

	a.ModelClient = ai.NewOllamaClient(ai.Config{BaseURL: cfg.LLM.BaseURL, Model: cfg.LLM.Model})
	a.EmployeeClient = employee.NewClient(cfg.Employee.BaseURL)
	a.UsagePublisher = rabbitmqClient.NewUsagePublisher(mqConn, cfg.RabbitMQ.UsageQueue)
	a.UsageCounter = usage.NewCounter(redisCli)
	a.UsageWorker = worker.NewUsageWorker(mqConn, a.UsageCounter, cfg.RabbitMQ.UsageQueue)
	if err := a.UsageWorker.Start(ctx); err != nil {
		return nil, a.closeAfter(fmt.Errorf("start usage worker failed: %w", err))
	}

	return a, nil
}

// closeAfter releases whatever was already opened when New fails partway.
func (a *App) closeAfter(err error) error {
	if closeErr := a.Close(); closeErr != nil {
		return fmt.Errorf("%w (cleanup: %v)", err, closeErr)
	}
	return err
}

func (a *App) Close() error {
	var closeErr error
	if a.UsageWorker != nil {
		a.UsageWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
