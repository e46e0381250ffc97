// Точка входа usersync — сервис синхронизации пользователей с Keycloak.
// Загружает конфигурацию, создаёт Keycloak клиент, подключается к RabbitMQ,
// запускает consumer CDC-сообщений, мониторинг зависимостей (topologymetrics)
// и HTTP-сервер health/metrics с graceful shutdown.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/verifix/usersync/internal/api/handlers"
	"github.com/verifix/usersync/internal/broker"
	"github.com/verifix/usersync/internal/cdc"
	"github.com/verifix/usersync/internal/config"
	"github.com/verifix/usersync/internal/keycloak"
	"github.com/verifix/usersync/internal/server"
	"github.com/verifix/usersync/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("usersync запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждение о дефолтном значении topologymetrics
	if os.Getenv("US_DEPHEALTH_GROUP") == "" {
		logger.Warn("US_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. HTTP-клиент с кастомным CA (для Keycloak)
	var httpClientCA *http.Client
	if cfg.CACertPath != "" {
		httpClientCA, err = buildHTTPClientWithCA(cfg.CACertPath)
		if err != nil {
			logger.Error("Ошибка загрузки CA-сертификата",
				slog.String("path", cfg.CACertPath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.CACertPath))
	}

	// 4. Keycloak Admin API клиент
	kcClient := keycloak.New(
		cfg.KeycloakURL,
		cfg.KeycloakRealm,
		cfg.KeycloakClientID,
		cfg.KeycloakClientSecret,
		httpClientCA, // nil — стандартный пул CA
		logger,
	)
	logger.Info("Keycloak клиент создан",
		slog.String("url", cfg.KeycloakURL),
		slog.String("realm", cfg.KeycloakRealm),
	)

	// 5. Конвейер обработки CDC-сообщений
	filter := cdc.NewFilter(cfg.TrackedColumns)
	syncSvc := service.NewUserSyncService(kcClient, logger)
	pipeline := service.NewPipeline(filter, syncSvc, logger)

	// 6. Подключение к RabbitMQ и запуск consumer'а
	rabbit, err := broker.Connect(cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("Ошибка подключения к RabbitMQ", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rabbit.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := broker.NewConsumer(rabbit, pipeline, cfg, logger)
	if err := consumer.Run(ctx); err != nil {
		logger.Error("Ошибка запуска consumer'а", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Мониторинг зависимостей (topologymetrics)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"usersync",
		cfg.DephealthGroup,
		cfg.KeycloakOIDCURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("Мониторинг зависимостей не инициализирован",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Мониторинг зависимостей не запущен",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		}
	}

	// 8. Создание и запуск HTTP-сервера (health + metrics)
	healthHandler := handlers.NewHealthHandler(kcClient, rabbit)
	srv := server.New(cfg, logger, healthHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	cancel()
	select {
	case <-consumer.Done():
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("Consumer не завершился за отведённое время")
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("usersync остановлен")
}

// buildHTTPClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func buildHTTPClientWithCA(caCertPath string) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}
