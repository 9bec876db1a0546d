package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/config"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/handler"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/mail"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/service"
	jwtpkg "github.com/pesio-ai/be-plt-taskhub-identity/pkg/jwt"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/otp"
)

const serviceName = "taskhub-identity"

func main() {
	dotenv := config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: serviceName,
		Format:      cfg.Log.Format,
	})
	if dotenv != "" {
		log.Info().Str("file", dotenv).Msg("Loaded environment file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer st.close()

	// Initialize JWT manager
	secret := cfg.JWT.Secret
	if len(secret) < jwtpkg.MinSecretLength && cfg.IsDevelopment() {
		log.Warn().Msg("JWT_SECRET_KEY missing or short, generating a secret (development mode)")
		if secret, err = jwtpkg.GenerateSecret(); err != nil {
			log.Fatal().Err(err).Msg("Failed to generate JWT secret")
		}
	}
	jwtManager, err := jwtpkg.NewManager(secret, cfg.JWT.ExpiresIn, cfg.JWT.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create JWT manager")
	}

	transport, closeTransport, err := newMailTransport(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize mail transport")
	}
	defer closeTransport()
	mailer := mail.NewMailer(transport, cfg.Mail.FromName, log.Component("mail"))

	// Initialize services
	registrationService := service.NewRegistrationService(st.users, st.registrations, st.audit, mailer, otp.NewGenerator(), log.Component("registration"))
	authService := service.NewAuthService(st.users, st.audit, jwtManager, log.Component("auth"))
	credentialService := service.NewCredentialService(st.users, st.audit, log.Component("credentials"))
	userService := service.NewUserService(st.users, st.companies, log.Component("users"))

	// Setup HTTP server
	httpHandler := handler.NewHTTPHandler(registrationService, authService, credentialService, userService, log)
	router := handler.NewRouter(httpHandler, jwtManager, handler.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
	}, log.Component("http"))
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup gRPC server
	grpcHandler := handler.NewGRPCHandler(authService, userService, log)
	grpcServer, healthServer := handler.NewGRPCServer(grpcHandler, jwtManager, log.Component("grpc"))

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.GRPCPort).Msg("Failed to create gRPC listener")
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("port", cfg.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		log.Info().
			Str("port", cfg.HTTPPort).
			Strs("cors_origins", cfg.CORSOrigins).
			Str("mail_transport", cfg.Mail.Transport).
			Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Shutting down gracefully...")
	healthServer.SetServingStatus(handler.IdentityServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	grpcServer.GracefulStop()

	log.Info().Msg("Server stopped")
}

type stores struct {
	users         service.UserStore
	registrations service.RegistrationStore
	companies     service.CompanyStore
	audit         service.AuditLog
	close         func()
}

// openStores connects to Postgres, or falls back to process memory in
// development when no DATABASE_URL is configured
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store (development mode)")
		mem := repository.NewMemoryStore()
		return &stores{users: mem, registrations: mem, companies: mem, audit: mem, close: func() {}}, nil
	}

	log.Info().Msg("Connecting to database")
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if err := repository.Migrate(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, err
	}

	repoLog := log.Component("repository")
	return &stores{
		users:         repository.NewUserRepository(dbPool, repoLog),
		registrations: repository.NewRegistrationRepository(dbPool, repoLog),
		companies:     repository.NewCompanyRepository(dbPool, repoLog),
		audit:         repository.NewAuditRepository(dbPool, repoLog),
		close:         dbPool.Close,
	}, nil
}

func newMailTransport(cfg *config.Config, log *logger.Logger) (mail.Transport, func(), error) {
	switch cfg.Mail.Transport {
	case config.MailTransportSMTP:
		t, err := mail.NewSMTPTransport(mail.SMTPConfig{
			Host:        cfg.Mail.SMTP.Host,
			Port:        cfg.Mail.SMTP.Port,
			Username:    cfg.Mail.SMTP.User,
			Password:    cfg.Mail.SMTP.Pass,
			Secure:      cfg.Mail.SMTP.Secure,
			FromName:    cfg.Mail.FromName,
			FromAddress: cfg.Mail.FromAddress,
		})
		if err != nil {
			return nil, nil, err
		}
		return t, func() {}, nil
	case config.MailTransportAMQP:
		t, err := mail.NewAMQPTransport(cfg.Mail.AMQP.URL, cfg.Mail.AMQP.Exchange, cfg.Mail.AMQP.Queue, cfg.Mail.AMQP.RoutingKey)
		if err != nil {
			return nil, nil, err
		}
		return t, func() {
			if err := t.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close mail transport")
			}
		}, nil
	default:
		return mail.NewLogTransport(log.Component("mail")), func() {}, nil
	}
}
