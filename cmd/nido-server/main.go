package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nidohq/nido/internal/config"
	"github.com/nidohq/nido/internal/domain/family"
	"github.com/nidohq/nido/internal/domain/medication"
	"github.com/nidohq/nido/internal/platform/auth"
	"github.com/nidohq/nido/internal/platform/db"
	"github.com/nidohq/nido/internal/platform/middleware"
	"github.com/nidohq/nido/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nido-server",
		Short: "Family medication scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(familyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			return nil
		},
	})

	return cmd
}

func familyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "family",
		Short: "Manage family groups",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new family group",
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, _ := cmd.Flags().GetString("slug")
			name, _ := cmd.Flags().GetString("name")
			if slug == "" {
				return fmt.Errorf("--slug is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := family.NewService(family.NewGroupRepoPG(pool), family.NewMemberRepoPG(pool))
			g := &family.Group{Slug: slug, Name: name}
			if err := svc.CreateGroup(ctx, "", "", g); err != nil {
				return err
			}
			fmt.Printf("Family group %q created.\n", g.Slug)
			return nil
		},
	}
	createCmd.Flags().String("slug", "", "Family group identifier (alphanumeric, - and _)")
	createCmd.Flags().String("name", "", "Display name")

	cmd.AddCommand(createCmd)
	return cmd
}

// memberContactResolver resolves reminder recipient ids to member
// contact addresses.
type memberContactResolver struct {
	members family.MemberRepository
}

func (r *memberContactResolver) Resolve(ctx context.Context, familyGroup string, memberIDs []uuid.UUID) ([]notification.Contact, error) {
	var contacts []notification.Contact
	if len(memberIDs) == 0 {
		// No explicit recipients: notify every member of the group.
		members, _, err := r.members.ListByFamily(ctx, familyGroup, 100, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			contacts = append(contacts, notification.Contact{
				MemberID:    m.ID,
				DisplayName: m.DisplayName,
				Email:       m.Email,
				Phone:       m.Phone,
			})
		}
		return contacts, nil
	}

	for _, id := range memberIDs {
		m, err := r.members.GetByID(ctx, familyGroup, id)
		if err != nil {
			continue
		}
		contacts = append(contacts, notification.Contact{
			MemberID:    m.ID,
			DisplayName: m.DisplayName,
			Email:       m.Email,
			Phone:       m.Phone,
		})
	}
	return contacts, nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Family-Group"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// Family group scoping
	e.Use(db.FamilyMiddleware(cfg.DefaultFamily))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Repositories
	occurrenceRepo := medication.NewOccurrenceRepoPG(pool)
	stockRepo := medication.NewStockRepoPG(pool)
	groupRepo := family.NewGroupRepoPG(pool)
	memberRepo := family.NewMemberRepoPG(pool)

	// Services and handlers
	runTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	medSvc := medication.NewService(occurrenceRepo, stockRepo, runTx, cfg.SeriesMaxOccurrences, cfg.DefaultLeadHours)
	medication.NewHandler(medSvc).RegisterRoutes(apiV1)

	famSvc := family.NewService(groupRepo, memberRepo)
	family.NewHandler(famSvc).RegisterRoutes(apiV1)

	// Reminder dispatch. Senders are mocks until real SMTP/SMS
	// providers are configured.
	dispatcher := notification.NewDispatcher(
		&notification.MockEmailSender{},
		&notification.MockSMSSender{},
		notification.NewTemplateEngine(),
		&memberContactResolver{members: memberRepo},
	)
	notification.NewHandler(dispatcher).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
