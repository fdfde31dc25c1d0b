package main

import (
	"context"
	"fmt"
	"log"

	_ "twol-crm/docs" // Import swagger docs
	"twol-crm/internal/cache"
	common_api "twol-crm/internal/common/api"
	"twol-crm/internal/config"
	"twol-crm/internal/database"
	"twol-crm/internal/features/audit"
	"twol-crm/internal/features/organization"
	"twol-crm/internal/features/permissionset"
	"twol-crm/internal/features/seat"
	"twol-crm/internal/features/system"
	"twol-crm/internal/logger"
	"twol-crm/internal/middleware"
	"twol-crm/pkg/apierror"
	"twol-crm/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return apierror.JSON(c, err)
		},
	})

	app.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	app.Use(middleware.RequestLogger(logger))

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, logger *zap.Logger) {
	logger.Info("registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		logger.Debug("setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				logger.Info("http server listening", zap.String("addr", port))
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

// ConfigureAuth installs the token signing secret.
func ConfigureAuth(cfg *config.Config, logger *zap.Logger) {
	if cfg.SkipAuth {
		logger.Warn("authentication is disabled, tenant comes from the " + middleware.DevTenantHeader + " header")
	}
	utils.SetSecret(cfg.JWTSecret)
}

func options() fx.Option {
	return fx.Options(
		fx.Provide(
			config.LoadConfig,

			database.NewDatabase,
			database.NewPostgres,

			logger.NewLogger,

			NewFiberServer,

			cache.NewClient,

			audit.NewAuditRepository,
			permissionset.NewPermissionSetRepository,
			seat.NewSeatRepository,
			organization.NewOrganizationRepository,

			seat.NewEffectiveCache,
			system.NewHub,

			audit.NewAuditService,
			permissionset.NewPermissionSetService,
			seat.NewSeatService,
			organization.NewOrganizationService,
			permissionset.NewJanitor,

			func(r seat.SeatRepository) permissionset.SeatStore { return r },
			func(p *database.Postgres) permissionset.Transactor { return p },
			func(h *system.Hub) permissionset.EventPublisher { return h },
			func(c *seat.EffectiveCache) permissionset.PermissionCache { return c },
			func(s seat.SeatService) middleware.CapabilityChecker { return s },

			audit.NewAuditController,
			permissionset.NewPermissionSetController,
			seat.NewSeatController,
			organization.NewOrganizationController,
			system.NewDebugController,
			system.NewWebSocketController,

			AsRoute(audit.NewAuditApi),
			AsRoute(permissionset.NewPermissionSetApi),
			AsRoute(seat.NewSeatApi),
			AsRoute(organization.NewOrganizationApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewSwaggerApi),
			AsRoute(system.NewWebSocketApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			ConfigureAuth,
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(*permissionset.Janitor) {},
		),
	)
}

func main() {
	fx.New(options()).Run()
}
