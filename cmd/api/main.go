package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "bank-approvals/internal/common/api"
	"bank-approvals/internal/config"
	"bank-approvals/internal/database"
	"bank-approvals/internal/features/audit"
	"bank-approvals/internal/features/callback"
	"bank-approvals/internal/features/decision"
	"bank-approvals/internal/features/events"
	"bank-approvals/internal/features/system"
	"bank-approvals/internal/features/task"
	"bank-approvals/internal/features/template"
	"bank-approvals/internal/features/validator"
	"bank-approvals/internal/features/workflow"
	"bank-approvals/internal/logger"
	"bank-approvals/internal/middleware"
	"bank-approvals/pkg/utils"

	_ "bank-approvals/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

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
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(
	lc fx.Lifecycle,
	templates template.TemplateRepository,
	tasks task.TaskRepository,
	subjects workflow.SubjectRepository,
	signals workflow.SignalRepository,
	logs audit.AuditRepository,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				for name, ensure := range map[string]func(context.Context) error{
					"template": templates.EnsureIndexes,
					"task":     tasks.EnsureIndexes,
					"subject":  subjects.EnsureIndexes,
					"signal":   signals.EnsureIndexes,
					"audit":    logs.EnsureIndexes,
				} {
					if err := ensure(ctx); err != nil {
						log.Printf("Failed to ensure %s indexes: %v", name, err)
					}
				}
			}()
			return nil
		},
	})
}

// RegisterCallbackHandlers installs the default callback handlers. The log
// handler doubles as the named "log" handler and the wildcard fallback for
// every lifecycle event.
func RegisterCallbackHandlers(registry *callback.Registry, zlog *zap.Logger) {
	handler := callback.NewLogHandler(zlog)
	registry.RegisterNamed(handler)
	for _, event := range []string{
		callback.EventOnApprove,
		callback.EventOnReject,
		callback.EventOnCancel,
		callback.EventOnTimeout,
	} {
		registry.Bind(event, "*", handler)
	}
}

// ResumeWorkflows rehydrates open workflow instances and replays signals
// that were persisted but not yet applied before the last shutdown.
func ResumeWorkflows(lc fx.Lifecycle, runtime *workflow.Runtime) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return runtime.Resume(ctx)
		},
	})
}

// StartEscalationSweep schedules the periodic SLA/escalation sweep.
func StartEscalationSweep(lc fx.Lifecycle, cfg *config.Config, orchestrator *workflow.Orchestrator, zlog *zap.Logger) {
	scheduler := cron.New()
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := scheduler.AddFunc(cfg.EscalationSweepCron, func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				orchestrator.EscalationSweep(ctx)
			})
			if err != nil {
				return fmt.Errorf("invalid escalation sweep schedule %q: %w", cfg.EscalationSweepCron, err)
			}
			scheduler.Start()
			zlog.Info("escalation sweep scheduled", zap.String("cron", cfg.EscalationSweepCron))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
}

// StartEventBus subscribes to inbound submission events and closes the bus
// on shutdown.
func StartEventBus(lc fx.Lifecycle, bus *events.Bus, orchestrator *workflow.Orchestrator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return bus.SubscribeSubmissions(orchestrator)
		},
		OnStop: func(ctx context.Context) error {
			bus.Close()
			return nil
		},
	})
}

// CloseArchiver drains and shuts down the warehouse archiver if configured.
func CloseArchiver(lc fx.Lifecycle, archiver *audit.Archiver) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if archiver != nil {
				archiver.Close()
			}
			return nil
		},
	})
}

// @title           Bank Approvals API
// @version         1.0
// @description     Approval workflow engine for banking entities using Fiber, Uber Fx, and MongoDB.

// @contact.name    API Support

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			// Initialize Repository
			template.NewTemplateRepository,
			task.NewTaskRepository,
			workflow.NewSubjectRepository,
			workflow.NewSignalRepository,
			audit.NewAuditRepository,

			// Initialize Service
			decision.NewEngine,
			validator.NewRegistry,
			validator.NewPipeline,
			template.NewTemplateService,
			task.NewTaskService,
			callback.NewRegistry,
			audit.NewArchiver,
			audit.NewAuditService,
			events.NewHub,
			events.NewBus,
			workflow.NewRuntime,
			workflow.NewOrchestrator,

			// Interface Adapters to satisfy Fx
			func(s audit.AuditService) workflow.AuditRecorder { return s },
			func(b *events.Bus) workflow.EventPublisher { return b },
			func(h *events.Hub) workflow.TransitionBroadcaster { return h },

			// Initialize Controller
			template.NewTemplateController,
			task.NewTaskController,
			workflow.NewWorkflowController,
			audit.NewAuditController,

			// Initialize API Routes
			AsRoute(template.NewTemplateApi),
			AsRoute(task.NewTaskApi),
			AsRoute(workflow.NewWorkflowApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
			AsRoute(system.NewWebSocketApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			RegisterCallbackHandlers,
			StartServer,
			ResumeWorkflows,
			StartEscalationSweep,
			StartEventBus,
			CloseArchiver,
			InitializeIndexes,
		),
	)

	app.Run()
}
