package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/locvowork/sheetmap/internal/config"
	"github.com/locvowork/sheetmap/internal/database"
	"github.com/locvowork/sheetmap/internal/handler"
	"github.com/locvowork/sheetmap/internal/logger"
	"github.com/locvowork/sheetmap/internal/repository"
	"github.com/locvowork/sheetmap/internal/service"
	"github.com/locvowork/sheetmap/pkg/googlecloud"
	"github.com/locvowork/sheetmap/pkg/workbook"
)

type App struct {
	Echo *echo.Echo
	DB   *sql.DB
	GCP  *googlecloud.Client
}

func NewApp() *App {
	e := echo.New()
	e.HideBanner = true
	return &App{Echo: e}
}

func (a *App) Initialize(ctx context.Context) error {
	// Load environment configuration
	if err := config.LoadEnvConfig(); err != nil {
		return fmt.Errorf("failed to load env config: %w", err)
	}
	cfg := config.DefaultEnvConfig

	// Initialize logging
	logger.InitLogging(cfg.LOG_FILE_PATH)
	if err := logger.SetLevel(cfg.LOG_LEVEL); err != nil {
		return err
	}
	logger.InfoLog(ctx, "Environment variables loaded successfully")

	// Initialize database connection
	dbConfig := database.Config{
		Host:            cfg.DB_HOST,
		Port:            cfg.DB_PORT,
		User:            cfg.DB_USER,
		Password:        cfg.DB_PASSWORD,
		DBName:          cfg.DB_NAME,
		SSLMode:         cfg.DB_SSL_MODE,
		MaxOpenConns:    cfg.DB_MAX_OPEN_CONNS,
		MaxIdleConns:    cfg.DB_MAX_IDLE_CONNS,
		ConnMaxLifetime: cfg.DB_CONN_MAX_LIFETIME,
	}

	db, err := database.NewPostgresDB(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db

	// Import audit goes to Datastore when a project is configured, memory otherwise.
	var audit service.AuditStore = service.NewMemoryAuditStore()
	if cfg.GCP_PROJECT_ID != "" {
		gcpClient, err := googlecloud.NewClient(ctx, cfg.GCP_PROJECT_ID, logger.Logger())
		if err != nil {
			return fmt.Errorf("failed to initialize GCP client: %w", err)
		}
		a.GCP = gcpClient
		audit = gcpClient
	} else {
		logger.WarnLog(ctx, "GCP_PROJECT_ID is not set, import audit is kept in memory")
	}

	format, err := workbook.ParseFormat(cfg.SHEET_DEFAULT_FORMAT)
	if err != nil {
		return err
	}

	// Initialize dependencies
	empRepo := repository.NewEmployeeRepository(db)
	sheetSvc, err := service.NewEmployeeSheetService(empRepo, audit, service.SheetOptions{
		DefaultFormat: format,
		TimeLayout:    cfg.SHEET_TIME_LAYOUT,
		StrictImport:  cfg.SHEET_STRICT_IMPORT,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sheet service: %w", err)
	}
	sheetHandler := handler.NewEmployeeSheetHandler(sheetSvc, cfg.UPLOAD_MAX_BYTES)

	// Register Middlewares
	a.RegisterMiddlewares()

	// Register Routes
	a.RegisterRoutes(sheetHandler)

	return nil
}

func (a *App) RegisterMiddlewares() {
	a.Echo.Use(middleware.Logger())
	a.Echo.Use(middleware.Recover())
	a.Echo.Use(middleware.CORS())
	a.Echo.Use(RequestID)
}

// RequestID propagates X-Request-ID, generating one when absent, into the
// request context used by the logger.
func RequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		c.SetRequest(c.Request().WithContext(logger.WithRequestID(c.Request().Context(), id)))
		return next(c)
	}
}

func (a *App) RegisterRoutes(sheetHandler *handler.EmployeeSheetHandler) {
	a.Echo.GET("/employees/export", sheetHandler.ExportHandler)
	a.Echo.POST("/employees/import", sheetHandler.ImportHandler)

	importGroup := a.Echo.Group("/imports")
	importGroup.GET("/:id", sheetHandler.ImportBatchHandler)
	importGroup.GET("/:id/issues", sheetHandler.ImportIssuesHandler)
	importGroup.DELETE("/:id", sheetHandler.DeleteImportHandler)

	a.Echo.GET("/reports/departments", sheetHandler.DepartmentReportHandler)
	a.Echo.POST("/tables/preview", sheetHandler.PreviewHandler)
}

func (a *App) Run() error {
	defer a.DB.Close()
	if a.GCP != nil {
		defer a.GCP.Close()
	}
	return a.Echo.Start(":" + config.DefaultEnvConfig.APP_PORT)
}
