package main

import (
	"os"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lbserver/database"
	"lbserver/handlers"
	"lbserver/ledger"
	"lbserver/live"
	"lbserver/middlewares"
	"lbserver/models"
	"lbserver/store"
	"lbserver/utils"
)

func main() {
	logger, err := utils.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	config, err := database.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// DBとRedisの初期化は並行して行う
	var db *gorm.DB
	var rdb *redis.Client
	var wg sync.WaitGroup
	var dbErr, rdbErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		db, dbErr = database.InitDB(config, logger)
	}()
	go func() {
		defer wg.Done()
		rdb, rdbErr = database.InitRedis(logger)
	}()
	wg.Wait()
	if dbErr != nil {
		logger.Fatal("Failed to initialize database", zap.Error(dbErr))
	}
	if rdbErr != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(rdbErr))
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	s := store.NewGormStore(db)
	l := ledger.New(s, logger)
	hub := live.NewHub(s, l, rdb, logger)

	cleaner := utils.CronCleaner(s, logger)
	defer cleaner.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		api.POST("/leaderboards", func(c *gin.Context) {
			handlers.CreateCompetition(c, s, logger)
		})
		api.GET("/leaderboards/:id", func(c *gin.Context) {
			handlers.GetCompetition(c, hub)
		})
		api.POST("/teams/register", func(c *gin.Context) {
			handlers.RegisterTeam(c, l, hub, logger)
		})
		api.POST("/auth/host", func(c *gin.Context) {
			handlers.HostAuth(c, s, logger)
		})
		api.POST("/auth/team", func(c *gin.Context) {
			handlers.TeamAuth(c, s, logger)
		})
		api.POST("/teams/join", func(c *gin.Context) {
			handlers.JoinTeam(c, l, logger)
		})

		authed := api.Group("", middlewares.RequireSession())
		{
			authed.GET("/auth/session", handlers.SessionInfo)
			authed.POST("/auth/logout", func(c *gin.Context) {
				handlers.Logout(c, logger)
			})
			authed.GET("/teams/progress", func(c *gin.Context) {
				handlers.TeamProgress(c, l)
			})
			authed.POST("/challenges/complete", func(c *gin.Context) {
				handlers.CompleteChallenge(c, l, hub)
			})
			authed.POST("/challenges/uncomplete", func(c *gin.Context) {
				handlers.UncompleteChallenge(c, l, hub)
			})
			authed.PUT("/leaderboards/:id/status", func(c *gin.Context) {
				handlers.UpdateStatus(c, l, hub)
			})

			host := authed.Group("", middlewares.RequireRole(models.RoleHost))
			{
				host.PUT("/leaderboards/:id/challenges", func(c *gin.Context) {
					handlers.UploadChallenges(c, s, logger)
				})
				host.GET("/leaderboards/:id/export", func(c *gin.Context) {
					handlers.ExportCSV(c, s, logger)
				})
			}
		}
	}

	router.GET("/ws", hub.HandleConnections)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("Server starting", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func allowedOrigins() []string {
	if origin := os.Getenv("ALLOWED_ORIGIN"); origin != "" {
		return []string{origin}
	}
	return []string{"http://localhost:5173", "http://localhost:3000"}
}
