package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"partyserver/auth"        //JWTとパスワードハッシュ
	"partyserver/database"    //設定の読み込み、PostgreSQLとRedisの初期化
	"partyserver/handlers"    //HTTPリクエストの処理
	"partyserver/live"        //ゲーム画面へのWebSocket通知
	"partyserver/middlewares" //認証と権限チェック
	"partyserver/migrations"  //スキーマのマイグレーション
	"partyserver/models"      //モデル定義
	"partyserver/selection"   //プレイヤーとお題の抽選
	"partyserver/storage"     //アップロードファイルの保存先
	"partyserver/utils"       //ロガーの初期化とCronジョブ

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// .env があれば環境変数として読み込む(PARTY_*)
	_ = godotenv.Load()

	config, err := database.LoadConfig("config.json")
	if err != nil {
		panic(err)
	}

	logger, err := utils.InitLogger(gin.Mode() == gin.DebugMode) // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		var err error
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
		}
		if err := migrations.Migrate(db, logger); err != nil {
			logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		var err error
		rdb, err = database.InitRedis(config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	files, local := initStorage(config, logger)

	engine := selection.NewEngine(database.NewGormStore(db), logger,
		selection.WithDrawStore(database.NewRedisDrawStore(rdb, logger)))
	hub := live.NewHub(logger)
	tokens := auth.NewTokenManager(config.JWTSecret)

	// クーロンスケジューラのセットアップと呼び出し
	cleaner := utils.CronCleaner(db, files, logger)
	defer cleaner.Stop()

	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "x-auth-token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if local != nil {
		router.Static("/uploads", local.Dir())
	}

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err == nil {
			err = rdb.Ping(c.Request.Context()).Err()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	authn := middlewares.AuthMiddleware(tokens, logger)

	//認証
	a := api.Group("/auth")
	a.POST("/game/register", func(c *gin.Context) {
		handlers.GameRegister(c, db, logger)
	})
	a.POST("/game/login", func(c *gin.Context) {
		handlers.GameLogin(c, db, logger)
	})
	a.POST("/user/register", func(c *gin.Context) {
		handlers.UserRegister(c, db, tokens, logger)
	})
	a.POST("/user/login", func(c *gin.Context) {
		handlers.UserLogin(c, db, tokens, logger)
	})
	a.POST("/admin/login", func(c *gin.Context) {
		handlers.AdminLogin(c, config, tokens, logger)
	})
	a.GET("/me", authn, func(c *gin.Context) {
		handlers.Me(c, db, logger)
	})

	//ゲームモード
	game := api.Group("/game", authn, middlewares.RequireGameMember())
	game.GET("/current", func(c *gin.Context) {
		handlers.CurrentGame(c, engine, logger)
	})
	game.GET("/users", func(c *gin.Context) {
		handlers.GameUsers(c, engine, logger)
	})
	game.GET("/user-challenges/:userId", func(c *gin.Context) {
		handlers.UserChallenges(c, engine, logger)
	})
	game.GET("/invite.png", func(c *gin.Context) {
		handlers.InviteQR(c, config.PublicBaseURL, logger)
	})
	game.GET("/live", func(c *gin.Context) {
		handlers.LiveConnection(c, hub)
	})

	play := game.Group("", middlewares.RequireCanPlay())
	play.GET("/random", func(c *gin.Context) {
		handlers.RandomRound(c, engine, hub, logger)
	})
	play.GET("/data/:challengeId", func(c *gin.Context) {
		handlers.ChallengeRound(c, engine, hub, logger)
	})
	play.GET("/used-random-numbers", func(c *gin.Context) {
		handlers.UsedRandomNumbers(c, engine, logger)
	})
	play.POST("/record-random-numbers", func(c *gin.Context) {
		handlers.RecordRandomNumbers(c, engine, hub, logger)
	})
	play.POST("/random-numbers/preview", func(c *gin.Context) {
		handlers.PreviewRandomNumbers(c, engine, logger)
	})
	play.POST("/random-numbers/commit", func(c *gin.Context) {
		handlers.CommitRandomNumbers(c, engine, hub, logger)
	})
	play.POST("/random-numbers/discard", func(c *gin.Context) {
		handlers.DiscardRandomNumbers(c, engine, logger)
	})

	//お題
	challenges := api.Group("/challenges", authn, middlewares.RequireGameMember())
	challenges.POST("", func(c *gin.Context) {
		handlers.CreateChallenge(c, db, logger)
	})
	challenges.GET("", func(c *gin.Context) {
		handlers.MyChallenges(c, db, logger)
	})
	challenges.PUT("/:id", func(c *gin.Context) {
		handlers.UpdateChallenge(c, db, logger)
	})
	challenges.DELETE("/:id", func(c *gin.Context) {
		handlers.DeleteChallenge(c, db, logger)
	})

	//テーマ曲
	audio := api.Group("/audio", authn, middlewares.RequireGameMember())
	audio.POST("", func(c *gin.Context) {
		handlers.UploadAudio(c, db, files, logger)
	})
	audio.GET("", func(c *gin.Context) {
		handlers.MyAudio(c, db, logger)
	})
	audio.PUT("/:id", func(c *gin.Context) {
		handlers.UpdateAudioDuration(c, db, logger)
	})
	audio.DELETE("/:id", func(c *gin.Context) {
		handlers.DeleteAudio(c, db, files, logger)
	})

	api.POST("/upload", authn, func(c *gin.Context) {
		handlers.UploadMedia(c, files, logger)
	})

	//家族管理者
	family := api.Group("/family", authn, middlewares.RequireGameMember(), middlewares.RequireTenantAdmin())
	family.GET("/users", func(c *gin.Context) {
		handlers.FamilyUsers(c, db, logger)
	})
	family.DELETE("/users/:id", func(c *gin.Context) {
		handlers.DeleteFamilyUser(c, db, files, logger)
	})
	family.PUT("/users/:id/permissions", func(c *gin.Context) {
		handlers.SetPermissions(c, db, logger)
	})
	family.PUT("/game", func(c *gin.Context) {
		handlers.UpdateFamilyGame(c, db, logger)
	})
	family.DELETE("/game", func(c *gin.Context) {
		handlers.DeleteFamilyGame(c, db, files, logger)
	})

	//スーパー管理者
	admin := api.Group("/admin", authn, middlewares.RequireSuperAdmin())
	admin.GET("/games", func(c *gin.Context) {
		handlers.AdminGames(c, db, logger)
	})
	admin.PUT("/games/:id", func(c *gin.Context) {
		handlers.AdminUpdateGame(c, db, logger)
	})
	admin.DELETE("/games/:id", func(c *gin.Context) {
		handlers.AdminDeleteGame(c, db, files, logger)
	})
	admin.GET("/games/:gameId/users", func(c *gin.Context) {
		handlers.AdminGameUsers(c, db, logger)
	})
	admin.PUT("/users/:id", func(c *gin.Context) {
		handlers.AdminUpdateUser(c, db, logger)
	})
	admin.DELETE("/users/:id", func(c *gin.Context) {
		handlers.AdminDeleteUser(c, db, files, logger)
	})
	admin.GET("/users/:userId/challenges", func(c *gin.Context) {
		handlers.AdminUserChallenges(c, db, logger)
	})
	admin.PUT("/challenges/:id", func(c *gin.Context) {
		handlers.UpdateChallenge(c, db, logger)
	})
	admin.DELETE("/challenges/:id", func(c *gin.Context) {
		handlers.DeleteChallenge(c, db, logger)
	})

	logger.Info("サーバーを起動します", zap.String("addr", config.Addr))
	if err := router.Run(config.Addr); err != nil {
		logger.Fatal("Failed to run server", zap.Error(err))
	}
}

// initStorage は S3 のバケットが設定されていれば S3、なければローカルディスクを使います。
func initStorage(config models.Config, logger *zap.Logger) (storage.Storage, *storage.LocalStorage) {
	if config.S3Bucket != "" {
		s3, err := storage.NewS3Storage(context.Background(), storage.S3Options{
			Bucket:     config.S3Bucket,
			Endpoint:   config.S3Endpoint,
			Region:     config.S3Region,
			AccessKey:  config.S3AccessKey,
			SecretKey:  config.S3SecretKey,
			CDNBaseURL: config.CDNBaseURL,
		})
		if err != nil {
			logger.Fatal("S3の初期化に失敗しました", zap.Error(err))
		}
		logger.Info("S3ストレージを使用します", zap.String("bucket", config.S3Bucket))
		return s3, nil
	}
	local := storage.NewLocalStorage(config.UploadDir, strings.TrimSuffix(config.PublicBaseURL, "/")+"/uploads")
	logger.Info("ローカルストレージを使用します", zap.String("dir", config.UploadDir))
	return local, local
}
