package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/ctxmeta"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	pkgmysql "github.com/sudo-enjoy/matching-app-be/pkg/mysql"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"
)

// seedUser 东京附近的演示用户，均已完成短信验证
type seedUser struct {
	name    string
	phone   string
	gender  string
	address string
	lat     float64
	lng     float64
	photo   string
	bio     string
	matches int
	meets   int
}

var seedUsers = []seedUser{
	{"田中太郎", "+81901234567", model.GenderMale, "東京都渋谷区", 35.6762, 139.6503, "https://randomuser.me/api/portraits/men/1.jpg", "こんにちは！映画と読書が好きです。", 3, 1},
	{"佐藤花子", "+81901234568", model.GenderFemale, "東京都新宿区", 35.6938, 139.7036, "https://randomuser.me/api/portraits/women/1.jpg", "カフェ巡りとヨガが趣味です♪", 5, 2},
	{"鈴木一郎", "+81901234569", model.GenderMale, "東京都港区", 35.6654, 139.7525, "https://randomuser.me/api/portraits/men/2.jpg", "IT関係の仕事をしています。よろしくお願いします！", 2, 0},
	{"高橋美咲", "+81901234570", model.GenderFemale, "東京都品川区", 35.6284, 139.7281, "https://randomuser.me/api/portraits/women/2.jpg", "料理と旅行が大好きです！", 7, 3},
	{"伊藤健太", "+81901234571", model.GenderMale, "東京都台東区", 35.7123, 139.7786, "https://randomuser.me/api/portraits/men/3.jpg", "スポーツ全般好きです。一緒に運動しませんか？", 4, 2},
	{"山田由美", "+81901234572", model.GenderFemale, "東京都文京区", 35.7089, 139.7513, "https://randomuser.me/api/portraits/women/3.jpg", "アートと音楽が好きな会社員です。", 6, 1},
	{"中村雄大", "+81901234573", model.GenderMale, "東京都目黒区", 35.6333, 139.6983, "https://randomuser.me/api/portraits/men/4.jpg", "ゲームとアニメが趣味です！同じ趣味の人と話したいです。", 1, 0},
	{"小林あおい", "+81901234574", model.GenderOther, "東京都中野区", 35.7074, 139.6638, "", "写真を撮るのが好きです。", 0, 0},
}

// 写入演示用户，手机号已存在的跳过，可重复执行
func main() {
	ctx := ctxmeta.WithTraceID(context.Background(), "seed")

	config.Load()
	l, err := logger.Build(config.DefaultLoggerConfig())
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	logger.ReplaceGlobal(l)
	defer func() {
		_ = l.Sync()
	}()

	// 1. 雪花节点与数据库
	if err := util.InitSnowflake(config.DefaultAppConfig().NodeID); err != nil {
		logger.Fatal(ctx, "初始化雪花节点失败", logger.ErrorField("error", err))
	}
	mysqlCfg := config.DefaultMySQLConfig()
	db, err := pkgmysql.Build(mysqlCfg)
	if err != nil {
		logger.Fatal(ctx, "初始化 MySQL 失败", logger.ErrorField("error", err))
	}
	defer func() {
		_ = pkgmysql.Close(db)
	}()
	if _, err := repository.AutoMigrate(db, mysqlCfg.AutoMigrate); err != nil {
		logger.Fatal(ctx, "数据表迁移失败", logger.ErrorField("error", err))
	}

	// 2. 逐个写入
	repo := repository.NewUserRepository(db)
	now := time.Now()
	created, skipped := 0, 0
	for _, s := range seedUsers {
		_, err := repo.GetByPhone(ctx, s.phone)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, repository.ErrRecordNotFound) {
			logger.Fatal(ctx, "查询手机号失败", logger.String("phone", util.MaskPhone(s.phone)), logger.ErrorField("error", err))
		}

		// 在线状态只由实时连接决定，种子用户一律离线
		u := &model.User{
			ID:              util.GenIDString(),
			Name:            s.name,
			PhoneNumber:     s.phone,
			Gender:          s.gender,
			Address:         s.address,
			Lat:             s.lat,
			Lng:             s.lng,
			ProfilePhoto:    s.photo,
			Bio:             s.bio,
			LastSeen:        now,
			MatchCount:      s.matches,
			ActualMeetCount: s.meets,
			SmsVerified:     true,
		}
		if err := repo.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				skipped++
				continue
			}
			logger.Fatal(ctx, "写入用户失败", logger.String("name", s.name), logger.ErrorField("error", err))
		}
		created++
	}

	logger.Info(ctx, "演示用户写入完成",
		logger.Int("created", created),
		logger.Int("skipped", skipped),
	)
}
