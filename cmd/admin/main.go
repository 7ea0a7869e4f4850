package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/raon-c/re-me-sub000/internal/auth"
	"github.com/raon-c/re-me-sub000/internal/config"
	"github.com/raon-c/re-me-sub000/internal/database"
	"github.com/raon-c/re-me-sub000/internal/templates"
)

func main() {
	var (
		username      = flag.String("username", "", "初始管理员用户名（可选）")
		seedTemplates = flag.Bool("seed-templates", false, "把内置模板播种为公开的数据库模板")
	)
	flag.Parse()

	u := strings.TrimSpace(*username)
	if u == "" && !*seedTemplates {
		log.Fatal("nothing to do: pass --username and/or --seed-templates")
	}

	cfg := config.MustLoad()
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	if err := db.AutoMigrate(&database.User{}, &database.Template{}); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	if u != "" {
		createAdminUser(db, u)
	}
	if *seedTemplates {
		seedBuiltInTemplates(db)
	}
}

func createAdminUser(db *gorm.DB, username string) {
	var existing database.User
	switch err := db.Where("username = ?", username).First(&existing).Error; {
	case err == nil:
		log.Fatalf("user %q already exists", username)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		log.Fatalf("query user: %v", err)
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	user := database.User{
		Username:     username,
		PasswordHash: hashed,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("已创建初始管理员账号：\n")
	fmt.Printf("用户名: %s\n", username)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：该密码仅显示一次，请妥善保存。\n")
}

// seedBuiltInTemplates 把内置模板目录写入数据库，幂等：按名称跳过已存在的。
func seedBuiltInTemplates(db *gorm.DB) {
	for _, tpl := range templates.BuiltIn() {
		var existing database.Template
		switch err := db.Where("name = ? AND is_public = ?", tpl.Name, true).First(&existing).Error; {
		case err == nil:
			log.Printf("template %q already seeded, skipping", tpl.Name)
			continue
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			log.Fatalf("query template: %v", err)
		}

		styles, err := json.Marshal(tpl.Styles)
		if err != nil {
			log.Fatalf("encode template styles: %v", err)
		}

		row := database.Template{
			Name:          tpl.Name,
			Category:      string(tpl.Category),
			HTMLStructure: tpl.HTML,
			CSSStyles:     datatypes.JSON(styles),
			IsPublic:      true,
		}
		if err := db.Create(&row).Error; err != nil {
			log.Fatalf("seed template %q: %v", tpl.Name, err)
		}
		log.Printf("seeded template %q (id=%d)", tpl.Name, row.ID)
	}
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
