package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/tapcard/internal/config"
	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env failed: %v", err)
	}
	cfg := config.Load()

	username := flag.String("username", cfg.SuperRootUserName, "登录用户名")
	password := flag.String("password", cfg.SuperRootPassword, "登录密码")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("用户名和密码不能为空，可通过 -username/-password 或 SUPER_ROOT_USER_NAME/SUPER_ROOT_PASSWORD 指定")
	}

	// 初始化数据库
	if err := db.Init(cfg.DBDriver, cfg.DatabaseDSN()); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	created, err := service.NewAuthService(db.DB).EnsureUser(context.Background(), *username, *password)
	if err != nil {
		log.Fatal("创建用户失败:", err)
	}
	if !created {
		fmt.Println("用户已存在，无需初始化")
		return
	}
	fmt.Println("用户创建成功")
	fmt.Println("用户名:", *username)
}
