// Ops CLI for seeding identities, minting development tokens and inspecting
// the presence mirror. Credential issuance in production is an external
// concern; this tool exists for deployments and local development.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"livedesk/backend/internal/api/handler"
	"livedesk/backend/internal/config"
	"livedesk/backend/internal/models"
	"livedesk/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	if len(os.Args) < 2 {
		usage()
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	switch os.Args[1] {
	case "create-user":
		if len(os.Args) != 6 {
			fmt.Println("Usage: admin create-user <name> <email> <password> <role>")
			os.Exit(1)
		}
		role, err := models.ParseRole(os.Args[5])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[4]), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Error hashing password: %v", err)
		}
		user := models.User{
			Name:         os.Args[2],
			Email:        os.Args[3],
			PasswordHash: string(hash),
			Role:         role,
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("Error creating user: %v", err)
		}
		fmt.Printf("User %s created with id %s.\n", user.Email, user.ID)

	case "set-role":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin set-role <user_id> <role>")
			os.Exit(1)
		}
		role, err := models.ParseRole(os.Args[3])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		res := db.Model(&models.User{}).Where("id = ?", os.Args[2]).Update("role", role)
		if res.Error != nil {
			log.Fatalf("Error updating role: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			log.Fatalf("No user with id %s", os.Args[2])
		}
		fmt.Printf("User %s is now a %s.\n", os.Args[2], role)

	case "token":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin token <user_id> [ttl_hours]")
			os.Exit(1)
		}
		ttl := 72 * time.Hour
		if len(os.Args) > 3 {
			hours, err := strconv.Atoi(os.Args[3])
			if err != nil {
				fmt.Println("Invalid ttl. Please provide an integer number of hours.")
				os.Exit(1)
			}
			ttl = time.Duration(hours) * time.Hour
		}
		token, err := handler.GenerateToken([]byte(cfg.JWTSecret), os.Args[2], ttl)
		if err != nil {
			log.Fatalf("Error minting token: %v", err)
		}
		fmt.Println(token)

	case "online":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s := storage.NewStorageService(db, rdb)
		ctx := context.Background()
		for _, role := range []models.Role{models.RoleResponder, models.RoleObserver} {
			ids, err := s.ListPresence(ctx, role)
			if err != nil {
				log.Fatalf("Error reading presence set: %v", err)
			}
			fmt.Printf("%ss online: %d\n", role, len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
		}

	default:
		usage()
	}
}

func usage() {
	fmt.Println("Usage: admin <create-user|set-role|token|online> [args]")
	os.Exit(1)
}
