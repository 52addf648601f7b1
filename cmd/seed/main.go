// Herramienta de aprovisionamiento: crea una cuenta con password hasheado.
// El servicio no registra usuarios; este binario cubre ese rol operativo.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"otp-auth/internal/config"
	"otp-auth/internal/db"
	"otp-auth/internal/domain"
	"otp-auth/internal/repository"
)

func main() {
	emailFlag := flag.String("email", "", "email de la cuenta")
	passwordFlag := flag.String("password", "", "password en claro, se guarda hasheado")
	flag.Parse()

	if *emailFlag == "" || *passwordFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: seed -email user@example.com -password secret")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(*passwordFlag), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	repo := repository.NewPgUserRepository(pool)
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        *emailFlag,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(ctx, user); err != nil {
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("created user %s (%s)\n", user.Email, user.ID)
}
