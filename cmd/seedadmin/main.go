// Command seedadmin provisions an admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD. There is no public signup endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"webfolio/api/database"
	"webfolio/api/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_EMAIL and ADMIN_PASSWORD environment variables are required")
		return 1
	}

	dbClient, err := database.NewPostgresDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to PostgreSQL: %v\n", err)
		return 1
	}
	defer func() { _ = dbClient.Close() }()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := store.NewUserStore(dbClient.DB)
	user, err := users.CreateUser(ctx, email, hashed)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			fmt.Fprintf(os.Stderr, "Admin %s already exists\n", email)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to create admin: %v\n", err)
		return 1
	}

	fmt.Printf("Admin created: id=%d email=%s\n", user.ID, user.Email)
	return 0
}
