package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/service"
	"golang.org/x/term"
)

// hash-password prints a bcrypt hash for ADMIN_PASSWORD_HASH.
func main() {
	cfg := config.Load()
	auth := service.NewAuthService(cfg)

	fmt.Println("=== Admin Password Hash ===")

	fmt.Print("Enter Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	if len(first) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		os.Exit(1)
	}

	fmt.Print("Confirm Password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	if string(first) != string(second) {
		fmt.Println("Error: Passwords do not match")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(string(first))
	if err != nil {
		fmt.Printf("Error hashing password: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nAdd this line to your .env:")
	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
}
