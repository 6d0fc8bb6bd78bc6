//go:build ignore

// generate_hash.go prints the Argon2id hash of an admin key.
// Usage: go run scripts/generate_hash.go <admin-key>
//
// Put the result into .env as ADMIN_KEY_HASH.
package main

import (
	"fmt"
	"os"

	"lexdesk.app/credits/internal/features/admin"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/generate_hash.go <admin-key>")
		os.Exit(1)
	}

	hash, err := admin.HashKey(os.Args[1])
	if err != nil {
		fmt.Printf("Failed to hash key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Admin key hash (put into .env as ADMIN_KEY_HASH):")
	fmt.Println(hash)
}
