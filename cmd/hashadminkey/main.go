package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// hashadminkey reads an admin key from stdin and prints a bcrypt hash for
// auth.adminKeyHash (AUTH_ADMINKEYHASH).
func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("Failed to read admin key from stdin: %v", err)
	}

	adminKey := strings.TrimRight(line, "\r\n")
	if adminKey == "" {
		log.Fatal("Admin key must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), *cost)
	if err != nil {
		log.Fatalf("Failed to hash admin key: %v", err)
	}

	fmt.Println(string(hash))
}
