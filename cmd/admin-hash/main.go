package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kiloshop/orderform/internal/auth"
)

// admin-hash prints the bcrypt hash to put in ADMIN_PASSWORD_HASH.
func main() {
	password := flag.String("password", "", "Admin password (read from stdin when empty)")
	flag.Parse()

	// Fall back to environment variables, then stdin
	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}
	if *password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read password: %v", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}
	if len(*password) < 8 {
		log.Fatal("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(hash)
}
