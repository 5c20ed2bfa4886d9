// Command hash-gen prints a bcrypt hash for seeding users.password_hash by hand.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"keygate.backend/pkg/crypto"
)

var (
	stdout         io.Writer = os.Stdout
	generateHashFn           = crypto.HashPassword
	fatalFn                  = log.Fatal
)

func resolvePassword(args []string, getenv func(string) string) (string, error) {
	password := getenv("ADMIN_PASSWORD")
	if len(args) > 0 {
		password = args[0]
	}
	if password == "" {
		return "", errors.New("usage: hash-gen <password> (or set ADMIN_PASSWORD)")
	}
	if len(password) < crypto.MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", crypto.MinPasswordLength)
	}
	return password, nil
}

func run(args []string) error {
	password, err := resolvePassword(args, os.Getenv)
	if err != nil {
		return err
	}
	hash, err := generateHashFn(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fatalFn(err)
	}
}
