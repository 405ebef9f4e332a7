// Package main prints fresh secrets for a LaunchPal deployment. Only hashes
// of client secrets and passwords are stored, so the hash subcommand is the
// way to seed rows by hand.
//
//	keygen [all]           every secret below
//	keygen encryption      ENCRYPTION_KEY (64 hex chars)
//	keygen jwt             LAUNCHPAL_JWT_SECRET
//	keygen client-secret   an OAuth client secret and its bcrypt hash
//	keygen hash <value>    bcrypt hash of value
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/launchpal/launchpal/internal/auth"
	"github.com/launchpal/launchpal/internal/crypto"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run(args []string, w io.Writer) error {
	command := "all"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "all":
		for _, fn := range []func(io.Writer) error{encryptionKey, jwtSecret, clientSecret} {
			if err := fn(w); err != nil {
				return err
			}
		}
		return nil
	case "encryption":
		return encryptionKey(w)
	case "jwt":
		return jwtSecret(w)
	case "client-secret":
		return clientSecret(w)
	case "hash":
		if len(args) < 2 {
			return fmt.Errorf("usage: keygen hash <value>")
		}
		hash, err := auth.HashPassword(args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, hash)
		return err
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: all, encryption, jwt, client-secret, hash", command)
	}
}

func encryptionKey(w io.Writer) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "ENCRYPTION_KEY=%s\n", hex.EncodeToString(key))
	return err
}

func jwtSecret(w io.Writer) error {
	secret, err := auth.RandomAlphanumeric(48)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s=%s\n", auth.JWTSecretEnv, secret)
	return err
}

func clientSecret(w io.Writer) error {
	secret, err := auth.RandomAlphanumeric(40)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "CLIENT_SECRET=%s\nCLIENT_SECRET_HASH=%s\n", secret, hash)
	return err
}
