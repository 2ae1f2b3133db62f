package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kabili207/mesh-web-client/pkg/auth"
)

func main() {
	password := flag.String("password", "", "Password to hash. A random one is generated when empty")
	length := flag.Int("length", 16, "Length of a generated password in bytes (hex encoded, so output is 2x this)")
	flag.Parse()

	if *password == "" {
		p, err := auth.RandomHex(*length)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating password: %v\n", err)
			os.Exit(1)
		}
		*password = p
		fmt.Printf("# password: %s\n", p)
	}

	hash, salt, err := auth.NewCredentials(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating salt: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("auth:")
	fmt.Printf("  password_hash: %s\n", hash)
	fmt.Printf("  password_salt: %s\n", salt)
}
