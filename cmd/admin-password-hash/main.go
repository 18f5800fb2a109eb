// Mints the bcrypt hash for the ADMIN_PASSWORD_HASH env var. The password is
// read from stdin rather than argv so it never lands in shell history.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/joshua0006/pineapple-tours--1--sub006/utils"
)

func main() {
	fmt.Fprint(os.Stderr, "password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "read failed:", err)
		os.Exit(1)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "empty password")
		os.Exit(1)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash failed:", err)
		os.Exit(1)
	}

	fmt.Println(string(hash))
}
