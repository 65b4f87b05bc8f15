package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/iermgmt/painel/internal/auth"
)

func main() {
	verify := pflag.String("verify", "", "hash Argon2id a conferir contra a senha")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "uso: hashpass [--verify HASH] [senha]")
		fmt.Fprintln(os.Stderr, "sem argumento a senha é lida da entrada padrão")
	}
	pflag.Parse()

	password := pflag.Arg(0)
	if password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			pflag.Usage()
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if *verify != "" {
		ok, err := auth.Verify(password, *verify)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("não confere")
			os.Exit(2)
		}
		fmt.Println("confere")
		return
	}

	hash, err := auth.Hash(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
