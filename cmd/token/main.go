package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"tilemap-server/internal/auth"
	"tilemap-server/internal/shared/config"
)

// Issues a bearer token for an editor or pipeline client. Meant for local
// development and CI setups; production tokens come from the deployment's
// secret management.
func main() {
	clientID := flag.String("client", "", "client identifier to embed in the token")
	role := flag.String("role", auth.RoleEditor, "role claim (editor clients may load and delete maps)")
	flag.Parse()

	if *clientID == "" {
		fmt.Fprintln(os.Stderr, "usage: token -client <id> [-role <role>]")
		os.Exit(2)
	}

	if err := config.Init(); err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	token, err := auth.GenerateToken(*clientID, *role)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
