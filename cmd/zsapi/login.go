package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/zipscene/zipscene-api-client/internal/printer"
	"github.com/zipscene/zipscene-api-client/pkg/api"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the access token in the config file",
	Long: `Login performs the password authentication flow and writes the issued
access token (along with the server and email) to the config file, so later
commands run without prompting.

The password is read from the terminal without echo, or from the
ZSAPI_PASSWORD environment variable in scripts:

  zsapi login --server https://api.example.com --email a@b.com`,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	server := viper.GetString("server")
	if server == "" {
		return fmt.Errorf("--server is required")
	}
	email := viper.GetString("email")
	if email == "" {
		return fmt.Errorf("--email is required")
	}

	password := viper.GetString("password")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := readPassword()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(pw)
	}
	if password == "" {
		return fmt.Errorf("empty password")
	}

	opts := []api.Option{api.WithPassword(email, password)}
	if s := viper.GetString("auth_server"); s != "" {
		opts = append(opts, api.WithAuthServer(s))
	}
	if n := viper.GetInt("route_version"); n > 0 {
		opts = append(opts, api.WithRouteVersion(n))
	}
	if n := viper.GetInt("auth_route_version"); n > 0 {
		opts = append(opts, api.WithAuthRouteVersion(n))
	}
	if ns := viper.GetString("user_namespace"); ns != "" {
		opts = append(opts, api.WithUserNamespace(ns))
	}

	c, err := api.New(server, opts...)
	if err != nil {
		return err
	}
	token, err := c.Authenticate(context.Background())
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	if err := saveConfig(path, server, email, token); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	printer.Successf(os.Stdout, "logged in as %s", email)
	fmt.Printf("  Token stored in %s\n", path)
	return nil
}

// saveConfig persists the login outcome without dropping unrelated keys the
// user may keep in the config file.
func saveConfig(path, server, email, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	viper.Set("server", server)
	viper.Set("email", email)
	viper.Set("access_token", token)
	return viper.WriteConfigAs(path)
}
