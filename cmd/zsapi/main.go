// Command zsapi is the command-line interface for the Zipscene JSON-RPC API.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zipscene/zipscene-api-client/pkg/api"
	"github.com/zipscene/zipscene-api-client/pkg/data"
)

// version is overridden by the release build via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	verbose bool
	noAuth  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zsapi",
	Short: "Zipscene API command-line client",
	Long: `zsapi is the command-line interface for the Zipscene JSON-RPC API.

It handles login and access-token refresh automatically. Run 'zsapi login'
once to store credentials, then use the data commands:

  zsapi query --type customers --query '{"city":"Cincinnati"}'
  zsapi count --type customers
  zsapi export --type orders --output orders.ndjson
  zsapi load orders.csv --type orders`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".zsapi"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("ZSAPI")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.zsapi/config.yaml)")
	pf.String("server", "", "API base URL (e.g. https://api.example.com)")
	pf.String("auth-server", "", "auth base URL (defaults to --server)")
	pf.Int("route-version", 0, "request route version ({server}/v{n}/jsonrpc)")
	pf.Int("auth-route-version", 0, "auth route version (defaults to --route-version)")
	pf.String("token", "", "access token (skips login)")
	pf.String("email", "", "login email")
	pf.String("namespace", "", "user namespace id for login")
	pf.BoolVar(&noAuth, "no-auth", false, "send requests unauthenticated")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	bind := func(key, flag string) {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
	bind("server", "server")
	bind("auth_server", "auth-server")
	bind("route_version", "route-version")
	bind("auth_route_version", "auth-route-version")
	bind("access_token", "token")
	bind("email", "email")
	bind("user_namespace", "namespace")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newCountCmd())
	rootCmd.AddCommand(newAggregateCmd())
	rootCmd.AddCommand(newDistinctCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(versionCmd)
}

// configPath is where 'zsapi login' persists the token.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".zsapi", "config.yaml"), nil
}

// buildClient assembles an api.Client from flags, environment, and the
// config file. Credential precedence lives in the library: a stored token is
// used directly, with email/password as the re-login fallback when both are
// present.
func buildClient() (*api.Client, error) {
	server := viper.GetString("server")
	if server == "" {
		return nil, fmt.Errorf("no server configured (use --server or run 'zsapi login')")
	}

	var opts []api.Option
	if s := viper.GetString("auth_server"); s != "" {
		opts = append(opts, api.WithAuthServer(s))
	}
	if n := viper.GetInt("route_version"); n > 0 {
		opts = append(opts, api.WithRouteVersion(n))
	}
	if n := viper.GetInt("auth_route_version"); n > 0 {
		opts = append(opts, api.WithAuthRouteVersion(n))
	}

	if noAuth {
		opts = append(opts, api.WithNoAuth())
	} else {
		if token := viper.GetString("access_token"); token != "" {
			opts = append(opts, api.WithAccessToken(token))
		}
		email := viper.GetString("email")
		password := viper.GetString("password") // ZSAPI_PASSWORD; never a flag
		if email != "" && password != "" {
			opts = append(opts, api.WithPassword(email, password))
		}
		if ns := viper.GetString("user_namespace"); ns != "" {
			opts = append(opts, api.WithUserNamespace(ns))
		}
	}

	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		opts = append(opts, api.WithLogger(logger))
	}

	c, err := api.New(server, opts...)
	if errors.Is(err, api.ErrNoCredentials) {
		return nil, fmt.Errorf("no credentials: run 'zsapi login', set ZSAPI_EMAIL/ZSAPI_PASSWORD, or pass --no-auth")
	}
	return c, err
}

// buildDataClient wraps buildClient with the document-API surface.
func buildDataClient() (*data.Client, error) {
	rpc, err := buildClient()
	if err != nil {
		return nil, err
	}
	return data.New(rpc), nil
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the zsapi version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("zsapi %s\n", version)
	},
}
