package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docuflow/portal/internal/app"
	"docuflow/portal/internal/audit"
	"docuflow/portal/internal/config"
	"docuflow/portal/internal/kvstore"
	"docuflow/portal/internal/observability"
	"docuflow/portal/internal/session"
	"docuflow/portal/internal/shell"
)

var (
	configFile string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docuflow",
	Short: "DocuFlow portal server and operator tools",
	Long: `docuflow serves the DocuFlow portal: login, role-based dashboards,
notification streams and per-client session state.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(configPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logger, _, err = observability.NewLogger(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  serve,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or reset stored client sessions",
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the stored session of one browser client",
	Long: `Removes the user record, token and role of a client and wipes its
session-scoped storage. The client sees the public landing page on its next
navigation.

Example:
  docuflow session clear --client 6f1c3f0e-7d61-4a53-9a55-2f1d0b4a8f10`,
	RunE: clearSession,
}

var routeCmd = &cobra.Command{
	Use:   "route [path]",
	Short: "Show where the route guard sends a client for a path",
	Args:  cobra.ExactArgs(1),
	RunE:  explainRoute,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage portal users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or replace a user",
	Long: `Creates a user with the given role, or replaces the password and role
of an existing one.

Roles: admin, department, employee`,
	RunE: addUser,
}

var waitDBCmd = &cobra.Command{
	Use:   "wait-db",
	Short: "Block until Postgres accepts connections",
	RunE:  waitDB,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	sessionClearCmd.Flags().String("client", "", "client id from the docuflow_client cookie")
	_ = sessionClearCmd.MarkFlagRequired("client")
	sessionCmd.AddCommand(sessionClearCmd)

	routeCmd.Flags().String("client", "", "client id whose stored session is consulted")

	userAddCmd.Flags().String("username", "", "username")
	userAddCmd.Flags().String("password", "", "password")
	userAddCmd.Flags().String("role", string(session.RoleEmployee), "role")
	_ = userAddCmd.MarkFlagRequired("username")
	_ = userAddCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userAddCmd)

	waitDBCmd.Flags().String("dsn", "", "postgres dsn (default $DATABASE_URL, then $TEST_POSTGRES_DSN)")
	waitDBCmd.Flags().Duration("timeout", 60*time.Second, "how long to keep trying")

	rootCmd.AddCommand(serveCmd, sessionCmd, routeCmd, userCmd, waitDBCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv("CONFIG_FILE")
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	return a.Run(ctx)
}

// offlineShell mounts a client's stored state outside the server. The
// session-scoped half is in-memory since it never outlives a running shell.
func offlineShell(backend kvstore.Backend, clientID string) *shell.Shell {
	return shell.New(clientID,
		kvstore.Bind(backend, clientID),
		kvstore.Bind(kvstore.NewMemory(), clientID),
		shell.Options{Log: logger})
}

func clearSession(cmd *cobra.Command, args []string) error {
	clientID, _ := cmd.Flags().GetString("client")

	stores, err := app.OpenStores(cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	sh := offlineShell(stores.Backend, clientID)
	defer sh.Close()

	if rec, err := sh.Session.Record(); err == nil && rec.AccessToken != "" {
		if err := stores.Auth.RevokeToken(rec.AccessToken); err != nil {
			logger.Debug("stored token already gone", zap.String("client_id", clientID), zap.Error(err))
		}
	}
	outcome := audit.OutcomeSuccess
	clearErr := sh.Session.ClearSession(nil)
	if clearErr != nil {
		outcome = audit.OutcomeFailure
	}
	if err := audit.NewLogger(cfg.AuditLogFile, logger).Log(audit.Event{
		Actor:    "operator",
		Action:   "session.clear",
		Target:   clientID,
		Outcome:  outcome,
		ClientID: clientID,
	}); err != nil {
		logger.Warn("audit write failed", zap.Error(err))
	}
	if clearErr != nil {
		return fmt.Errorf("clear session: %w", clearErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared session for client %s\n", clientID)
	return nil
}

func explainRoute(cmd *cobra.Command, args []string) error {
	clientID, _ := cmd.Flags().GetString("client")

	backend := kvstore.Backend(kvstore.NewMemory())
	if clientID != "" {
		stores, err := app.OpenStores(cfg, logger)
		if err != nil {
			return err
		}
		defer stores.Close()
		backend = stores.Backend
	} else {
		clientID = "anonymous"
	}

	sh := offlineShell(backend, clientID)
	defer sh.Close()

	d := sh.Guard.Navigate(args[0], session.NewMemoryJar())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "path:          %s\n", d.Path)
	fmt.Fprintf(out, "class:         %s\n", d.Class)
	fmt.Fprintf(out, "authenticated: %t\n", d.Authenticated)
	if d.Allowed() {
		fmt.Fprintln(out, "decision:      render")
	} else {
		fmt.Fprintf(out, "decision:      redirect %s\n", d.Redirect)
	}
	return nil
}

func addUser(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	rawRole, _ := cmd.Flags().GetString("role")

	role, err := session.ParseRole(rawRole)
	if err != nil {
		return err
	}

	stores, err := app.OpenStores(cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	u, err := stores.Auth.AddUser(username, password, role)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	_ = audit.NewLogger(cfg.AuditLogFile, logger).Log(audit.Event{
		Actor:   "operator",
		Action:  "user.add",
		Target:  u.Username,
		Outcome: audit.OutcomeSuccess,
		Detail:  string(u.Role),
	})
	fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) saved with id %s\n", u.Username, u.Role, u.ID)
	return nil
}

func waitDB(cmd *cobra.Command, args []string) error {
	dsn, _ := cmd.Flags().GetString("dsn")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if dsn == "" {
		dsn = cfg.DatabaseURL
	}
	if dsn == "" {
		dsn = os.Getenv("TEST_POSTGRES_DSN")
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.WaitForDB(ctx, dsn, timeout, logger); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "postgres ready")
	return nil
}
