package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/adopt-a-farmer/client-go/auth"
	"github.com/adopt-a-farmer/client-go/config"
	"github.com/adopt-a-farmer/client-go/farmers"
	"github.com/adopt-a-farmer/client-go/guard"
	"github.com/adopt-a-farmer/client-go/log"
	"github.com/adopt-a-farmer/client-go/session"
	"github.com/adopt-a-farmer/client-go/storage"
	"github.com/adopt-a-farmer/client-go/transport"
)

// Package-level wiring shared by every subcommand, assembled once in the
// root PersistentPreRunE.
var (
	cfgFile    string
	appCfg     *config.Config
	appLogger  log.Logger
	appStore   *session.Store
	authSvc    *auth.Service
	farmersSvc *farmers.Service
	appRouter  *guard.Router
)

var rootCmd = &cobra.Command{
	Use:   "farmctl",
	Short: "farmctl is the Adopt-A-Farmer platform CLI",
	Long: `A command-line client for the Adopt-A-Farmer platform: sign in,
browse the farmer directory, manage your profile and adoptions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appCfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		level, parseErr := zerolog.ParseLevel(appCfg.LogLevel)
		if parseErr != nil {
			level = zerolog.InfoLevel
		}
		appLogger = log.NewZerologAdapter(level, appCfg.LogPretty)

		store, err := storage.NewFile(appCfg.SessionFile)
		if err != nil {
			return fmt.Errorf("open session storage: %w", err)
		}

		whoAmI := auth.NewService(appCfg.APIBaseURL, auth.WithLogger(appLogger))
		appStore = session.NewStore(store,
			session.WithLogger(appLogger),
			session.WithWhoAmI(whoAmI.MeWithToken),
		)

		httpClient := transport.NewHTTPClient(
			appStore,
			auth.NewRefreshFunc(appCfg.APIBaseURL, auth.WithLogger(appLogger)),
			time.Duration(appCfg.HTTPTimeoutSec)*time.Second,
			transport.WithLogger(appLogger),
			transport.WithOnSessionExpired(func() {
				fmt.Fprintln(os.Stderr, "Session expired. Run 'farmctl auth login' to sign in again.")
			}),
		)

		authSvc = auth.NewService(appCfg.APIBaseURL,
			auth.WithAuthedClient(httpClient),
			auth.WithLogger(appLogger),
		)
		farmersSvc = farmers.NewService(appCfg.APIBaseURL, httpClient,
			farmers.WithLogger(appLogger),
		)
		appRouter = guard.NewRouter(guard.DefaultRoutes())

		return appStore.Initialize(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if farmersSvc != nil {
			_ = farmersSvc.Close()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.farmctl/config.yaml)")
}
