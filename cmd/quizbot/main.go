// Command quizbot runs the PhysicsBank Telegram quiz bot and its maintenance
// subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/m3rciful/quizbot/core/buildinfo"
	corecmd "github.com/m3rciful/quizbot/core/cmd"
	"github.com/m3rciful/quizbot/core/logger"
	coretelegram "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/internal/app"
	"github.com/m3rciful/quizbot/internal/quiz/bank"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "quizbot",
		Short:         "PhysicsBank Telegram quiz bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or "+defaultConfigPath+")")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newWebhookCmd(&configPath))
	root.AddCommand(newBankCmd(&configPath))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(buildinfo.String())
		},
	})
	return root
}

func runnerOptions(configPath string) corecmd.Options {
	return corecmd.Options{
		DefaultConfigPath: defaultConfigPath,
		ConfigPath:        configPath,
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.BootstrapApp,
		ShutdownLogger:    logger.Shutdown,
		RunTelegram:       coretelegram.RunTelegram,
	}
}

func loadConfig(configPath string) (*app.Config, error) {
	path, err := corecmd.ResolveConfigPath(runnerOptions(configPath))
	if err != nil {
		return nil, err
	}
	return app.Load(path)
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(cmd.Context(), runnerOptions(*configPath))
		},
	}
}

func newWebhookCmd(configPath *string) *cobra.Command {
	webhook := &cobra.Command{Use: "webhook", Short: "Manage the Telegram webhook"}

	var dropPending bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Register <webhook.url>/bot<token> with Telegram",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if _, err := coretelegram.SetWebhook(&cfg.Config, dropPending); err != nil {
				return err
			}
			cmd.Printf("webhook set: %s/bot<token>\n", cfg.Webhook.URL)
			return nil
		},
	}
	set.Flags().BoolVar(&dropPending, "drop-pending", false, "discard updates queued at Telegram")

	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook so long polling can be used",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := coretelegram.DeleteWebhook(&cfg.Config, dropPending); err != nil {
				return err
			}
			cmd.Println("webhook deleted")
			return nil
		},
	}
	del.Flags().BoolVar(&dropPending, "drop-pending", false, "discard updates queued at Telegram")

	info := &cobra.Command{
		Use:   "info",
		Short: "Show the webhook registered with Telegram",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			wi, err := coretelegram.GetWebhookInfo(&cfg.Config)
			if err != nil {
				return err
			}
			url := wi.URL
			if url == "" {
				url = "(none)"
			}
			cmd.Printf("url: %s\npending: %d\n", strings.ReplaceAll(url, cfg.Telegram.Token, "<token>"), wi.PendingUpdates)
			if wi.LastError != "" {
				cmd.Printf("last error: %s\n", wi.LastError)
			}
			return nil
		},
	}

	webhook.AddCommand(set, del, info)
	return webhook
}

func newBankCmd(configPath *string) *cobra.Command {
	bankCmd := &cobra.Command{Use: "bank", Short: "Inspect the question bank"}

	check := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a question bank file (default quiz.bank_file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(*configPath)
				if err != nil {
					return err
				}
				path = cfg.Quiz.BankFile
			}
			if path == "" {
				return fmt.Errorf("no bank file given and quiz.bank_file is empty")
			}
			return checkBank(cmd, path)
		},
	}
	bankCmd.AddCommand(check)
	return bankCmd
}

func checkBank(cmd *cobra.Command, path string) error {
	qb, err := bank.Load(path)
	if err != nil {
		return err
	}
	issues := qb.Validate()
	for _, is := range issues {
		cmd.Println(is.String())
	}
	cmd.Printf("%d subject(s), %d topic(s), %d question(s)\n", len(qb.Subjects()), len(qb.Keys()), qb.Len())
	if bank.HasErrors(issues) {
		return fmt.Errorf("%s: invalid question bank", path)
	}
	return nil
}
