package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"quizroom/internal/auth"
	"quizroom/internal/catalog"
	"quizroom/internal/config"
	"quizroom/internal/db"
	"quizroom/internal/logger"
	"quizroom/internal/server"
)

const releaseVersion = "0.4.0"

func newCmd() *cobra.Command {
	v := config.New()

	cmd := &cobra.Command{
		Use:           "quizroom",
		Short:         "Real-time multiplayer quiz rooms over HTTP and WebSocket.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(v)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return server.Run(cmd.Context(), cfg)
		},
	}
	config.BindFlags(v, cmd.PersistentFlags())

	cmd.AddCommand(newTokenCmd(v), newQuizCmd(v))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizroom v{{.Version}}\n")
	return cmd
}

func load(v *viper.Viper) (config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, err
	}
	if err := logger.Init(cfg.LogLevel, cfg.DevLog); err != nil {
		return config.Config{}, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, nil
}

func newTokenCmd(v *viper.Viper) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for a username",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(v)
			if err != nil {
				return err
			}
			svc, err := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL, cfg.WSTicketTTL)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "username the token identifies")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newQuizCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Manage quizzes stored in the database",
	}

	var id string
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a yaml or json quiz and store it under --id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(v)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("quiz import needs --database-url")
			}
			if id == "" {
				id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			return importQuiz(cmd.Context(), cfg.DatabaseURL, id, args[0])
		},
	}
	importCmd.Flags().StringVar(&id, "id", "", "quiz id (default: file name without extension)")
	cmd.AddCommand(importCmd)
	return cmd
}

func importQuiz(ctx context.Context, dsn, id, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	def, err := catalog.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		return err
	}

	gc, err := catalog.OpenGormCatalog(dsn)
	if err != nil {
		return err
	}
	defer gc.Close()
	if err := gc.Save(ctx, id, def); err != nil {
		return err
	}
	logger.Log.Infof("[Catalog] imported %q (%d questions) as %s", def.Title, def.Len(), id)
	return nil
}
