package main

import (
	"fmt"

	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/vectorstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database and vector store schemas",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// opening the database applies its migrations
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	defer db.Close()

	vectors, err := vectorstore.New(cmd.Context(), cfg.Vector)
	if err != nil {
		return fmt.Errorf("failed to connect vector store: %w", err)
	}
	defer vectors.Close()

	if err := vectors.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to migrate vector store: %w", err)
	}

	logger.Info("Migrations applied",
		zap.String("database", cfg.Database.Path),
		zap.Int("dimension", cfg.Vector.Dimension),
	)
	return nil
}
