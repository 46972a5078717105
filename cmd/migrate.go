package cmd

import (
	"fmt"
	"os"

	"user-api/internal/config"
	"user-api/internal/infrastructure/database"
	"user-api/migrations"
	"user-api/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration management",
	Long:  "Manage the PostgreSQL schema backing the users store",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run pending migrations",
	Long:  "Execute all pending database migrations",
	Run:   runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  "Display the status of all migrations",
	Run:   runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func connectDatabase() *gorm.DB {
	cfg := config.Get()

	db, err := database.NewConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.Username,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		LogSQL:   cfg.Database.LogSQL,
	})
	if err != nil {
		logger.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	return db
}

func runMigrateUp(cmd *cobra.Command, args []string) {
	db := connectDatabase()
	defer database.Close(db)

	applied, err := database.NewMigrationRunner(db, migrations.FS).RunMigrations()
	if err != nil {
		logger.Error("Migration failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Migrations completed successfully! (%d applied)\n", applied)
}

func runMigrateStatus(cmd *cobra.Command, args []string) {
	db := connectDatabase()
	defer database.Close(db)

	status, err := database.NewMigrationRunner(db, migrations.FS).GetMigrationStatus()
	if err != nil {
		logger.Error("Failed to get migration status: %v", err)
		os.Exit(1)
	}

	fmt.Println("Migration Status:")
	fmt.Println("================")
	for _, migration := range status {
		state := "Pending"
		if migration.AppliedAt != nil {
			state = fmt.Sprintf("Applied at %s", migration.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("%s - %s [%s]\n", migration.ID, migration.Description, state)
	}
}
