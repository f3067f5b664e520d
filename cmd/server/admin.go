package main

import (
	"context"
	"fmt"
	"os"

	"casinoledger/internal/config"
	"casinoledger/internal/infrastructure/database"
	"casinoledger/internal/job"
	"casinoledger/internal/model"
	"casinoledger/internal/repository"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(outboxCmd)
	tableCmd.AddCommand(tableAddCmd)
	outboxCmd.AddCommand(outboxRequeueCmd)

	tableAddCmd.Flags().StringP("name", "n", "", "赌台名称（唯一）")
	tableAddCmd.Flags().IntP("seats", "s", 0, "座位数，0 表示使用 business.default_seat_count")
	_ = tableAddCmd.MarkFlagRequired("name")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig(configPath)
		database.InitMySQL(&cfg.MySQL)
		fmt.Fprintln(os.Stdout, "migration complete")
		return nil
	},
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage gaming tables",
}

var tableAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a gaming table",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		seats, _ := cmd.Flags().GetInt("seats")
		if seats < 0 {
			return fmt.Errorf("seats 不能为负数: %d", seats)
		}

		cfg := config.LoadConfig(configPath)
		db := database.InitMySQL(&cfg.MySQL)

		table := &model.Table{Name: name, SeatsCount: seats}
		if err := repository.NewTableRepository(db).Create(context.Background(), table); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "table %q created: id=%d\n", table.Name, table.ID)
		return nil
	},
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect the event outbox",
}

var outboxRequeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Put messages that exhausted their retries back into the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig(configPath)
		db := database.InitMySQL(&cfg.MySQL)

		// 只改状态，不需要连 Kafka
		sender := job.NewOutboxSender(db, nil, cfg)
		n, err := sender.RequeueFailed(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "requeued %d message(s)\n", n)
		return nil
	},
}
