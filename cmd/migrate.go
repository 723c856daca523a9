package cmd

import (
	"fmt"

	"FragFM/db"
	"FragFM/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建数据库表",
	Long:  `连接MySQL并创建users、songs、playlists和playlist_songs表（已存在的表保持不变）。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer logger.Sync()

		sqlDB, err := db.ConnectDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := db.InitDB(cmd.Context(), sqlDB); err != nil {
			return err
		}
		fmt.Println("schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
