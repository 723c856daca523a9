package cmd

import (
	"fmt"

	"FragFM/cache"
	"FragFM/logger"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试签名URL缓存使用的Redis连接是否成功，并进行基本读写操作。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer logger.Sync()
		fmt.Printf("Redis配置: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		client, err := cache.NewRedisClient(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		fmt.Println("Redis连接成功！")

		if err := cache.CheckRoundTrip(cmd.Context(), client); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
