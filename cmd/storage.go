package cmd

import (
	"fmt"
	"os"

	"FragFM/logger"
	"FragFM/storage"

	"github.com/spf13/cobra"
)

var (
	storagePrefix  string
	storageObjects bool
	storageDelete  bool
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "对象存储桶管理",
	Long:  `查看存储桶中的对象统计，按目录列出对象，或删除某个前缀下的全部对象（例如一首歌的 songs/{uuid}/）。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer logger.Sync()
		ctx := cmd.Context()

		gateway, err := storage.NewGateway(ctx, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Bucket: %s @ %s\n", gateway.Bucket(), cfg.MinioEndpoint)

		if storageDelete {
			if storagePrefix == "" {
				return fmt.Errorf("--delete requires --prefix")
			}
			if err := gateway.DeletePrefix(ctx, storagePrefix); err != nil {
				return err
			}
			fmt.Printf("deleted everything under %s\n", storagePrefix)
			return nil
		}
		return gateway.PrintBucketStatus(ctx, os.Stdout, storagePrefix, storageObjects)
	},
}

func init() {
	storageCmd.Flags().StringVarP(&storagePrefix, "prefix", "p", "", "只处理该前缀下的对象")
	storageCmd.Flags().BoolVarP(&storageObjects, "objects", "o", false, "按目录列出每个对象")
	storageCmd.Flags().BoolVar(&storageDelete, "delete", false, "删除前缀下的全部对象")
	rootCmd.AddCommand(storageCmd)
}
