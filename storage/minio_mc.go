package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"FragFM/core/errs"

	"github.com/minio/minio-go/v7"
)

// BucketStats summarizes the objects under a prefix.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	ByType       map[string]int64 // bytes per coarse content type
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// List returns every object under prefix together with summary statistics.
func (g *Gateway) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{ByType: make(map[string]int64)}
	var objects []ObjectInfo

	objectCh := g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, errs.E(errs.StorageRead, "storage.List", "failed to list objects", object.Err)
		}

		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		stats.ByType[inferContentType(object.Key)] += object.Size

		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, stats, nil
}

// PrintBucketStatus writes a report of the objects under prefix, grouped by
// song folder when the prefix covers more than one.
func (g *Gateway) PrintBucketStatus(ctx context.Context, w io.Writer, prefix string, withObjects bool) error {
	objects, stats, err := g.List(ctx, prefix)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "bucket:        %s\n", g.bucket)
	fmt.Fprintf(w, "prefix:        %q\n", prefix)
	fmt.Fprintf(w, "objects:       %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "total size:    %s\n", formatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "last modified: %s\n", stats.LastModified.Format(time.RFC3339))
	}

	types := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-8s %s\n", t, formatSize(stats.ByType[t]))
	}

	if !withObjects {
		return nil
	}
	fmt.Fprintln(w)
	for _, group := range groupByFolder(objects) {
		fmt.Fprintf(w, "%s (%d objects)\n", group.folder, len(group.objects))
		for _, obj := range group.objects {
			fmt.Fprintf(w, "  %s  %s\n", path.Base(obj.Key), formatSize(obj.Size))
		}
	}
	return nil
}

type folderGroup struct {
	folder  string
	objects []ObjectInfo
}

func groupByFolder(objects []ObjectInfo) []folderGroup {
	index := make(map[string]int)
	var groups []folderGroup
	for _, obj := range objects {
		dir := path.Dir(obj.Key) + "/"
		i, ok := index[dir]
		if !ok {
			i = len(groups)
			index[dir] = i
			groups = append(groups, folderGroup{folder: dir})
		}
		groups[i].objects = append(groups[i].objects, obj)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].folder < groups[b].folder })
	return groups
}

// formatSize 格式化文件大小
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// inferContentType maps a key to a coarse type from its extension.
func inferContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".webm", ".mp3", ".wav", ".flac", ".m4a", ".ogg", ".opus":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	case ".lrc", ".txt":
		return "lyrics"
	default:
		return "other"
	}
}
