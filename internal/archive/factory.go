package archive

import (
	"context"
	"fmt"
	"os"

	s3store "examcore/internal/infra/archive/s3"
)

// Open selects an archive.Store implementation using environment variables.
//
//	EXAMCORE_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	EXAMCORE_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archivedata)
//	(S3 specific variables documented in the s3 driver package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("EXAMCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("EXAMCORE_ARCHIVE_FS_ROOT")
		return NewFilesystem(root)
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
