package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/wallet-storage/was"
	"github.com/wallet-storage/was/clouddrive"
	"github.com/wallet-storage/was/database"
	"github.com/wallet-storage/was/filesystem"
	"github.com/wallet-storage/was/s3store"
)

// NewStore instantiates the storage backend selected by cfg.Backend. The
// returned cleanup function releases any held connections and may be called
// exactly once.
func NewStore(ctx context.Context, cfg StorageConfig) (was.Store, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "memory":
		return was.NewMemoryStore(), noop, nil

	case "filesystem":
		if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage root: %w", err)
		}
		root, err := os.OpenRoot(cfg.Root)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage root: %w", err)
		}
		return filesystem.NewStore(root), func() { _ = root.Close() }, nil

	case "sqlite", "postgres":
		if cfg.DSN == "" {
			return nil, nil, fmt.Errorf("storage.dsn is required for the %s backend", cfg.Backend)
		}
		return database.Connect(ctx, database.Config{Driver: cfg.Backend, DSN: cfg.DSN})

	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, nil, errors.New("storage.s3.bucket is required for the s3 backend")
		}

		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.S3.Region),
		}
		if cfg.S3.AccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3store.NewFromConfig(awsCfg, cfg.S3.Bucket, cfg.S3.Prefix), noop, nil

	case "dropbox":
		store, err := clouddrive.NewDropbox(ctx, clouddrive.DropboxConfig{
			AccessToken:  cfg.Dropbox.AccessToken,
			RefreshToken: cfg.Dropbox.RefreshToken,
			AppKey:       cfg.Dropbox.AppKey,
			AppSecret:    cfg.Dropbox.AppSecret,
			RootFolder:   cfg.Dropbox.RootFolder,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "onedrive":
		store, err := clouddrive.NewOneDrive(ctx, clouddrive.OneDriveConfig{
			ClientID:     cfg.OneDrive.ClientID,
			ClientSecret: cfg.OneDrive.ClientSecret,
			TenantID:     cfg.OneDrive.TenantID,
			DriveID:      cfg.OneDrive.DriveID,
			RootFolder:   cfg.OneDrive.RootFolder,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "gdrive":
		if cfg.GDrive.Credentials == "" {
			return nil, nil, errors.New("storage.gdrive.credentials is required for the gdrive backend")
		}
		store, err := clouddrive.NewGoogleDrive(ctx, clouddrive.GoogleDriveConfig{
			Credentials: cfg.GDrive.Credentials,
			RootFolder:  cfg.GDrive.RootFolder,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
}
