// The remote configuration is designed to allow adding other backends in the
// future. To do this, add a new RemoteType, update RemoteConfig, and define
// the validation for the new backend.
package config

import "fmt"

// RemoteType represents the type of remote archive backend.
type RemoteType string

const (
	RemoteTypeFTP RemoteType = "ftp"
	RemoteTypeS3  RemoteType = "s3"
)

// RemoteConfig holds the configuration for the remote archive.
type RemoteConfig struct {
	RemoteType RemoteType `json:"type" yaml:"type"`

	// Common options for all backends
	Common CommonRemoteConfig `json:"common,omitempty" yaml:"common,omitempty"`

	// Type-specific configurations
	FTP *FTPConfig `json:"ftp,omitempty" yaml:"ftp,omitempty"`
	S3  *S3Config  `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// CommonRemoteConfig contains settings applicable to all remote backends.
type CommonRemoteConfig struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"` // per-operation timeout
	MaxRetries     int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`         // attempts per operation before a transient failure
	MaxRPS         int `json:"max_rps,omitempty" yaml:"max_rps,omitempty"`                 // request cap; the archive is a shared public service (0 = no limit)
	PoolSize       int `json:"pool_size,omitempty" yaml:"pool_size,omitempty"`             // idle sessions kept open; concurrency is bounded by the scheduler, not here
}

// FTPConfig holds FTP-specific configuration.
type FTPConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	BasePath string `json:"base_path,omitempty" yaml:"base_path,omitempty"` // path of the archive root on the server
	UseTLS   bool   `json:"use_tls,omitempty" yaml:"use_tls,omitempty"`
}

// S3Config holds configuration for an S3-hosted copy of the archive.
type S3Config struct {
	Region          string `json:"region" yaml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"` // for S3-compatible services
	Prefix          string `json:"prefix,omitempty" yaml:"prefix,omitempty"`     // key prefix of the archive root
}

// Validate ensures the configuration is valid for the specified remote type.
func (rc *RemoteConfig) Validate() error {
	if err := rc.Common.Validate(); err != nil {
		return err
	}

	switch rc.RemoteType {
	case RemoteTypeFTP:
		if rc.FTP == nil {
			return fmt.Errorf("ftp configuration is required when type is 'ftp'")
		}
		return rc.FTP.Validate()
	case RemoteTypeS3:
		if rc.S3 == nil {
			return fmt.Errorf("s3 configuration is required when type is 's3'")
		}
		return rc.S3.Validate()
	default:
		return fmt.Errorf("unsupported remote type: %s", rc.RemoteType)
	}
}

// Validate validates common remote configuration.
func (c *CommonRemoteConfig) Validate() error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("max_rps cannot be negative")
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size cannot be negative")
	}
	return nil
}

// ApplyDefaults sets default values if they are not provided.
func (c *CommonRemoteConfig) ApplyDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 60
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 8
	}
	// MaxRPS stays 0 (no limit)
}

// ApplyDefaults sets default values for all remote sections.
func (rc *RemoteConfig) ApplyDefaults() {
	if rc.RemoteType == "" {
		rc.RemoteType = RemoteTypeFTP
	}
	rc.Common.ApplyDefaults()
	if rc.FTP != nil {
		rc.FTP.ApplyDefaults()
	}
}

// Validate validates FTP configuration.
func (fc *FTPConfig) Validate() error {
	if fc.Host == "" {
		return fmt.Errorf("ftp host is required")
	}
	if fc.Port <= 0 || fc.Port > 65535 {
		return fmt.Errorf("ftp port must be between 1 and 65535")
	}
	if fc.Username == "" {
		return fmt.Errorf("ftp username is required")
	}
	// Password can be empty for anonymous FTP
	return nil
}

// ApplyDefaults sets default values for FTP configuration.
func (fc *FTPConfig) ApplyDefaults() {
	if fc.Port == 0 {
		fc.Port = 21
	}
	if fc.Username == "" {
		fc.Username = "anonymous"
	}
	if fc.BasePath == "" {
		fc.BasePath = "/"
	}
}

// Validate validates S3 configuration.
func (s3c *S3Config) Validate() error {
	if s3c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if s3c.AccessKeyID == "" {
		return fmt.Errorf("s3 access key is required")
	}
	if s3c.SecretAccessKey == "" {
		return fmt.Errorf("s3 secret key is required")
	}
	if s3c.Endpoint == "" {
		return fmt.Errorf("s3 endpoint is required")
	}
	return nil
}
