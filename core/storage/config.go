package storage

// Config holds configuration for the storage provider.
type Config struct {
	// Endpoint is the URL of the storage service.
	Endpoint string `mapstructure:"endpoint" default:"localhost:9000"`
	// AccessKey is the access key ID for authentication.
	AccessKey string `mapstructure:"access_key" default:"minioadmin"`
	// SecretKey is the secret access key for authentication.
	SecretKey string `mapstructure:"secret_key" default:"minioadmin"`
	// UseSSL indicates whether to use SSL/TLS for connections.
	UseSSL bool `mapstructure:"use_ssl" default:"false"`
	// Bucket is the name of the bucket holding exports and archives.
	Bucket string `mapstructure:"bucket" default:"turnover"`
	// Region is the location of the bucket (e.g., us-east-1).
	Region string `mapstructure:"region" default:""`
	// TimeoutSeconds is the connection timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// CSVPrefix is prepended to the object keys of CSV feeds.
	CSVPrefix string `mapstructure:"csv_prefix" default:"exports/"`
	// ArchivePrefix is where run summaries are archived.
	ArchivePrefix string `mapstructure:"archive_prefix" default:"runs/"`
}

// Key joins a prefix and a relative object name with a single slash.
func Key(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	for len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	return prefix + name
}
