package config

import (
	"reflect"
	"strings"

	"turnover-sync/core/database"
	"turnover-sync/core/logger"
	"turnover-sync/core/reconcile"
	"turnover-sync/core/server"
	"turnover-sync/core/storage"
	"turnover-sync/feature/ingest"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full turnover-sync configuration, one section per component.
// Every key can be set from the environment as SECTION_KEY, for example
// RECONCILE_MAX_MISSING or INGEST_CATALOG_PATH.
type Config struct {
	// Server is the API listener.
	Server server.Config `mapstructure:"server"`
	// Storage is the bucket with CSV exports and archived run reports.
	Storage storage.Config `mapstructure:"storage"`
	Log     logger.Config  `mapstructure:"log"`
	// Database stores reservation versions and job states.
	Database  database.Config  `mapstructure:"database"`
	Reconcile reconcile.Config `mapstructure:"reconcile"`
	// Ingest points at the feed catalog and sizes the fetch pool.
	Ingest ingest.Config `mapstructure:"ingest"`
}

// LoadConfig reads the .env file in path, when there is one, then the
// environment. Unset keys take the default tag of their field.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}
	// Deployments configure through the environment only.
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")

	// reconcile.max_missing <- RECONCILE_MAX_MISSING
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues registers a default for every mapstructure key below prefix.
// Fields without a default tag are registered empty; viper only resolves
// AutomaticEnv for keys it already knows.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// time.Duration is an int64, so only real sections recurse.
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
