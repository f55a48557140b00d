// config/config.go
package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Log           LogConfiguration
	Elasticsearch ElasticsearchConfiguration
	Demo          DemoConfiguration
}

// LogConfiguration controls where log files are written
type LogConfiguration struct {
	Dir string
}

// ElasticsearchConfiguration stores data for the audit Elasticsearch connection.
// An empty URL keeps the audit trail in the application log.
type ElasticsearchConfiguration struct {
	URL   string
	Index string
}

// DemoConfiguration tunes the scripted driver
type DemoConfiguration struct {
	Wait time.Duration
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // ELASTICSEARCH_URL overrides elasticsearch.url

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	return viper.Unmarshal(&config)
}

func setDefaults() {
	viper.SetDefault("log.dir", "")
	viper.SetDefault("elasticsearch.url", "")
	viper.SetDefault("elasticsearch.index", "proxy-audit-logs")
	viper.SetDefault("demo.wait", "11s")
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
