// Package config loads service settings from defaults, an optional YAML
// file, and PRAXIS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/praxisbackup/internal/backup"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "PRAXIS"
	configFileName = "praxisbackup"
	configFileType = "yaml"

	EnvProduction = "production"
)

const (
	keyPort            = "port"
	keyDBPath          = "db_path"
	keyLogLevel        = "log_level"
	keyLogFormat       = "log_format"
	keyEnvironment     = "environment"
	keyCronSecret      = "cron_secret"
	keyTimezone        = "timezone"
	keyRunInterval     = "run_interval"
	keyVerifyTimeout   = "verify_timeout"
	keyS3Endpoint      = "s3_endpoint"
	keyS3Bucket        = "s3_bucket"
	keyS3Region        = "s3_region"
	keyS3AccessKey     = "s3_access_key"
	keyS3SecretKey     = "s3_secret_key"
	keyS3PublicBaseURL = "s3_public_base_url"
	keyPostmarkToken   = "postmark_token"
	keyAlertFrom       = "alert_from"
	keyAlertTo         = "alert_to"
)

type Config struct {
	Port          string        `validate:"required,numeric"`
	DBPath        string        `validate:"required"`
	LogLevel      string        `validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat     string        `validate:"omitempty,oneof=text json"`
	Environment   string        `validate:"required,oneof=development test staging production"`
	CronSecret    string        `validate:"required_if=Environment production"`
	Timezone      string        `validate:"required"`
	RunInterval   time.Duration `validate:"gte=0"`
	VerifyTimeout time.Duration `validate:"gt=0"`
	S3            S3
	Alerts        Alerts

	// Location is resolved from Timezone by Validate.
	Location *time.Location `validate:"-"`
}

type S3 struct {
	Endpoint      string `validate:"omitempty,url"`
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string `validate:"omitempty,url"`
}

// Alerts configures failure reports sent through Postmark. Alerts are off
// unless PostmarkToken and To are both set.
type Alerts struct {
	PostmarkToken string
	From          string `validate:"required_with=PostmarkToken,omitempty,email"`
	To            string `validate:"omitempty,email"`
}

// Enabled reports whether failure reports should be sent.
func (a Alerts) Enabled() bool {
	return a.PostmarkToken != "" && a.To != ""
}

// Load reads configuration. path names an explicit YAML file; when empty,
// praxisbackup.yaml is looked up in the working directory and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyPort, "8080")
	v.SetDefault(keyDBPath, "praxis.db")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
	v.SetDefault(keyEnvironment, "development")
	v.SetDefault(keyCronSecret, "")
	v.SetDefault(keyTimezone, "UTC")
	v.SetDefault(keyRunInterval, time.Duration(0))
	v.SetDefault(keyVerifyTimeout, backup.DefaultVerifyTimeout)
	v.SetDefault(keyS3Endpoint, "")
	v.SetDefault(keyS3Bucket, "")
	v.SetDefault(keyS3Region, "us-east-1")
	v.SetDefault(keyS3AccessKey, "")
	v.SetDefault(keyS3SecretKey, "")
	v.SetDefault(keyS3PublicBaseURL, "")
	v.SetDefault(keyPostmarkToken, "")
	v.SetDefault(keyAlertFrom, "")
	v.SetDefault(keyAlertTo, "")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:          v.GetString(keyPort),
		DBPath:        v.GetString(keyDBPath),
		LogLevel:      strings.ToLower(v.GetString(keyLogLevel)),
		LogFormat:     strings.ToLower(v.GetString(keyLogFormat)),
		Environment:   strings.ToLower(v.GetString(keyEnvironment)),
		CronSecret:    v.GetString(keyCronSecret),
		Timezone:      v.GetString(keyTimezone),
		RunInterval:   v.GetDuration(keyRunInterval),
		VerifyTimeout: v.GetDuration(keyVerifyTimeout),
		S3: S3{
			Endpoint:      v.GetString(keyS3Endpoint),
			Bucket:        v.GetString(keyS3Bucket),
			Region:        v.GetString(keyS3Region),
			AccessKey:     v.GetString(keyS3AccessKey),
			SecretKey:     v.GetString(keyS3SecretKey),
			PublicBaseURL: v.GetString(keyS3PublicBaseURL),
		},
		Alerts: Alerts{
			PostmarkToken: v.GetString(keyPostmarkToken),
			From:          v.GetString(keyAlertFrom),
			To:            v.GetString(keyAlertTo),
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and resolves the timezone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.StructNamespace()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "required_if":
		return name + " is required in production"
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", name, fe.Param())
	case "email":
		return name + " must be an email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", name, fe.Tag())
	}
}

// IsProduction reports whether operator endpoints require the cron secret.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// S3Config converts the storage settings for the backup package.
func (c *Config) S3Config() backup.S3Config {
	return backup.S3Config{
		Endpoint:      c.S3.Endpoint,
		Bucket:        c.S3.Bucket,
		Region:        c.S3.Region,
		AccessKey:     c.S3.AccessKey,
		SecretKey:     c.S3.SecretKey,
		PublicBaseURL: c.S3.PublicBaseURL,
	}
}
