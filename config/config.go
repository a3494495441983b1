package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// MinProductionSecretLength is the shortest token secret accepted in production.
const MinProductionSecretLength = 32

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		ExternalAPI struct {
			Port      string `mapstructure:"port"`
			CertFile  string `mapstructure:"certFile"`
			KeyFile   string `mapstructure:"keyFile"`
			EnableTLS bool   `mapstructure:"enableTLS"`
		} `mapstructure:"externalAPI"`
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
		Redis struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	JWT struct {
		Issuer              string        `mapstructure:"issuer"`
		SessionSecret       string        `mapstructure:"sessionSecret"`
		EmailVerifySecret   string        `mapstructure:"emailVerifySecret"`
		PasswordResetSecret string        `mapstructure:"passwordResetSecret"`
		SessionTTL          time.Duration `mapstructure:"sessionTTL"`
		EmailVerifyTTL      time.Duration `mapstructure:"emailVerifyTTL"`
		PasswordResetTTL    time.Duration `mapstructure:"passwordResetTTL"`
	} `mapstructure:"jwt"`
	Password struct {
		Cost          int `mapstructure:"cost"`
		MaxConcurrent int `mapstructure:"maxConcurrent"`
	} `mapstructure:"password"`
	Mail struct {
		Driver     string        `mapstructure:"driver"` // smtp | log
		Host       string        `mapstructure:"host"`
		Port       int           `mapstructure:"port"`
		Username   string        `mapstructure:"username"`
		Password   string        `mapstructure:"password"`
		From       string        `mapstructure:"from"`
		Timeout    time.Duration `mapstructure:"timeout"`
		AppBaseURL string        `mapstructure:"appBaseURL"`
	} `mapstructure:"mail"`
	Media struct {
		Driver        string `mapstructure:"driver"` // s3 | disabled
		Bucket        string `mapstructure:"bucket"`
		Region        string `mapstructure:"region"`
		Endpoint      string `mapstructure:"endpoint"`
		AccessKey     string `mapstructure:"accessKey"`
		SecretKey     string `mapstructure:"secretKey"`
		PublicBaseURL string `mapstructure:"publicBaseURL"`
		PathStyle     bool   `mapstructure:"pathStyle"`
		MaxBytes      int64  `mapstructure:"maxBytes"`
	} `mapstructure:"media"`
	Cache struct {
		Driver          string        `mapstructure:"driver"` // memory | redis
		TTL             time.Duration `mapstructure:"ttl"`
		CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
		Key             string        `mapstructure:"key"`
	} `mapstructure:"cache"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
	} `mapstructure:"observability"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// JWT_SESSIONSECRET overrides jwt.sessionSecret and so on
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.JWT.SessionSecret == "" || c.JWT.EmailVerifySecret == "" || c.JWT.PasswordResetSecret == "" {
		return fmt.Errorf("jwt secrets for session, email verification and password reset must all be set")
	}
	if c.Mode == "production" {
		if err := c.validateProductionSecrets(); err != nil {
			return err
		}
	}
	switch c.Mail.Driver {
	case "", "log", "smtp":
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}
	switch c.Media.Driver {
	case "", "disabled", "s3":
	default:
		return fmt.Errorf("unknown media driver %q", c.Media.Driver)
	}
	switch c.Cache.Driver {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	return nil
}

func (c *Config) validateProductionSecrets() error {
	secrets := []struct{ key, value string }{
		{"jwt.sessionSecret", c.JWT.SessionSecret},
		{"jwt.emailVerifySecret", c.JWT.EmailVerifySecret},
		{"jwt.passwordResetSecret", c.JWT.PasswordResetSecret},
	}
	shipped, err := shippedSecrets()
	if err != nil {
		return err
	}
	for _, s := range secrets {
		if _, ok := shipped[s.value]; ok {
			return fmt.Errorf("%s still holds the bundled development value; set it through the environment", s.key)
		}
		if len(s.value) < MinProductionSecretLength {
			return fmt.Errorf("%s must be at least %d bytes in production", s.key, MinProductionSecretLength)
		}
	}
	if c.JWT.SessionSecret == c.JWT.EmailVerifySecret ||
		c.JWT.SessionSecret == c.JWT.PasswordResetSecret ||
		c.JWT.EmailVerifySecret == c.JWT.PasswordResetSecret {
		return fmt.Errorf("jwt secrets must differ per purpose in production")
	}
	return nil
}

// shippedSecrets returns the token secrets bundled in the embedded config.
func shippedSecrets() (map[string]struct{}, error) {
	v := viper.New()
	v.SetConfigType("yml")
	if err := v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
		return nil, fmt.Errorf("failed to read embedded config: %w", err)
	}
	out := make(map[string]struct{}, 3)
	for _, key := range []string{"jwt.sessionSecret", "jwt.emailVerifySecret", "jwt.passwordResetSecret"} {
		if s := v.GetString(key); s != "" {
			out[s] = struct{}{}
		}
	}
	return out, nil
}
