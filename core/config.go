package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string // DEV (local; default), TEST, QA, PROD
		Build    string
		Debug    bool
		TestMode bool
		AppName  string

		RollbarToken     string
		SendgridApiKey   string
		FrontendBaseURL  string
		defaultFromEmail string
		ReportRecipients []string

		Server     ServerConfig
		Database   DatabaseConfig
		Attainment AttainmentConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string // postgres, bolt, dummy
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		BoltPath      string
	}

	// AttainmentConfig overrides the default attainment policy cut-offs.
	AttainmentConfig struct {
		POTarget            float64
		Level2Cutoff        float64
		Level3Cutoff        float64
		ComplianceThreshold float64
		CoverageAdvice      float64
		MappingLevelAdvice  float64
		BatchConcurrency    int
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail parses the configured sender address, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// NewConfig loads the app configuration from defaults, `config/.env.<env>` (if any) and the environment.
// Environment variables are prefixed with the current env, eg. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Outcomes")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "Outcomes <noreply@localhost>")
	v.SetDefault("reportRecipients", []string{})

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "outcomes")
	v.SetDefault("database.user", "outcomes")
	v.SetDefault("database.password", "outcomes")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.boltPath", filepath.Join("data", "outcomes.db"))

	v.SetDefault("attainment.poTarget", 60.0)
	v.SetDefault("attainment.level2Cutoff", 65.0)
	v.SetDefault("attainment.level3Cutoff", 80.0)
	v.SetDefault("attainment.complianceThreshold", 60.0)
	v.SetDefault("attainment.coverageAdvice", 80.0)
	v.SetDefault("attainment.mappingLevelAdvice", 2.0)
	v.SetDefault("attainment.batchConcurrency", 4)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		ReportRecipients: cleanList(v.GetStringSlice("reportRecipients")),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        CleanString(v.GetString("database.engine"), true /* lower */),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			BoltPath:      v.GetString("database.boltPath"),
		},
		Attainment: AttainmentConfig{
			POTarget:            v.GetFloat64("attainment.poTarget"),
			Level2Cutoff:        v.GetFloat64("attainment.level2Cutoff"),
			Level3Cutoff:        v.GetFloat64("attainment.level3Cutoff"),
			ComplianceThreshold: v.GetFloat64("attainment.complianceThreshold"),
			CoverageAdvice:      v.GetFloat64("attainment.coverageAdvice"),
			MappingLevelAdvice:  v.GetFloat64("attainment.mappingLevelAdvice"),
			BatchConcurrency:    v.GetInt("attainment.batchConcurrency"),
		},
	}
}

// configDir is `$CONFIG_DIR` or `./config`.
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(fmt.Errorf("config.os.Getwd: %v", err))
	}
	return filepath.Join(wd, "config")
}

func cleanList(list []string) []string {
	cleaned := make([]string, 0, len(list))
	for _, item := range list {
		for _, s := range strings.Split(item, ",") {
			if s = CleanString(s); s != "" {
				cleaned = append(cleaned, s)
			}
		}
	}
	return cleaned
}
