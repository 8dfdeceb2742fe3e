package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	// BackendConfig points at the remote drafts endpoint.
	BackendConfig struct {
		ScriptURL string
		Timeout   time.Duration
	}

	AssessorConfig struct {
		URL     string
		Timeout time.Duration
	}

	StoreConfig struct {
		Path         string
		SaveDebounce time.Duration
	}

	ArchiveConfig struct {
		Dir         string
		B2AccountID string
		B2Key       string
		B2Bucket    string
	}

	SessionConfig struct {
		SecretKey []byte
		TTL       time.Duration
	}

	Config struct {
		AppName          string
		Build            string
		Env              string
		Debug            bool
		TestMode         bool
		WorkDir          string
		RollbarToken     string
		SendgridAPIKey   string
		DefaultFromEmail string
		FetchConcurrency int

		Server   ServerConfig
		Database DatabaseConfig
		Backend  BackendConfig
		Assessor AssessorConfig
		Store    StoreConfig
		Archive  ArchiveConfig
		Session  SessionConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig loads the config for the current ENV (DEV (local; default), TEST, QA, PROD).
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	wd := workDir()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v := newViper(env)
	return &Config{
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         env == "TEST",
		WorkDir:          wd,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		FetchConcurrency: v.GetInt("fetchConcurrency"),
		Server: ServerConfig{
			Host:            v.GetString("server_host"),
			Port:            v.GetInt("server_port"),
			DebugHost:       v.GetString("server_debugHost"),
			ReadTimeout:     v.GetDuration("server_readTimeout"),
			WriteTimeout:    v.GetDuration("server_writeTimeout"),
			ShutdownTimeout: v.GetDuration("server_shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetInt("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_adminUser"),
			AdminPassword: v.GetString("db_adminPassword"),
			DisableTLS:    v.GetBool("db_disableTLS"),
			Path:          v.GetString("db_path"),
		},
		Backend: BackendConfig{
			ScriptURL: v.GetString("backend_scriptUrl"),
			Timeout:   v.GetDuration("backend_timeout"),
		},
		Assessor: AssessorConfig{
			URL:     v.GetString("assessor_url"),
			Timeout: v.GetDuration("assessor_timeout"),
		},
		Store: StoreConfig{
			Path:         v.GetString("store_path"),
			SaveDebounce: v.GetDuration("store_saveDebounce"),
		},
		Archive: ArchiveConfig{
			Dir:         v.GetString("archive_dir"),
			B2AccountID: v.GetString("archive_b2AccountId"),
			B2Key:       v.GetString("archive_b2Key"),
			B2Bucket:    v.GetString("archive_b2Bucket"),
		},
		Session: SessionConfig{
			SecretKey: []byte(v.GetString("session_secretKey")),
			TTL:       v.GetDuration("session_ttl"),
		},
	}
}

func newViper(env string) *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("appName", "Kazi")
	v.SetDefault("build", "develop")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("fetchConcurrency", 8)

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 5000)
	v.SetDefault("server_debugHost", "0.0.0.0:4000")
	v.SetDefault("server_readTimeout", 10*time.Second)
	v.SetDefault("server_writeTimeout", 60*time.Second)
	v.SetDefault("server_shutdownTimeout", 10*time.Second)

	v.SetDefault("db_engine", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "kazi")
	v.SetDefault("db_user", "kazi")
	v.SetDefault("db_disableTLS", true)
	v.SetDefault("db_path", "kazi.db")

	v.SetDefault("backend_timeout", 30*time.Second)
	v.SetDefault("assessor_url", "http://localhost:8000/assess")
	v.SetDefault("assessor_timeout", 2*time.Minute)

	v.SetDefault("store_path", "answers.bolt")
	v.SetDefault("store_saveDebounce", 500*time.Millisecond)

	v.SetDefault("archive_dir", "backups")

	v.SetDefault("session_secretKey", "k4z1-dev-5ecret-q9#v!t2m")
	v.SetDefault("session_ttl", 8*time.Hour)

	v.SetEnvPrefix(env)
	v.AutomaticEnv()
	return v
}

// workDir tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run.
func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

// NewTestConfig returns a debug Config backed by an in-memory sqlite DB.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Debug = true
	conf.Database.Engine = "sqlite"
	conf.Database.Path = ":memory:"
	conf.Store.SaveDebounce = 20 * time.Millisecond
	return conf
}
