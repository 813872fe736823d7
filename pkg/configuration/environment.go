package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fieldline/importhub/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files from the working directory, falling back
// to the nearest ancestor directory containing go.mod so tests run from
// package directories still pick up the repo-root .env files.
func LoadEnv(envFiles []string) (int, error) {
	roots := []string{"."}
	if root, ok := findModuleRoot(); ok {
		roots = append(roots, root)
	}

	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		for _, root := range roots {
			path := filepath.Join(root, file)
			if st, err := os.Stat(path); err == nil && !st.IsDir() {
				existing = append(existing, path)
				break
			}
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func findModuleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if st, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !st.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"importhub"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// BlobOptions selects the backing byte store for uploaded import files.
// With an empty endpoint the local directory store is used instead of MinIO.
type BlobOptions struct {
	Endpoint  string `env:"BLOB_MINIO_ENDPOINT"`
	AccessKey string `env:"BLOB_MINIO_ACCESS_KEY"`
	SecretKey string `env:"BLOB_MINIO_SECRET_KEY"`
	UseSSL    bool   `env:"BLOB_MINIO_USE_SSL" envDefault:"false"`
	Bucket    string `env:"BLOB_BUCKET" envDefault:"import-files"`
	LocalDir  string `env:"BLOB_LOCAL_DIR" envDefault:"./blobdata"`
}

func (b *BlobOptions) UseMinio() bool {
	return b.Endpoint != "" && b.AccessKey != "" && b.SecretKey != ""
}

type ImportOptions struct {
	BatchSize int `env:"IMPORT_BATCH_SIZE" envDefault:"500"`
	// FastBatchSize applies when no business-rule hooks are configured and
	// batches carry no external-call cost.
	FastBatchSize int `env:"IMPORT_FAST_BATCH_SIZE" envDefault:"2500"`
	Parallelism   int `env:"IMPORT_PARALLELISM" envDefault:"16"`
	ErrorBudget   int `env:"IMPORT_ERROR_BUDGET" envDefault:"100"`
}

func (o *ImportOptions) Validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("import BatchSize must be positive, got %d", o.BatchSize)
	}
	if o.FastBatchSize < o.BatchSize {
		return fmt.Errorf("import FastBatchSize must be >= BatchSize, got %d < %d", o.FastBatchSize, o.BatchSize)
	}
	if o.Parallelism <= 0 {
		return fmt.Errorf("import Parallelism must be positive, got %d", o.Parallelism)
	}
	if o.ErrorBudget <= 0 {
		return fmt.Errorf("import ErrorBudget must be positive, got %d", o.ErrorBudget)
	}
	return nil
}

// HooksOptions configures the external business-rule simulation chain.
// URLs is a comma-separated ordered list; empty disables simulation.
type HooksOptions struct {
	URLs    string        `env:"HOOK_URLS" envDefault:""`
	Timeout time.Duration `env:"HOOK_TIMEOUT" envDefault:"10s"`
}

func (h *HooksOptions) URLList() []string {
	if strings.TrimSpace(h.URLs) == "" {
		return nil
	}
	parts := strings.Split(h.URLs, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	Blob       BlobOptions
	Import     ImportOptions
	Hooks      HooksOptions
	Prometheus PrometheusOptions

	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`

	logCloser io.Closer
	logger    *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}

	closer, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logCloser = closer
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

func (c *Configuration) Unload() {
	if c.logCloser != nil {
		_ = c.logCloser.Close()
		c.logCloser = nil
	}
}
