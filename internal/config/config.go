// Package config loads server settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Photo storage drivers.
const (
	PhotoDriverDB = "db"
	PhotoDriverS3 = "s3"
)

// Config holds everything the server needs at startup.
type Config struct {
	DBPath  string `env:"ENVANTER_DB" envDefault:"envanter.sqlite3"`
	Addr    string `env:"ENVANTER_ADDR" envDefault:":8080"`
	LogPath string `env:"ENVANTER_LOG"`

	// JWTSecret overrides the secret generated and stored in the database.
	JWTSecret  string `env:"ENVANTER_JWT_SECRET"`
	BcryptCost int    `env:"ENVANTER_BCRYPT_COST" envDefault:"12"`

	AdminFirstName string `env:"ENVANTER_ADMIN_FIRST_NAME" envDefault:"Admin"`
	AdminLastName  string `env:"ENVANTER_ADMIN_LAST_NAME" envDefault:"User"`

	PhotoDriver string `env:"ENVANTER_PHOTO_DRIVER" envDefault:"db"`
	PhotoMaxDim int    `env:"ENVANTER_PHOTO_MAX_DIM" envDefault:"1024"`
	S3          S3     `envPrefix:"ENVANTER_S3_"`

	Metrics bool `env:"ENVANTER_METRICS" envDefault:"true"`
}

// S3 configures the S3 photo backend. Endpoint and UsePathStyle are for
// S3-compatible servers such as MinIO.
type S3 struct {
	Bucket       string `env:"BUCKET"`
	Region       string `env:"REGION"`
	Endpoint     string `env:"ENDPOINT"`
	Prefix       string `env:"PREFIX" envDefault:"items/"`
	UsePathStyle bool   `env:"USE_PATH_STYLE"`
}

const usage = `Usage: envanter [flags]

Flags:
  -d, -db <path>          SQLite database path (default: envanter.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -first <name>           admin first name on first run (default: Admin)
  -last <name>            admin last name on first run (default: User)
  -photos <db|s3>         item photo storage (default: db)
  -no-metrics             do not serve /metrics
  -h, -help               show this help and exit

Every flag can also be set through ENVANTER_* environment variables or a
.env file in the working directory.
`

// Load reads envFile (if it exists) into the environment, parses the
// environment, then applies flags from args. It returns flag.ErrHelp when
// help was requested.
func Load(args []string, envFile string, out io.Writer) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.parseFlags(args, out); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parseFlags(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("envanter", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&c.DBPath, "db", c.DBPath, "")
	fs.StringVar(&c.DBPath, "d", c.DBPath, "")

	fs.StringVar(&c.Addr, "addr", c.Addr, "")
	fs.StringVar(&c.Addr, "a", c.Addr, "")

	fs.StringVar(&c.LogPath, "log", c.LogPath, "")
	fs.StringVar(&c.LogPath, "l", c.LogPath, "")

	fs.StringVar(&c.AdminFirstName, "first", c.AdminFirstName, "")
	fs.StringVar(&c.AdminLastName, "last", c.AdminLastName, "")
	fs.StringVar(&c.PhotoDriver, "photos", c.PhotoDriver, "")

	var noMetrics bool
	fs.BoolVar(&noMetrics, "no-metrics", false, "")

	fs.Usage = func() {
		fmt.Fprint(out, usage)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if noMetrics {
		c.Metrics = false
	}
	return nil
}

// Validate checks settings that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.AdminFirstName == "" || c.AdminLastName == "" {
		return fmt.Errorf("admin first and last name are required")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.PhotoMaxDim <= 0 {
		return fmt.Errorf("photo max dimension must be positive")
	}

	switch c.PhotoDriver {
	case PhotoDriverDB:
	case PhotoDriverS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("ENVANTER_S3_BUCKET is required for s3 photo storage")
		}
	default:
		return fmt.Errorf("unknown photo driver %q", c.PhotoDriver)
	}
	return nil
}
