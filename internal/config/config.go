package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/keyformat"
)

// Log level constants
const (
	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// Log type constants
const (
	LogTypeConsole = "console"
	LogTypeFile    = "file"
)

// Config holds the rsakit CLI configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`

	// Key generation defaults
	Key KeyConfig `mapstructure:"key"`

	// Padding and hash defaults for encrypt, decrypt, sign and verify
	Engine EngineConfig `mapstructure:"engine"`

	// Output defaults for written keys
	Format FormatConfig `mapstructure:"format"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warning error"`
	Type       string `mapstructure:"type" validate:"required,oneof=console file"`
	FilePath   string `mapstructure:"file_path" validate:"required_if=Type file"`
	MaxSize    int    `mapstructure:"max_size" validate:"min=0,max=100"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0,max=10"`
	MaxAge     int    `mapstructure:"max_age" validate:"min=0,max=365"` // days
}

// KeyConfig holds key generation settings
type KeyConfig struct {
	Bits          int           `mapstructure:"bits" validate:"min=16,max=16384"`
	Exponent      int           `mapstructure:"exponent" validate:"min=3"`
	Primes        int           `mapstructure:"primes" validate:"min=0,max=64"` // 0 picks a count from the size
	SmallestPrime int           `mapstructure:"smallest_prime" validate:"min=0"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"min=0"` // 0 means no limit
}

// EngineConfig holds padding settings
type EngineConfig struct {
	Encryption string `mapstructure:"encryption" validate:"oneof=oaep pkcs1 none"`
	Signature  string `mapstructure:"signature" validate:"oneof=pss pkcs1"`
	Hash       string `mapstructure:"hash" validate:"hashname"`
	MGFHash    string `mapstructure:"mgf_hash" validate:"hashname"`
	SaltLength int    `mapstructure:"salt_length" validate:"min=-1"`
	Label      string `mapstructure:"label"`
}

// FormatConfig holds serialization settings
type FormatConfig struct {
	Private       string `mapstructure:"private" validate:"oneof=pkcs1 pkcs8 openssh openssh-private putty xml sexpr"`
	Public        string `mapstructure:"public" validate:"oneof=pkcs1 pkcs8 openssh xml sexpr"`
	PEMCipher     string `mapstructure:"pem_cipher"`
	PKCS8Scheme   string `mapstructure:"pkcs8_scheme" validate:"omitempty,oneof=pbes2-aes256 pbes2-aes128 pbes2-des3 pbes1-md5-des pbes1-sha1-rc2"`
	Iterations    int    `mapstructure:"iterations" validate:"min=1"`
	OpenSSHCipher string `mapstructure:"openssh_cipher" validate:"omitempty,oneof=aes256-ctr aes128-ctr aes256-cbc"`
	BcryptRounds  int    `mapstructure:"bcrypt_rounds" validate:"min=1"`
	PuTTYVersion  int    `mapstructure:"putty_version" validate:"oneof=2 3"`
}

// Load reads configuration from configPath, or from rsakit.yaml in the usual places when
// configPath is empty. RSAKIT_* environment variables override both
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("rsakit")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.rsakit")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RSAKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.type", LogTypeConsole)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)

	v.SetDefault("key.bits", 2048)
	v.SetDefault("key.exponent", rsakit.DefaultExponent.Int64())
	v.SetDefault("key.primes", 0)
	v.SetDefault("key.smallest_prime", rsakit.DefaultSmallestPrime)
	v.SetDefault("key.timeout", "0s")

	v.SetDefault("engine.encryption", "oaep")
	v.SetDefault("engine.signature", "pss")
	v.SetDefault("engine.hash", "sha1")
	v.SetDefault("engine.mgf_hash", "sha1")
	v.SetDefault("engine.salt_length", 0)

	v.SetDefault("format.private", "pkcs1")
	v.SetDefault("format.public", "pkcs8")
	v.SetDefault("format.pem_cipher", "DES-EDE3-CBC")
	v.SetDefault("format.pkcs8_scheme", "pbes2-aes256")
	v.SetDefault("format.iterations", 2048)
	v.SetDefault("format.openssh_cipher", "aes256-ctr")
	v.SetDefault("format.bcrypt_rounds", 16)
	v.SetDefault("format.putty_version", 2)
}

func hashName(fl validator.FieldLevel) bool {
	_, err := rsakit.ParseHash(fl.Field().String())
	return err == nil
}

// Validate checks every field of the configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("hashname", hashName); err != nil {
		return fmt.Errorf("failed to register hash validation: %w", err)
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if c.Logging.Type == LogTypeFile && (c.Logging.MaxSize < 1 || c.Logging.MaxBackups < 1 || c.Logging.MaxAge < 1) {
		return fmt.Errorf("the file logger needs max_size, max_backups and max_age")
	}
	return nil
}

// GenerateOptions turns the key settings into rsakit.GenerateOptions
func (k KeyConfig) GenerateOptions() rsakit.GenerateOptions {
	return rsakit.GenerateOptions{
		Bits:          k.Bits,
		Exponent:      big.NewInt(int64(k.Exponent)),
		NumPrimes:     k.Primes,
		SmallestPrime: k.SmallestPrime,
		Timeout:       k.Timeout,
	}
}

// Options turns the engine settings into rsakit.Options
func (e EngineConfig) Options() (*rsakit.Options, error) {
	encryption, err := rsakit.ParseEncryptionMode(e.Encryption)
	if err != nil {
		return nil, err
	}
	signature, err := rsakit.ParseSignatureMode(e.Signature)
	if err != nil {
		return nil, err
	}
	hash, err := rsakit.ParseHash(e.Hash)
	if err != nil {
		return nil, err
	}
	mgfHash, err := rsakit.ParseHash(e.MGFHash)
	if err != nil {
		return nil, err
	}

	opts := &rsakit.Options{
		EncryptionMode: encryption,
		SignatureMode:  signature,
		Hash:           hash,
		MGFHash:        mgfHash,
		SaltLength:     e.SaltLength,
	}
	if e.Label != "" {
		opts.Label = []byte(e.Label)
	}
	return opts, nil
}

// Options turns the format settings into keyformat.Options for the given password
func (f FormatConfig) Options(password []byte) (*keyformat.Options, error) {
	scheme, err := keyformat.ParsePKCS8Scheme(f.PKCS8Scheme)
	if err != nil {
		return nil, err
	}
	return &keyformat.Options{
		Password:      password,
		PEMCipher:     f.PEMCipher,
		PKCS8Scheme:   scheme,
		Iterations:    f.Iterations,
		OpenSSHCipher: f.OpenSSHCipher,
		BcryptRounds:  f.BcryptRounds,
		PuTTYVersion:  f.PuTTYVersion,
	}, nil
}
