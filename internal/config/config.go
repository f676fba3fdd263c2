// Package config loads application configuration from config.yaml and
// AFFORD_* environment variables, and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend holding the snapshot and
// reference tables as well as the engine-owned afford schema.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// EngineConfig configures a scoring run.
type EngineConfig struct {
	// Policy selects the weighting strategy: "fixed" (configured
	// weights renormalized over present components) or "burden"
	// (weights proportional to each component's share of observed
	// burden). Exactly one is active per run.
	Policy  string        `yaml:"policy" mapstructure:"policy"`
	Weights WeightsConfig `yaml:"weights" mapstructure:"weights"`

	// Housing assumptions.
	DownPaymentPct         float64 `yaml:"down_payment_pct" mapstructure:"down_payment_pct"`
	TermMonths             int     `yaml:"term_months" mapstructure:"term_months"`
	DefaultMortgageRate    float64 `yaml:"default_mortgage_rate" mapstructure:"default_mortgage_rate"`
	DefaultPropertyTaxRate float64 `yaml:"default_property_tax_rate" mapstructure:"default_property_tax_rate"`

	// Cost-of-living basket household type (county cost_basket key).
	HouseholdType string `yaml:"household_type" mapstructure:"household_type"`

	// Share of after-income-tax income assumed spent on sales-taxable
	// goods.
	TaxableSpendShare float64 `yaml:"taxable_spend_share" mapstructure:"taxable_spend_share"`
}

// WeightsConfig holds the fixed-policy component weights. QOL is
// reserved for the quality-of-life component, which currently never
// produces data; its weight is renormalized away on every geography.
type WeightsConfig struct {
	Housing float64 `yaml:"housing" mapstructure:"housing"`
	COL     float64 `yaml:"col" mapstructure:"col"`
	Tax     float64 `yaml:"tax" mapstructure:"tax"`
	QOL     float64 `yaml:"qol" mapstructure:"qol"`
}

// ServerConfig configures the read-only rankings HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Policy names accepted by EngineConfig.Policy.
const (
	PolicyFixed  = "fixed"
	PolicyBurden = "burden"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AFFORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("engine.policy", PolicyFixed)
	v.SetDefault("engine.weights.housing", 0.40)
	v.SetDefault("engine.weights.col", 0.30)
	v.SetDefault("engine.weights.tax", 0.20)
	v.SetDefault("engine.weights.qol", 0.10)
	v.SetDefault("engine.down_payment_pct", 0.20)
	v.SetDefault("engine.term_months", 360)
	v.SetDefault("engine.default_mortgage_rate", 0.065)
	v.SetDefault("engine.default_property_tax_rate", 0.01)
	v.SetDefault("engine.household_type", "2_adults_0_kids")
	v.SetDefault("engine.taxable_spend_share", 0.30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that an engine configuration is internally consistent.
func (c EngineConfig) Validate() error {
	var errs []string

	if c.Policy != PolicyFixed && c.Policy != PolicyBurden {
		errs = append(errs, "policy must be \"fixed\" or \"burden\"")
	}
	for name, w := range map[string]float64{
		"weights.housing": c.Weights.Housing,
		"weights.col":     c.Weights.COL,
		"weights.tax":     c.Weights.Tax,
		"weights.qol":     c.Weights.QOL,
	} {
		if w < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}
	if c.Weights.Housing+c.Weights.COL+c.Weights.Tax <= 0 {
		errs = append(errs, "at least one of housing/col/tax weights must be > 0")
	}
	if c.DownPaymentPct < 0 || c.DownPaymentPct >= 1 {
		errs = append(errs, "down_payment_pct must be in [0, 1)")
	}
	if c.TermMonths <= 0 {
		errs = append(errs, "term_months must be > 0")
	}
	if c.DefaultMortgageRate < 0 || c.DefaultMortgageRate > 0.25 {
		errs = append(errs, "default_mortgage_rate must be a decimal rate in [0, 0.25]")
	}
	if c.DefaultPropertyTaxRate < 0 || c.DefaultPropertyTaxRate > 0.10 {
		errs = append(errs, "default_property_tax_rate must be a decimal rate in [0, 0.10]")
	}
	if c.HouseholdType == "" {
		errs = append(errs, "household_type must be set")
	}
	if c.TaxableSpendShare < 0 || c.TaxableSpendShare > 1 {
		errs = append(errs, "taxable_spend_share must be in [0, 1]")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: engine validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
