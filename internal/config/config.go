// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging.
type App struct {
	Name        string `yaml:"name" default:"cryptoagents"`
	Env         string `yaml:"env" default:"dev"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat   string `yaml:"log_format" default:"json" validate:"oneof=json console"`
}

// Market selects the ticker provider and the tracked universe.
type Market struct {
	Provider      string        `yaml:"provider" default:"bithumb" validate:"oneof=stub bithumb"`
	BaseURL       string        `yaml:"base_url" default:"https://api.bithumb.com" validate:"required,url"`
	QuoteCurrency string        `yaml:"quote_currency" default:"KRW" validate:"required,alpha"`
	Symbols       []string      `yaml:"symbols" default:"[\"BTC\",\"ETH\",\"XRP\",\"ADA\",\"SOL\"]" validate:"dive,required"`
	Timeout       time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
	Retries       int           `yaml:"retries" default:"2" validate:"gte=0,lte=10"`
}

// NewsSource is one RSS feed.
type NewsSource struct {
	Name     string `yaml:"name" validate:"required"`
	URL      string `yaml:"url" validate:"required,url"`
	MaxItems int    `yaml:"max_items" validate:"gte=0"`
}

// News configures the headline collector.
type News struct {
	Enabled     bool                `yaml:"enabled" default:"true"`
	Sources     []NewsSource        `yaml:"sources" validate:"dive"`
	MaxArticles int                 `yaml:"max_articles" default:"30" validate:"gte=0"`
	Retention   int                 `yaml:"retention" default:"200" validate:"gte=0"`
	Timeout     time.Duration       `yaml:"timeout" default:"10s" validate:"gt=0"`
	Aliases     map[string][]string `yaml:"aliases"`
}

// OpenAI configures the remote sentiment scorer.
type OpenAI struct {
	BaseURL     string        `yaml:"base_url" default:"https://api.openai.com/v1" validate:"required,url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model" default:"gpt-4o-mini" validate:"required"`
	Temperature float64       `yaml:"temperature" default:"0.2" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
}

// Sentiment selects the article scorer.
type Sentiment struct {
	Provider         string   `yaml:"provider" default:"rule_based" validate:"oneof=rule_based openai"`
	OpenAI           OpenAI   `yaml:"openai"`
	PositiveKeywords []string `yaml:"positive_keywords"`
	NegativeKeywords []string `yaml:"negative_keywords"`
}

// StrategyParams groups tunable knobs for a strategy implementation.
type StrategyParams struct {
	ExpertBuyScore      float64 `yaml:"expert_buy_score" default:"0.35" validate:"gte=0"`
	ExpertSellScore     float64 `yaml:"expert_sell_score" default:"0.35" validate:"gte=0"`
	SentimentBuy        float64 `yaml:"sentiment_buy_threshold" default:"0.25" validate:"gte=0,lte=1"`
	SentimentSell       float64 `yaml:"sentiment_sell_threshold" default:"0.25" validate:"gte=0,lte=1"`
	PriceBuy            float64 `yaml:"price_buy_threshold" default:"1.0"`
	PriceSell           float64 `yaml:"price_sell_threshold" default:"-1.0"`
	BreakoutMargin      float64 `yaml:"breakout_margin" default:"0.01" validate:"gte=0,lt=1"`
	MeanReversionMargin float64 `yaml:"mean_reversion_margin" default:"0.02" validate:"gte=0"`
	MomentumScale       float64 `yaml:"momentum_scale" default:"5" validate:"gt=0"`
	VolumeThreshold     float64 `yaml:"volume_threshold" default:"1000" validate:"gte=0"`
	VolatilityThreshold float64 `yaml:"volatility_threshold" default:"0.12" validate:"gte=0"`
}

// Ranking enables the extended ranking terms.
type Ranking struct {
	VolumeWeight    float64       `yaml:"volume_weight" validate:"gte=0"`
	ExposurePenalty bool          `yaml:"exposure_penalty"`
	DecayHalfLife   time.Duration `yaml:"decay_half_life" validate:"gte=0"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode      string         `yaml:"mode" default:"expert" validate:"oneof=expert basic"`
	MaxTrades int            `yaml:"max_trades" default:"3" validate:"gte=0"`
	Params    StrategyParams `yaml:"params"`
	Ranking   Ranking        `yaml:"ranking"`
}

// Risk encodes the exit thresholds and guard-rails for how much size a trade may take on.
type Risk struct {
	StopLossPct         float64 `yaml:"stop_loss_pct" default:"5" validate:"gte=0"`
	TakeProfitPct       float64 `yaml:"take_profit_pct" default:"8" validate:"gte=0"`
	MinConfidence       float64 `yaml:"min_confidence" default:"0.35" validate:"gte=0,lte=1"`
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade" validate:"gte=0"`
}

// Paper captures paper-trading account settings such as starting cash and sizing fractions.
type Paper struct {
	InitialCash           float64 `yaml:"initial_cash" default:"1000000" validate:"gte=0"`
	TradeFraction         float64 `yaml:"trade_fraction" default:"0.2" validate:"gte=0,lte=1"`
	MinCashReserve        float64 `yaml:"min_cash_reserve" default:"0.1" validate:"gte=0,lte=1"`
	MinTradeValue         float64 `yaml:"min_trade_value" default:"10000" validate:"gte=0"`
	MaxPositionAllocation float64 `yaml:"max_position_allocation" default:"0.35" validate:"gte=0,lte=1"`
	RebalanceBuffer       float64 `yaml:"rebalance_buffer" default:"0.1" validate:"gte=0"`
	FillsPath             string  `yaml:"fills_path"`
}

// Monitor configures the dashboard API.
type Monitor struct {
	Addr            string        `yaml:"addr" default:":8080" validate:"required"`
	RefreshInterval time.Duration `yaml:"refresh_interval" default:"120s" validate:"gt=0"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Market    Market    `yaml:"market"`
	News      News      `yaml:"news"`
	Sentiment Sentiment `yaml:"sentiment"`
	Strategy  Strategy  `yaml:"strategy"`
	Risk      Risk      `yaml:"risk"`
	Paper     Paper     `yaml:"paper"`
	Monitor   Monitor   `yaml:"monitor"`
}

var validate = validator.New()

// DefaultNewsSources are the stock crypto feeds.
func DefaultNewsSources() []NewsSource {
	return []NewsSource{
		{Name: "CoinDesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/?outputType=xml", MaxItems: 20},
		{Name: "CoinTelegraph", URL: "https://cointelegraph.com/rss", MaxItems: 20},
		{Name: "GoogleNews", URL: "https://news.google.com/rss/search?q=cryptocurrency+OR+bitcoin+OR+ethereum&hl=en-US&gl=US&ceid=US:en", MaxItems: 20},
	}
}

// Default returns a Config populated from struct defaults.
func Default() *Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.News.Sources = DefaultNewsSources()
	return &cfg
}

// Load reads a YAML file from disk and hydrates a Config struct. Defaults are applied first so
// keys present in the file, including explicit zeros, win.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads envFile when it exists, reads path (or the defaults when path is empty) and
// applies environment overrides before validating.
func LoadWithEnv(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = read(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.normalize()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides selected keys from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("OPENAI_API_KEY")); v != "" {
		c.Sentiment.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(getenv("TRACKED_SYMBOLS")); v != "" {
		c.Market.Symbols = SplitSymbols(v)
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		c.App.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("STRATEGY_MODE")); v != "" {
		c.Strategy.Mode = strings.ToLower(v)
	}
}

// SplitSymbols parses a comma separated symbol list into trimmed uppercase entries.
func SplitSymbols(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) normalize() {
	for i, sym := range c.Market.Symbols {
		c.Market.Symbols[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
	c.Market.QuoteCurrency = strings.ToUpper(strings.TrimSpace(c.Market.QuoteCurrency))
	c.Strategy.Mode = strings.ToLower(strings.TrimSpace(c.Strategy.Mode))
	c.Market.Provider = strings.ToLower(strings.TrimSpace(c.Market.Provider))
	c.Sentiment.Provider = strings.ToLower(strings.TrimSpace(c.Sentiment.Provider))
}

// Validate checks struct constraints and cross-field rules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Sentiment.Provider == "openai" && cfg.Sentiment.OpenAI.APIKey == "" {
		return fmt.Errorf("invalid config: sentiment.openai.api_key is required for the openai provider (or set OPENAI_API_KEY)")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
