package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all bot configuration
type Config struct {
	Wallet     WalletConfig     `mapstructure:"wallet"`
	RPC        RPCConfig        `mapstructure:"rpc"`
	Trading    TradingConfig    `mapstructure:"trading"`
	Fees       FeesConfig       `mapstructure:"fees"`
	Jupiter    JupiterConfig    `mapstructure:"jupiter"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Blockchain BlockchainConfig `mapstructure:"blockchain"`
	Storage    StorageConfig    `mapstructure:"storage"`
	TUI        TUIConfig        `mapstructure:"tui"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Sizing     SizingConfig     `mapstructure:"sizing"`
	Exit       ExitConfig       `mapstructure:"exit"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Tuner      TunerConfig      `mapstructure:"tuner"`
	AutoPause  AutoPauseConfig  `mapstructure:"auto_pause"`
}

type RiskConfig struct {
	MinScore               float64 `mapstructure:"min_score"`
	MinLiquidityQuote      float64 `mapstructure:"min_liquidity_quote"`
	MinPoolAgeSeconds      int64   `mapstructure:"min_pool_age_seconds"`
	MaxFreshnessSeconds    int64   `mapstructure:"max_freshness_seconds"`
	RequireMintRenounced   bool    `mapstructure:"require_mint_renounced"`
	RequireFreezeRenounced bool    `mapstructure:"require_freeze_renounced"`
	DailyCapQuote          float64 `mapstructure:"daily_cap_quote"`
	BirdeyeAPIKeyEnv       string  `mapstructure:"birdeye_api_key_env"`
	TokenSnifferAPIKeyEnv  string  `mapstructure:"tokensniffer_api_key_env"`
	RugDocEnabled          bool    `mapstructure:"rugdoc_enabled"`
}

type SizingConfig struct {
	TargetImpactBps       int     `mapstructure:"target_impact_bps"`
	MaxImpactBps          int     `mapstructure:"max_impact_bps"`
	MaxLiquidityPct       float64 `mapstructure:"max_liquidity_pct"`
	RoundTripHardLimitBps int     `mapstructure:"round_trip_hard_limit_bps"`
	MaxRoundTripBps       int     `mapstructure:"max_round_trip_bps"`
	MinBuyLamports        uint64  `mapstructure:"min_buy_lamports"`
}

type ExitConfig struct {
	TakeProfitPct          float64 `mapstructure:"take_profit_pct"`
	PartialTakeProfitAtPct float64 `mapstructure:"partial_take_profit_at_pct"`
	PartialTakeProfitPct   float64 `mapstructure:"partial_take_profit_pct"`
	StopLossPct            float64 `mapstructure:"stop_loss_pct"`
	TrailingStopPct        float64 `mapstructure:"trailing_stop_pct"`
	TrailingActivationPct  float64 `mapstructure:"trailing_activation_pct"`
	BreakevenArmPct        float64 `mapstructure:"breakeven_arm_pct"`
	BreakevenFeeBufferPct  float64 `mapstructure:"breakeven_fee_buffer_pct"`
	MaxHoldMinutes         int     `mapstructure:"max_hold_minutes"`
	RugDropPct             float64 `mapstructure:"rug_drop_pct"`
	PricePollSeconds       int     `mapstructure:"price_poll_seconds"`
}

type ClassifierConfig struct {
	SlotWindow           uint64  `mapstructure:"slot_window"`
	MinCoordinatedBuyers int     `mapstructure:"min_coordinated_buyers"`
	WhaleQuoteThreshold  float64 `mapstructure:"whale_quote_threshold"`
	KOLWallets           []string `mapstructure:"kol_wallets"`
}

type TunerConfig struct {
	BaseFeeLamports       uint64 `mapstructure:"base_fee_lamports"`
	MaxFeeLamports        uint64 `mapstructure:"max_fee_lamports"`
	RecentOutcomesWindow  int    `mapstructure:"recent_outcomes_window"`
	CongestionMultiplierCeiling float64 `mapstructure:"congestion_multiplier_ceiling"`
}

type AutoPauseConfig struct {
	FlagDir                      string  `mapstructure:"flag_dir"`
	ConsecutiveFailTrip          int     `mapstructure:"consecutive_fail_trip"`
	DrawdownPctTrip              float64 `mapstructure:"drawdown_pct_trip"`
	CooldownSeconds              int     `mapstructure:"cooldown_seconds"`
	MaxFailuresPerHour           int     `mapstructure:"max_failures_per_hour"`
	MinSOLBalanceLamports        uint64  `mapstructure:"min_sol_balance_lamports"`
	CriticalSOLBalanceLamports   uint64  `mapstructure:"critical_sol_balance_lamports"`
	FailurePauseDurationSeconds  int     `mapstructure:"failure_pause_duration_seconds"`
	BalanceCheckIntervalSeconds  int     `mapstructure:"balance_check_interval_seconds"`
	AutoResumeAfterSeconds       int     `mapstructure:"auto_resume_after_seconds"`
	RequireManualResumeOnCritical bool   `mapstructure:"require_manual_resume_on_critical"`
}

type WalletConfig struct {
	PrivateKeyEnv string `mapstructure:"private_key_env"`
	BaseMint      string `mapstructure:"base_mint"`
}

type RPCConfig struct {
	ShyftURL          string `mapstructure:"shyft_url"`
	ShyftAPIKeyEnv    string `mapstructure:"shyft_api_key_env"`
	FallbackURL       string `mapstructure:"fallback_url"`
	FallbackAPIKeyEnv string `mapstructure:"fallback_api_key_env"`
}

type TradingConfig struct {
	MinEntryPercent       float64 `mapstructure:"min_entry_percent"`
	TakeProfitMultiple    float64 `mapstructure:"take_profit_multiple"`
	MaxAllocPercent       float64 `mapstructure:"max_alloc_percent"`
	MaxOpenPositions      int     `mapstructure:"max_open_positions"`
	AutoTradingEnabled    bool    `mapstructure:"auto_trading_enabled"`
	
	// Partial Profit-Taking (sell X% at Y multiple)
	PartialProfitPercent  float64 `mapstructure:"partial_profit_percent"`  // e.g., 50 = sell 50%
	PartialProfitMultiple float64 `mapstructure:"partial_profit_multiple"` // e.g., 1.5 = at 1.5X
	
	// Time-Based Exit (auto-sell after X minutes)
	MaxHoldMinutes        int     `mapstructure:"max_hold_minutes"` // 0 = disabled

	// Simulation
	SimulationMode        bool    `mapstructure:"simulation_mode"`  // Enable for CLI test verification
}

type FeesConfig struct {
	StaticPriorityFeeSol float64 `mapstructure:"static_priority_fee_sol"`
	StaticGasFeeSol      float64 `mapstructure:"static_gas_fee_sol"`
}

type JupiterConfig struct {
	QuoteAPIURL    string `mapstructure:"quote_api_url"`
	SlippageBps    int    `mapstructure:"slippage_bps"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type TelegramConfig struct {
	ListenPort int    `mapstructure:"listen_port"`
	ListenHost string `mapstructure:"listen_host"`
}

type BlockchainConfig struct {
	BlockhashRefreshMs    int `mapstructure:"blockhash_refresh_ms"`
	BlockhashTTLSeconds   int `mapstructure:"blockhash_ttl_seconds"`
	BalanceRefreshSeconds int `mapstructure:"balance_refresh_seconds"`
}

type StorageConfig struct {
	SQLitePath        string `mapstructure:"sqlite_path"`
	SignalsBufferSize int    `mapstructure:"signals_buffer_size"`
}

type TUIConfig struct {
	RefreshRateMs int `mapstructure:"refresh_rate_ms"`
	LogLines      int `mapstructure:"log_lines"`
}

type WebSocketConfig struct {
	ShyftURL        string `mapstructure:"shyft_url"`
	ReconnectDelayMs int   `mapstructure:"reconnect_delay_ms"`
	PingIntervalMs   int   `mapstructure:"ping_interval_ms"`
}

// Manager handles config loading and hot-reload
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	viper    *viper.Viper
	onChange func(*Config)
}

// NewManager creates a new config manager
func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set Defaults (Hardening)
	v.SetDefault("blockchain.blockhash_refresh_ms", 100)
	v.SetDefault("blockchain.blockhash_ttl_seconds", 60)
	v.SetDefault("blockchain.balance_refresh_seconds", 5)
	v.SetDefault("jupiter.quote_api_url", "https://quote-api.jup.ag/v6/quote")
	v.SetDefault("jupiter.slippage_bps", 500) // 5%
	v.SetDefault("jupiter.timeout_seconds", 10)
	v.SetDefault("rpc.shyft_api_key_env", "SHYFT_API_KEY")
	v.SetDefault("rpc.fallback_api_key_env", "HELIUS_API_KEY")
	v.SetDefault("rpc.fallback_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("storage.sqlite_path", "./data/bot.db")
	v.SetDefault("storage.signals_buffer_size", 100)
	v.SetDefault("tui.refresh_rate_ms", 100)
	v.SetDefault("tui.log_lines", 100)
	v.SetDefault("wallet.private_key_env", "WALLET_PRIVATE_KEY")
	v.SetDefault("risk.min_pool_age_seconds", 120)
	v.SetDefault("risk.max_freshness_seconds", 900)
	v.SetDefault("risk.require_mint_renounced", true)
	v.SetDefault("risk.require_freeze_renounced", true)
	v.SetDefault("risk.birdeye_api_key_env", "BIRDEYE_API_KEY")
	v.SetDefault("risk.tokensniffer_api_key_env", "TOKENSNIFFER_API_KEY")
	v.SetDefault("sizing.target_impact_bps", 100)
	v.SetDefault("sizing.max_impact_bps", 500)
	v.SetDefault("sizing.max_liquidity_pct", 2.5)
	v.SetDefault("sizing.round_trip_hard_limit_bps", 1000)
	v.SetDefault("sizing.max_round_trip_bps", 300)
	v.SetDefault("exit.take_profit_pct", 75)
	v.SetDefault("exit.partial_take_profit_at_pct", 50)
	v.SetDefault("exit.partial_take_profit_pct", 50)
	v.SetDefault("exit.stop_loss_pct", 15)
	v.SetDefault("exit.trailing_stop_pct", 10)
	v.SetDefault("exit.trailing_activation_pct", 20)
	v.SetDefault("exit.breakeven_arm_pct", 5)
	v.SetDefault("exit.breakeven_fee_buffer_pct", 1)
	v.SetDefault("exit.max_hold_minutes", 60)
	v.SetDefault("exit.rug_drop_pct", 35)
	v.SetDefault("exit.price_poll_seconds", 5)
	v.SetDefault("classifier.slot_window", 2)
	v.SetDefault("classifier.min_coordinated_buyers", 3)
	v.SetDefault("classifier.whale_quote_threshold", 10)
	v.SetDefault("tuner.recent_outcomes_window", 20)
	v.SetDefault("tuner.congestion_multiplier_ceiling", 4.0)
	v.SetDefault("auto_pause.flag_dir", "./data/flags")
	v.SetDefault("auto_pause.consecutive_fail_trip", 3)
	v.SetDefault("auto_pause.drawdown_pct_trip", 20)
	v.SetDefault("auto_pause.cooldown_seconds", 300)
	v.SetDefault("auto_pause.max_failures_per_hour", 10)
	v.SetDefault("auto_pause.min_sol_balance_lamports", 50_000_000)
	v.SetDefault("auto_pause.critical_sol_balance_lamports", 10_000_000)
	v.SetDefault("auto_pause.failure_pause_duration_seconds", 300)
	v.SetDefault("auto_pause.balance_check_interval_seconds", 60)
	v.SetDefault("auto_pause.auto_resume_after_seconds", 1800)
	v.SetDefault("auto_pause.require_manual_resume_on_critical", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Manual fallback if unmarshal leaves zero values (double check)
	if cfg.Jupiter.QuoteAPIURL == "" { cfg.Jupiter.QuoteAPIURL = "https://quote-api.jup.ag/v6/quote" }
	if cfg.Storage.SQLitePath == "" { cfg.Storage.SQLitePath = "./data/bot.db" }

	m := &Manager{
		config: &cfg,
		viper:  v,
	}

	// Watch for config changes
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config file changed, reloading")
		m.reload()
	})

	return m, nil
}

// Get returns the current config (thread-safe)
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetTrading returns trading config (most frequently accessed)
func (m *Manager) GetTrading() TradingConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Trading
}

// GetRisk returns risk gate config (thread-safe)
func (m *Manager) GetRisk() RiskConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Risk
}

// GetSizing returns sizing engine config (thread-safe)
func (m *Manager) GetSizing() SizingConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Sizing
}

// GetExit returns position exit config (thread-safe)
func (m *Manager) GetExit() ExitConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Exit
}

// GetClassifier returns event classifier config (thread-safe)
func (m *Manager) GetClassifier() ClassifierConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Classifier
}

// GetTuner returns fee/congestion tuner config (thread-safe)
func (m *Manager) GetTuner() TunerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Tuner
}

// GetAutoPause returns auto-pause manager config (thread-safe)
func (m *Manager) GetAutoPause() AutoPauseConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.AutoPause
}

// SetOnChange registers a callback for config changes
func (m *Manager) SetOnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Update modifies config values and saves to file
func (m *Manager) Update(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Apply changes
	fn(m.config)

	// Update viper values
	m.viper.Set("trading.min_entry_percent", m.config.Trading.MinEntryPercent)
	m.viper.Set("trading.take_profit_multiple", m.config.Trading.TakeProfitMultiple)
	m.viper.Set("trading.max_alloc_percent", m.config.Trading.MaxAllocPercent)
	m.viper.Set("trading.max_open_positions", m.config.Trading.MaxOpenPositions)
	m.viper.Set("trading.auto_trading_enabled", m.config.Trading.AutoTradingEnabled)
	m.viper.Set("fees.static_priority_fee_sol", m.config.Fees.StaticPriorityFeeSol)

	// Write to file
	if err := m.viper.WriteConfig(); err != nil {
		return err
	}

	if m.onChange != nil {
		m.onChange(m.config)
	}

	return nil
}

func (m *Manager) reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal config on reload")
		return
	}

	m.config = &cfg
	if m.onChange != nil {
		m.onChange(&cfg)
	}
}

// GetPrivateKey loads private key from environment
func (m *Manager) GetPrivateKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Wallet.PrivateKeyEnv)
}

// GetShyftAPIKey loads Shyft API key from environment
func (m *Manager) GetShyftAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.RPC.ShyftAPIKeyEnv)
}

// GetFallbackAPIKey loads Fallback API key from environment
func (m *Manager) GetFallbackAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.RPC.FallbackAPIKeyEnv)
}

// GetShyftRPCURL returns the full Shyft RPC URL with API key injected
func (m *Manager) GetShyftRPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url := m.config.RPC.ShyftURL
	key := os.Getenv(m.config.RPC.ShyftAPIKeyEnv)
	if key == "" {
		return url
	}

	if strings.Contains(url, "?") {
		return url + "&api_key=" + key
	}
	return url + "?api_key=" + key
}

// GetFallbackRPCURL returns the full Fallback RPC URL with API key injected
func (m *Manager) GetFallbackRPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url := m.config.RPC.FallbackURL
	key := os.Getenv(m.config.RPC.FallbackAPIKeyEnv)
	if key == "" {
		return url
	}

	// Detect provider param style
	param := "api_key"
	if strings.Contains(url, "helius") {
		param = "api-key"
	}

	if strings.Contains(url, "?") {
		return url + "&" + param + "=" + key
	}
	return url + "?" + param + "=" + key
}

// GetShyftWSURL returns the full Shyft WebSocket URL with API key injected
func (m *Manager) GetShyftWSURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url := m.config.WebSocket.ShyftURL
	key := os.Getenv(m.config.RPC.ShyftAPIKeyEnv)
	if key == "" {
		return url
	}

	if strings.Contains(url, "?") {
		return url + "&api_key=" + key
	}
	return url + "?api_key=" + key
}

// GetBlockhashRefresh returns blockhash refresh interval as duration
func (m *Manager) GetBlockhashRefresh() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Blockchain.BlockhashRefreshMs) * time.Millisecond
}

// GetBalanceRefresh returns balance refresh interval as duration
func (m *Manager) GetBalanceRefresh() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Blockchain.BalanceRefreshSeconds) * time.Second
}
