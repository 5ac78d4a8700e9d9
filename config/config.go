package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir string `json:"project_dir"`
	DataDir    string `json:"data_dir"`
	DBPath     string `json:"db_path"`

	// Daily budget for backend calls. Cache hits are free.
	DailyCallCap     int     `json:"daily_call_cap"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`

	// Consensus cache freshness window, seconds.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`

	// Per-backend call deadline and the outer deadline for a whole analysis.
	AgentTimeoutSeconds   int `json:"agent_timeout_seconds"`
	OverallTimeoutSeconds int `json:"overall_timeout_seconds"`
	MinAgentResponses     int `json:"min_agent_responses"`

	// Thesis challenge policy. Thresholds are policy knobs, not constants.
	HoldAccuracyThreshold float64 `json:"hold_accuracy_threshold"`
	SellAccuracyThreshold float64 `json:"sell_accuracy_threshold"`
	ImpliedMoveScalePct   float64 `json:"implied_move_scale_pct"`
	HoldDivergencePct     float64 `json:"hold_divergence_pct"`

	// Learning extractor policy.
	InsightMinSamples  int `json:"insight_min_samples"`
	InsightWindowDays  int `json:"insight_window_days"`
	InsightMaxInjected int `json:"insight_max_injected"`

	// Reasoning backend credentials. A backend with no key is simply not
	// configured; it is never mocked.
	OpenAIAPIKey   string `json:"openai_api_key"`
	OpenAIBaseURL  string `json:"openai_base_url"`
	OpenAIModel    string `json:"openai_model"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`
	DeepSeekModel  string `json:"deepseek_model"`
	RestBackendURL string `json:"rest_backend_url"`
	RestBackendKey string `json:"rest_backend_key"`
	RestModel      string `json:"rest_model"`

	// Longport API configuration (live position data).
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	Debug            bool `json:"debug"`
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg.loadFromEnv()

	return cfg
}

func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir: root,
		DataDir:    filepath.Join(root, "data"),
		DBPath:     filepath.Join(root, "data", "quorum.db"),

		DailyCallCap:     50,
		EstimatedCostUSD: 0.02,

		CacheTTLSeconds: 1800,

		AgentTimeoutSeconds:   15,
		OverallTimeoutSeconds: 20,
		MinAgentResponses:     2,

		HoldAccuracyThreshold: 0.6,
		SellAccuracyThreshold: 0.3,
		ImpliedMoveScalePct:   20.0,
		HoldDivergencePct:     10.0,

		InsightMinSamples:  5,
		InsightWindowDays:  30,
		InsightMaxInjected: 5,

		OpenAIBaseURL: "https://api.openai.com/v1",
		OpenAIModel:   "gpt-4o-mini",
		DeepSeekModel: "deepseek-chat",
		RestModel:     "gpt-4o-mini",

		Debug:            false,
		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("QUORUM_DB_PATH"); val != "" {
		c.DBPath = val
	}

	if val := os.Getenv("DAILY_CALL_CAP"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.DailyCallCap = v
		}
	}
	if val := os.Getenv("ESTIMATED_COST_USD"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.EstimatedCostUSD = v
		}
	}
	if val := os.Getenv("CACHE_TTL_SECONDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.CacheTTLSeconds = v
		}
	}
	if val := os.Getenv("AGENT_TIMEOUT_SECONDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AgentTimeoutSeconds = v
		}
	}
	if val := os.Getenv("OVERALL_TIMEOUT_SECONDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.OverallTimeoutSeconds = v
		}
	}
	if val := os.Getenv("MIN_AGENT_RESPONSES"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MinAgentResponses = v
		}
	}

	if val := os.Getenv("HOLD_ACCURACY_THRESHOLD"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.HoldAccuracyThreshold = v
		}
	}
	if val := os.Getenv("SELL_ACCURACY_THRESHOLD"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.SellAccuracyThreshold = v
		}
	}
	if val := os.Getenv("IMPLIED_MOVE_SCALE_PCT"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.ImpliedMoveScalePct = v
		}
	}
	if val := os.Getenv("HOLD_DIVERGENCE_PCT"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.HoldDivergencePct = v
		}
	}

	if val := os.Getenv("INSIGHT_MIN_SAMPLES"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.InsightMinSamples = v
		}
	}
	if val := os.Getenv("INSIGHT_WINDOW_DAYS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.InsightWindowDays = v
		}
	}
	if val := os.Getenv("INSIGHT_MAX_INJECTED"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.InsightMaxInjected = v
		}
	}

	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("OPENAI_BASE_URL"); val != "" {
		c.OpenAIBaseURL = val
	}
	if val := os.Getenv("OPENAI_MODEL"); val != "" {
		c.OpenAIModel = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_MODEL"); val != "" {
		c.DeepSeekModel = val
	}
	if val := os.Getenv("REST_BACKEND_URL"); val != "" {
		c.RestBackendURL = val
	}
	if val := os.Getenv("REST_BACKEND_KEY"); val != "" {
		c.RestBackendKey = val
	}
	if val := os.Getenv("REST_MODEL"); val != "" {
		c.RestModel = val
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("QUORUM_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}
}

func (c *Config) Validate() error {
	if c.DailyCallCap <= 0 {
		return fmt.Errorf("daily_call_cap must be positive, got %d", c.DailyCallCap)
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache_ttl_seconds must be positive, got %d", c.CacheTTLSeconds)
	}
	if c.AgentTimeoutSeconds <= 0 || c.OverallTimeoutSeconds <= 0 {
		return fmt.Errorf("agent and overall timeouts must be positive")
	}
	if c.MinAgentResponses < 2 {
		return fmt.Errorf("min_agent_responses must be at least 2, got %d", c.MinAgentResponses)
	}
	if c.SellAccuracyThreshold < 0 || c.SellAccuracyThreshold > c.HoldAccuracyThreshold || c.HoldAccuracyThreshold > 1 {
		return fmt.Errorf("accuracy thresholds must satisfy 0 <= sell <= hold <= 1")
	}
	if c.InsightMinSamples < 1 {
		return fmt.Errorf("insight_min_samples must be at least 1, got %d", c.InsightMinSamples)
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.AgentTimeoutSeconds) * time.Second
}

func (c *Config) OverallTimeout() time.Duration {
	return time.Duration(c.OverallTimeoutSeconds) * time.Second
}

func (c *Config) InsightWindow() time.Duration {
	return time.Duration(c.InsightWindowDays) * 24 * time.Hour
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, filepath.Dir(c.DBPath)}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
