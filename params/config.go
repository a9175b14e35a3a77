package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProfileSegment is one slice of the intraday volume curve: the fraction of the
// trading day it covers and the fraction of daily volume traded during it.
type ProfileSegment struct {
	TimeFraction   float64
	VolumeFraction float64
}

type Exchange struct {
	Assets        int     // assets created at startup
	Participants  int     // non-oracle participants created at startup
	StartCash     float64 // cash granted to every new participant
	StartHoldings float64 // holding of every asset granted to every new participant
}

type Oracle struct {
	// TicksPerDay is the number of discrete ticks in one trading day.
	// 75 ticks over a 6h30 session = one tick every 5 minutes.
	TicksPerDay int
	Breadth     int     // price levels across both sides of the generated book
	Depth       float64 // fraction of fully diluted supply resting in the book
	Supply      float64 // fully diluted supply per asset

	RiskFreeRate float64 // annualised
	Volatility   float64 // annualised
	Alpha        float64 // mean-reversion strength of the observed book price

	StartPrice float64
	Beta       float64
	// PriceFloor bounds the blended anchor from below. The contrarian blend can
	// go negative for large Alpha; the random walk must not start from there.
	PriceFloor float64

	VolumeProfile []ProfileSegment
	Seed          uint64
}

// Plan describes the execution algorithm run by cmd/simd.
type Plan struct {
	Algorithm   string  `json:"algorithm"` // "twap" or "vwap"
	Asset       int     `json:"asset"`
	Side        string  `json:"side"` // "buy" or "sell"
	Participant int     `json:"participant"`
	Ticks       int     `json:"ticks"`
	Quantity    float64 `json:"quantity"`
	Randomize   bool    `json:"randomize"`
	Lag         int     `json:"lag"`
	StartIndex  int     `json:"startIndex"`
}

type Node struct {
	APIAddr  string // empty disables the market-data API
	TapePath string // empty disables the pebble tape
	LogFile  string
	LogLevel string
	// TickInterval paces the simulation so API subscribers can follow it.
	// Zero runs as fast as possible.
	TickInterval time.Duration
}

type Config struct {
	Exchange Exchange
	Oracle   Oracle
	Plan     Plan
	Node     Node
}

// DefaultVolumeProfile is a U-shaped session: heavy open and close, quiet middle.
func DefaultVolumeProfile() []ProfileSegment {
	return []ProfileSegment{
		{TimeFraction: 0.05, VolumeFraction: 0.2},
		{TimeFraction: 0.05, VolumeFraction: 0.1},
		{TimeFraction: 0.8, VolumeFraction: 0.4},
		{TimeFraction: 0.05, VolumeFraction: 0.1},
		{TimeFraction: 0.05, VolumeFraction: 0.2},
	}
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			Assets:        1,
			Participants:  1,
			StartCash:     1000,
			StartHoldings: 10,
		},
		Oracle: Oracle{
			TicksPerDay:   75,
			Breadth:       100,
			Depth:         0.01,
			Supply:        10e6,
			RiskFreeRate:  0.03,
			Volatility:    0.16,
			Alpha:         5,
			StartPrice:    100,
			Beta:          1,
			PriceFloor:    0.01,
			VolumeProfile: DefaultVolumeProfile(),
			Seed:          1,
		},
		Plan: Plan{
			Algorithm:   "twap",
			Side:        "buy",
			Participant: 1,
			Ticks:       10,
			Quantity:    5,
			Lag:         1,
		},
		Node: Node{
			LogFile:  "data/simd.log",
			LogLevel: "info",
		},
	}
}

// Validate rejects parameter sets the oracle cannot generate a book from.
func (o Oracle) Validate() error {
	if o.TicksPerDay <= 0 {
		return fmt.Errorf("ticks per day must be positive: %d", o.TicksPerDay)
	}
	if o.Breadth < 2 {
		return fmt.Errorf("breadth must be at least 2: %d", o.Breadth)
	}
	if o.Depth < 0 || o.Supply < 0 {
		return fmt.Errorf("depth and supply cannot be negative")
	}
	if o.Volatility < 0 {
		return fmt.Errorf("volatility cannot be negative: %v", o.Volatility)
	}
	if o.RiskFreeRate <= -1 {
		return fmt.Errorf("risk free rate must exceed -100%%: %v", o.RiskFreeRate)
	}
	if o.StartPrice <= 0 {
		return fmt.Errorf("start price must be positive: %v", o.StartPrice)
	}
	if o.PriceFloor <= 0 {
		return fmt.Errorf("price floor must be positive: %v", o.PriceFloor)
	}
	return nil
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	// Exchange
	cfg.Exchange.Assets = getInt("SIM_ASSETS", cfg.Exchange.Assets)
	cfg.Exchange.Participants = getInt("SIM_PARTICIPANTS", cfg.Exchange.Participants)
	cfg.Exchange.StartCash = getFloat("SIM_START_CASH", cfg.Exchange.StartCash)
	cfg.Exchange.StartHoldings = getFloat("SIM_START_HOLDINGS", cfg.Exchange.StartHoldings)

	// Oracle
	cfg.Oracle.TicksPerDay = getInt("SIM_TICKS_PER_DAY", cfg.Oracle.TicksPerDay)
	cfg.Oracle.Breadth = getInt("SIM_BREADTH", cfg.Oracle.Breadth)
	cfg.Oracle.Depth = getFloat("SIM_DEPTH", cfg.Oracle.Depth)
	cfg.Oracle.Supply = getFloat("SIM_SUPPLY", cfg.Oracle.Supply)
	cfg.Oracle.RiskFreeRate = getFloat("SIM_RFR", cfg.Oracle.RiskFreeRate)
	cfg.Oracle.Volatility = getFloat("SIM_VOL", cfg.Oracle.Volatility)
	cfg.Oracle.Alpha = getFloat("SIM_ALPHA", cfg.Oracle.Alpha)
	cfg.Oracle.StartPrice = getFloat("SIM_START_PRICE", cfg.Oracle.StartPrice)
	cfg.Oracle.Beta = getFloat("SIM_BETA", cfg.Oracle.Beta)
	cfg.Oracle.PriceFloor = getFloat("SIM_PRICE_FLOOR", cfg.Oracle.PriceFloor)
	if seed := os.Getenv("SIM_SEED"); seed != "" {
		if v, err := strconv.ParseUint(seed, 10, 64); err == nil {
			cfg.Oracle.Seed = v
		}
	}
	if profile := os.Getenv("SIM_VOL_PROFILE"); profile != "" {
		if segs, err := ParseVolumeProfile(profile); err == nil {
			cfg.Oracle.VolumeProfile = segs
		}
	}

	// Plan
	cfg.Plan.Algorithm = strings.ToLower(getEnv("ALGO", cfg.Plan.Algorithm))
	cfg.Plan.Side = strings.ToLower(getEnv("ALGO_SIDE", cfg.Plan.Side))
	cfg.Plan.Asset = getInt("ALGO_ASSET", cfg.Plan.Asset)
	cfg.Plan.Participant = getInt("ALGO_PARTICIPANT", cfg.Plan.Participant)
	cfg.Plan.Ticks = getInt("ALGO_TICKS", cfg.Plan.Ticks)
	cfg.Plan.Quantity = getFloat("ALGO_QTY", cfg.Plan.Quantity)
	cfg.Plan.Lag = getInt("ALGO_LAG", cfg.Plan.Lag)
	cfg.Plan.StartIndex = getInt("ALGO_START_INDEX", cfg.Plan.StartIndex)
	if r := os.Getenv("ALGO_RANDOM"); r != "" {
		cfg.Plan.Randomize = r == "true"
	}

	// Node
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.TapePath = getEnv("TAPE_PATH", cfg.Node.TapePath)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	if ms := getInt("TICK_INTERVAL_MS", 0); ms > 0 {
		cfg.Node.TickInterval = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// ParseVolumeProfile parses "time:volume" pairs separated by commas,
// e.g. "0.05:0.2,0.9:0.6,0.05:0.2".
func ParseVolumeProfile(s string) ([]ProfileSegment, error) {
	var segs []ProfileSegment
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tv := strings.SplitN(part, ":", 2)
		if len(tv) != 2 {
			return nil, fmt.Errorf("bad profile segment %q: want time:volume", part)
		}
		t, err := strconv.ParseFloat(tv[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad time fraction in %q: %w", part, err)
		}
		v, err := strconv.ParseFloat(tv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad volume fraction in %q: %w", part, err)
		}
		if t < 0 || v < 0 {
			return nil, fmt.Errorf("negative fraction in %q", part)
		}
		segs = append(segs, ProfileSegment{TimeFraction: t, VolumeFraction: v})
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty volume profile")
	}
	return segs, nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
