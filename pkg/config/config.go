package config

import (
	"time"
)

type DB struct {
	Url string `envconfig:"URL"`
}

type Redis struct {
	URL string `envconfig:"URL" default:"redis://localhost:6379/0"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Auth struct {
	Jwt        *Jwt `envconfig:"JWT"`
	BcryptCost int  `envconfig:"BCRYPT_COST" default:"12"`
}

// Store selects the Durable Store backend.
type Store struct {
	Driver    string `envconfig:"DRIVER" default:"file"`
	Path      string `envconfig:"PATH" default:"data/ledger.json"`
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"ledger:"`
}

// Ledger holds the defaults applied to new accounts and loans. Amounts are
// decimal strings in currency units, rates are basis points per day.
type Ledger struct {
	DefaultBalance      string `envconfig:"DEFAULT_BALANCE" default:"1000"`
	InterestRateBps     int64  `envconfig:"INTEREST_RATE_BPS" default:"100"`
	InterestType        string `envconfig:"INTEREST_TYPE" default:"compound"`
	OverdraftEnabled    bool   `envconfig:"OVERDRAFT_ENABLED" default:"true"`
	MaxAutoLoan         string `envconfig:"MAX_AUTO_LOAN" default:"1000"`
	LoanInterestRateBps int64  `envconfig:"LOAN_INTEREST_RATE_BPS" default:"100"`
	LoanInterestType    string `envconfig:"LOAN_INTEREST_TYPE" default:"compound"`
}

type Scheduler struct {
	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"1s"`
	SaveInterval time.Duration `envconfig:"SAVE_INTERVAL" default:"30s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[ledger]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
	// ProxyHeader is honored only on requests from TrustedProxies.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
	ProxyHeader    string   `envconfig:"PROXY_HEADER" default:"X-Forwarded-For"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	Auth      *Auth      `envconfig:"AUTH"`
	Store     *Store     `envconfig:"STORE"`
	DB        *DB        `envconfig:"DATABASE"`
	Redis     *Redis     `envconfig:"REDIS"`
	Ledger    *Ledger    `envconfig:"LEDGER"`
	Scheduler *Scheduler `envconfig:"SCHEDULER"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
}
