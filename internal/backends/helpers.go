package backends

import (
	"archivist/internal/backends/ddb"
	"archivist/internal/backends/memory"
	"archivist/internal/backends/sqlite"
	"archivist/internal/cache"
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	redisbackend "archivist/internal/backends/redis"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendDDB    = "ddb"
	BackendSQLite = "sqlite"
)

const AmazonRootCA1PEM = `-----BEGIN CERTIFICATE-----
MIIDQTCCAimgAwIBAgITBmyfz5m/jAo54vB4ikPmljZbyjANBgkqhkiG9w0BAQsF
ADA5MQswCQYDVQQGEwJVUzEPMA0GA1UEChMGQW1hem9uMRkwFwYDVQQDExBBbWF6
b24gUm9vdCBDQSAxMB4XDTE1MDUyNjAwMDAwMFoXDTM4MDExNzAwMDAwMFowOTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoTBkFtYXpvbjEZMBcGA1UEAxMQQW1hem9uIFJv
b3QgQ0EgMTCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBALJ4gHHKeNXj
ca9HgFB0fW7Y14h29Jlo91ghYPl0hAEvrAIthtOgQ3pOsqTQNroBvo3bSMgHFzZM
9O6II8c+6zf1tRn4SWiw3te5djgdYZ6k/oI2peVKVuRF4fn9tBb6dNqcmzU5L/qw
IFAGbHrQgLKm+a/sRxmPUDgH3KKHOVj4utWp+UhnMJbulHheb4mjUcAwhmahRWa6
VOujw5H5SNz/0egwLX0tdHA114gk957EWW67c4cX8jJGKLhD+rcdqsq08p8kDi1L
93FcXmn/6pUCyziKrlA4b9v7LWIbxcceVOF34GfID5yHI9Y/QCB/IIDEgEw+OyQm
jgSubJrIqg0CAwEAAaNCMEAwDwYDVR0TAQH/BAUwAwEB/zAOBgNVHQ8BAf8EBAMC
AYYwHQYDVR0OBBYEFIQYzIU07LwMlJQuCFmcx7IQTgoIMA0GCSqGSIb3DQEBCwUA
A4IBAQCY8jdaQZChGsV2USggNiMOruYou6r4lK5IpDB/G/wkjUu0yKGX9rbxenDI
U5PMCCjjmCXPI6T53iHTfIUJrU6adTrCC2qJeHZERxhlbI1Bjjt/msv0tadQ1wUs
N+gDS63pYaACbvXy8MWy7Vu33PqUXHeeE6V/Uq2V8viTO96LXFvKWlJbYK8U90vv
o/ufQJVtMVT8QtPHRh8jrdkPSHCa2XV4cdFyQzR1bldZwgJcJmApzyMZFo6IQ6XU
5MsI+yMRQ+hDKXJioaldXgjUkK642M4UwtBV8ob2xJNDd2ZhwLnoQdeXeGADbkpy
rqXRfboQnoZsG4q5WTP468SQvvG5
-----END CERTIFICATE-----`

// Config selects a backend per concern. Not every backend serves every concern:
//   - archives: memory, redis, ddb, sqlite
//   - activity (visit log): memory, redis, sqlite
//   - sites: memory, redis, ddb, sqlite
//   - ledger, lock: memory, redis, ddb
//   - cache (lazy tier): memory, redis
type Config struct {
	Archives string `env:"ARCHIVE_BACKEND" envDefault:"memory"`
	Activity string `env:"ACTIVITY_BACKEND" envDefault:"memory"`
	Sites    string `env:"SITE_BACKEND" envDefault:"memory"`
	Ledger   string `env:"LEDGER_BACKEND" envDefault:"memory"`
	Lock     string `env:"LOCK_BACKEND" envDefault:"memory"`
	Cache    string `env:"CACHE_BACKEND" envDefault:"memory"`

	Redis  RedisConfig `envPrefix:"REDIS_"`
	DDB    DDBConfig   `envPrefix:"DDB_"`
	SQLite string      `env:"SQLITE_PATH" envDefault:"archivist.db"`
}

type RedisConfig struct {
	Host  string `env:"HOST" envDefault:"localhost"`
	Port  string `env:"PORT" envDefault:"6379"`
	User  string `env:"USER"`
	Pass  string `env:"PASS"`
	TLS   bool   `env:"SSL"`
	DBNum int    `env:"DB_NUM"`
}

type DDBConfig struct {
	Endpoint    string `env:"ENDPOINT"`
	Table       string `env:"TABLE" envDefault:"archivist"`
	CreateTable bool   `env:"CREATE_TABLE"`
}

// Stores is the set of backends the loader and the engine run on.
type Stores struct {
	Archives ports.ArchiveStore
	Visits   ports.VisitLog
	Sites    ports.SiteStore
	Ledger   ports.InvalidationLedger
	Locker   ports.Locker
	Lazy     ports.LazyCache

	closers []func() error
}

// Close releases the connections opened for the stores.
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// ConfigFromEnv reads the backend selection from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, types.Err(types.ErrConfiguration, err, "parse backend env")
	}
	return cfg, nil
}

// FromEnv opens the stores selected by environment variables. seed populates a memory site
// store.
func FromEnv(ctx context.Context, seed []types.Site) (*Stores, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg, seed)
}

// Open opens the stores selected by cfg. Clients are shared between concerns using the same
// backend.
func Open(ctx context.Context, cfg Config, seed []types.Site) (*Stores, error) {
	o := &opener{cfg: cfg, ctx: ctx, stores: &Stores{}}
	steps := []func() error{o.archives, o.activity, o.sites, o.ledger, o.lock, o.cache}
	for _, step := range steps {
		if err := step(); err != nil {
			_ = o.stores.Close()
			return nil, err
		}
	}
	if ms, ok := o.stores.Sites.(*memory.SiteStore); ok {
		for _, site := range seed {
			if err := ms.PutSite(ctx, site); err != nil {
				return nil, err
			}
		}
	}
	log.WithFields(log.Fields{
		"archives": cfg.Archives,
		"activity": cfg.Activity,
		"sites":    cfg.Sites,
		"ledger":   cfg.Ledger,
		"lock":     cfg.Lock,
		"cache":    cfg.Cache,
	}).Info("backends ready")
	return o.stores, nil
}

type opener struct {
	cfg    Config
	ctx    context.Context
	stores *Stores

	redisCli *redis.Client
	ddbCli   *dynamodb.Client
	sqlite   *sqlite.Store
}

func (o *opener) archives() error {
	switch o.cfg.Archives {
	case BackendMemory:
		o.stores.Archives = memory.NewArchiveStore()
	case BackendRedis:
		cli, err := o.redis()
		if err != nil {
			return err
		}
		o.stores.Archives = redisbackend.NewArchiveStore(cli)
	case BackendDDB:
		cli, err := o.ddb()
		if err != nil {
			return err
		}
		o.stores.Archives = ddb.NewArchiveStore(o.cfg.DDB.Table, cli)
	case BackendSQLite:
		db, err := o.sqliteStore()
		if err != nil {
			return err
		}
		o.stores.Archives = db
	default:
		return unsupported("archive", o.cfg.Archives)
	}
	return nil
}

func (o *opener) activity() error {
	switch o.cfg.Activity {
	case BackendMemory:
		o.stores.Visits = memory.NewVisitLog()
	case BackendRedis:
		cli, err := o.redis()
		if err != nil {
			return err
		}
		o.stores.Visits = redisbackend.NewVisitLog(cli)
	case BackendSQLite:
		db, err := o.sqliteStore()
		if err != nil {
			return err
		}
		o.stores.Visits = db
	default:
		return unsupported("activity", o.cfg.Activity)
	}
	return nil
}

func (o *opener) sites() error {
	switch o.cfg.Sites {
	case BackendMemory:
		o.stores.Sites = memory.NewSiteStore()
	case BackendRedis:
		cli, err := o.redis()
		if err != nil {
			return err
		}
		o.stores.Sites = redisbackend.NewSiteStore(cli)
	case BackendDDB:
		cli, err := o.ddb()
		if err != nil {
			return err
		}
		o.stores.Sites = ddb.NewSiteStore(o.cfg.DDB.Table, cli)
	case BackendSQLite:
		db, err := o.sqliteStore()
		if err != nil {
			return err
		}
		o.stores.Sites = db
	default:
		return unsupported("site", o.cfg.Sites)
	}
	return nil
}

func (o *opener) ledger() error {
	switch o.cfg.Ledger {
	case BackendMemory:
		o.stores.Ledger = memory.NewLedger()
	case BackendRedis:
		cli, err := o.redis()
		if err != nil {
			return err
		}
		o.stores.Ledger = redisbackend.NewLedger(cli)
	case BackendDDB:
		cli, err := o.ddb()
		if err != nil {
			return err
		}
		o.stores.Ledger = ddb.NewLedger(o.cfg.DDB.Table, cli)
	default:
		return unsupported("ledger", o.cfg.Ledger)
	}
	return nil
}

func (o *opener) lock() error {
	switch o.cfg.Lock {
	case BackendMemory:
		o.stores.Locker = memory.NewLocker()
	case BackendRedis:
		cli, err := o.redis()
		if err != nil {
			return err
		}
		o.stores.Locker = redisbackend.NewLocker(cli)
	case BackendDDB:
		cli, err := o.ddb()
		if err != nil {
			return err
		}
		o.stores.Locker = ddb.NewLocker(o.cfg.DDB.Table, cli)
	default:
		return unsupported("lock", o.cfg.Lock)
	}
	return nil
}

func (o *opener) cache() error {
	switch o.cfg.Cache {
	case BackendMemory:
		o.stores.Lazy = cache.NewMemory()
	case BackendRedis:
		cli, err := o.redis()
		if err != nil {
			return err
		}
		o.stores.Lazy = redisbackend.NewLazyCache(cli)
	default:
		return unsupported("cache", o.cfg.Cache)
	}
	return nil
}

func unsupported(concern, backend string) error {
	return types.Err(types.ErrInvalidBackend, nil, "%s backend %q is not supported", concern, backend)
}

func (o *opener) redis() (*redis.Client, error) {
	if o.redisCli != nil {
		return o.redisCli, nil
	}
	cli, err := redisClient(o.ctx, o.cfg.Redis)
	if err != nil {
		return nil, err
	}
	o.redisCli = cli
	o.stores.closers = append(o.stores.closers, cli.Close)
	return cli, nil
}

func (o *opener) ddb() (*dynamodb.Client, error) {
	if o.ddbCli != nil {
		return o.ddbCli, nil
	}
	cli, err := ddbClient(o.ctx, o.cfg.DDB)
	if err != nil {
		return nil, err
	}
	if o.cfg.DDB.CreateTable {
		if err := ddb.EnsureTable(o.ctx, cli, o.cfg.DDB.Table); err != nil {
			return nil, err
		}
	}
	o.ddbCli = cli
	return cli, nil
}

func (o *opener) sqliteStore() (*sqlite.Store, error) {
	if o.sqlite != nil {
		return o.sqlite, nil
	}
	db, err := sqlite.Open(o.cfg.SQLite)
	if err != nil {
		return nil, err
	}
	o.sqlite = db
	o.stores.closers = append(o.stores.closers, db.Close)
	return db, nil
}

// ddbClient creates a DynamoDB client. A non-empty endpoint points it at a local emulator.
func ddbClient(ctx context.Context, cfg DDBConfig) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, types.Err(types.ErrConfiguration, err, "load aws config")
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			// This is used for testing only locally
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			if o.Region == "" {
				o.Region = "us-east-1"
			}
			o.Credentials = credentials.NewStaticCredentialsProvider("x", "x", "")
		}
	})
	return ddbClient, nil
}

// redisClient creates a Redis client and checks the connection.
func redisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	var tlsConfig *tls.Config
	if cfg.TLS {
		// Create a CA certificate pool and add our CA certificate
		caCerts := x509.NewCertPool()
		if !caCerts.AppendCertsFromPEM([]byte(AmazonRootCA1PEM)) {
			return nil, fmt.Errorf("failed to retrieve CA certificate")
		}
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCerts,
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:      fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Username:  cfg.User,
		Password:  cfg.Pass,
		DB:        cfg.DBNum,
		TLSConfig: tlsConfig,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return redisClient, nil
}
