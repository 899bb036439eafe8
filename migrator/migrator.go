package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/merkle"
	"github.com/screwyprof/airdrop/pkg/pgxdb"
	tokenstore "github.com/screwyprof/airdrop/token/store/pgxstore"
)

// Migration constants
const (
	migrationsTableName = "schema_migrations"
	schemaHashPrefix    = "schema_only_"
	seededHashPrefix    = "seeded_demo_"
)

// SQL queries
const (
	initConfigSQL = `
		INSERT INTO airdrop_config (single_row, administrator, token, expiration_timestamp, merkle_root)
		VALUES (TRUE, $1, $2, $3::text::numeric, $4)
		ON CONFLICT (single_row) DO NOTHING`
)

// Migration-related errors
var (
	ErrMigrationExecution = errors.New("migration execution failed")
	ErrConfigOperation    = errors.New("config operation failed")
	ErrSeedFailed         = errors.New("demo seeding failed")
)

// SchemaMigrator applies only database schema migrations
// Used for production and tests that need schema-only setup
type SchemaMigrator struct {
	migrationsDir string
}

// NewSchemaMigrator creates a migrator that applies schema migrations only
func NewSchemaMigrator(migrationsDir string) *SchemaMigrator {
	return &SchemaMigrator{
		migrationsDir: migrationsDir,
	}
}

func (m *SchemaMigrator) Hash() (string, error) {
	baseHash, err := migrationsHash(m.migrationsDir)
	if err != nil {
		return "", err
	}
	return schemaHashPrefix + baseHash, nil
}

func (m *SchemaMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	return applyMigrations(db, m.migrationsDir)
}

// SeededMigrator applies schema migrations, then seeds a demo distribution:
// the config committing to allocations and a pool funded to cover them.
// Used for web API tests that need a claimable airdrop.
type SeededMigrator struct {
	migrationsDir string
	cfg           airdrop.Config
	address       common.Address
	allocations   []merkle.Allocation
}

// NewSeededMigrator creates a migrator that applies schema + seeds demo data.
// cfg.MerkleRoot is replaced by the root over allocations.
func NewSeededMigrator(migrationsDir string, address common.Address, cfg airdrop.Config, allocations []merkle.Allocation) *SeededMigrator {
	return &SeededMigrator{
		migrationsDir: migrationsDir,
		cfg:           cfg,
		address:       address,
		allocations:   allocations,
	}
}

func (m *SeededMigrator) Hash() (string, error) {
	baseHash, err := migrationsHash(m.migrationsDir)
	if err != nil {
		return "", err
	}

	tree, err := merkle.NewTree(m.allocations)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}

	return fmt.Sprintf("%s%s_%x_%x_%x_%x_%d", seededHashPrefix, baseHash,
		m.address, m.cfg.Administrator, m.cfg.Token, tree.Root(), m.cfg.ExpirationTimestamp), nil
}

func (m *SeededMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	if err := applyMigrations(db, m.migrationsDir); err != nil {
		return err
	}
	return m.seedDemoData(ctx, conf.URL())
}

// seedDemoData stores the demo config and mints the pool's funding
func (m *SeededMigrator) seedDemoData(ctx context.Context, dbURL string) error {
	tree, err := merkle.NewTree(m.allocations)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}

	cfg := m.cfg
	cfg.MerkleRoot = tree.Root()

	total := new(uint256.Int)
	for _, a := range m.allocations {
		total.Add(total, a.Amount)
	}

	slog.InfoContext(ctx, "🌱 Seeding demo database with a funded distribution",
		slog.Int("allocations", tree.Len()),
		slog.String("root", cfg.MerkleRoot.Hex()),
		slog.String("funding", total.Dec()))

	pool, err := pgxdb.NewConnection(ctx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := InitializeConfig(ctx, pool, cfg); err != nil {
		return err
	}

	ledger, _ := tokenstore.New(pool)
	if err := ledger.Mint(ctx, m.address, total); err != nil {
		return fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}

	slog.InfoContext(ctx, "✅ Demo database seeding completed successfully")
	return nil
}

// ApplyMigrations applies database migrations using sql-migrate with the provided pgx pool
func ApplyMigrations(pool *pgxpool.Pool, migrationsDir string) error {
	// Create sql.DB from the pgx pool for sql-migrate
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db, migrationsDir)
}

// InitializeConfig stores the distribution config unless one is already present
func InitializeConfig(ctx context.Context, pool *pgxpool.Pool, cfg airdrop.Config) error {
	_, err := pool.Exec(ctx, initConfigSQL,
		cfg.Administrator.Bytes(),
		cfg.Token.Bytes(),
		strconv.FormatUint(cfg.ExpirationTimestamp, 10),
		cfg.MerkleRoot.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigOperation, err)
	}
	return nil
}

func migrationsHash(migrationsDir string) (string, error) {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}
	sqlMigrator := sqlmigrator.New(source, migrationSet)

	baseHash, err := sqlMigrator.Hash()
	if err != nil {
		return "", fmt.Errorf("failed to calculate migration hash for %s: %w", migrationsDir, err)
	}
	return baseHash, nil
}

// applyMigrations applies database migrations using sql-migrate
func applyMigrations(db *sql.DB, migrationsDir string) error {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	_, err := migrationSet.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return nil
}
