package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts       *AccountRepository
	Tokens         *TokenRepository
	SecurityEvents *SecurityEventRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Accounts:       NewAccountRepository(pool),
		Tokens:         NewTokenRepository(pool),
		SecurityEvents: NewSecurityEventRepository(pool),
	}
}
