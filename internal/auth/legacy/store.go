package legacy

import (
	"net/mail"
	"strings"

	"github.com/smallbiznis/academy/internal/auth/password"
	"github.com/spf13/viper"
)

// Account is a pre-migration local credential. These accounts predate the
// identity provider; the first successful login migrates them and the entry
// becomes dead weight.
type Account struct {
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"passwordHash"`
	FirstName    string `mapstructure:"firstName"`
	LastName     string `mapstructure:"lastName"`
}

// Store is a read-only view of the legacy account file. Nothing writes to it;
// migrated accounts live in the provider from then on.
type Store struct {
	accounts map[string]Account
}

// Load reads legacy accounts from the configured file. A missing or empty path
// yields an empty store, which disables transparent migration.
func Load(path string) (*Store, error) {
	store := &Store{accounts: make(map[string]Account)}
	if strings.TrimSpace(path) == "" {
		return store, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return store, nil
		}
		return nil, err
	}

	var accounts []Account
	if err := v.UnmarshalKey("accounts", &accounts); err != nil {
		return nil, err
	}
	for _, account := range accounts {
		email, err := normalizeEmail(account.Email)
		if err != nil {
			continue
		}
		account.Email = email
		store.accounts[email] = account
	}
	return store, nil
}

// NewStoreFromAccounts builds a store directly; used by tests.
func NewStoreFromAccounts(accounts []Account) *Store {
	store := &Store{accounts: make(map[string]Account, len(accounts))}
	for _, account := range accounts {
		email, err := normalizeEmail(account.Email)
		if err != nil {
			continue
		}
		account.Email = email
		store.accounts[email] = account
	}
	return store
}

func (s *Store) Lookup(email string) (Account, bool) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return Account{}, false
	}
	account, ok := s.accounts[normalized]
	return account, ok
}

// VerifyPassword checks a candidate password against the stored argon2id hash.
func (s *Store) VerifyPassword(email, candidate string) (Account, bool) {
	account, ok := s.Lookup(email)
	if !ok {
		return Account{}, false
	}
	if !password.Verify(candidate, account.PasswordHash) {
		return Account{}, false
	}
	return account, true
}

func (s *Store) Len() int {
	return len(s.accounts)
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}
