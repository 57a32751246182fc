package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ProdDbId is the identifier for the production database
	ProdDbId = "old-cloud"

	// DefaultSubscribePath is the redirect target for users with no active subscription.
	DefaultSubscribePath = "/subscribe"
)

// CheckNotProdDB returns an error if dsn is empty or points at the production database.
// Call it before any test that writes to the database.
func CheckNotProdDB(dsn string) error {
	if dsn == "" {
		return errors.New("DatabaseURL is not configured")
	}
	if strings.Contains(dsn, ProdDbId) {
		return fmt.Errorf("tests aborted: DatabaseURL contains production identifier %s", ProdDbId)
	}
	return nil
}
