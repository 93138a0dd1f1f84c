package db

import (
	"fmt"

	"github.com/2005czq/lunettes/domain"
)

var _ domain.ConfigRepository = (*Repository)(nil)

// UpdateSPKI implements the domain.ConfigRepository interface.
// It updates the SPKI hash value in the 'app' table of the database.
func (repo *Repository) UpdateSPKI(spki string) error {
	query := `UPDATE app SET spki = ?`
	_, err := repo.dbConn.Exec(query, spki)

	if err != nil {
		return fmt.Errorf("updating spki value %s: %w", spki, err)
	}

	return nil
}

// GetSPKI implements the domain.ConfigRepository interface.
func (repo *Repository) GetSPKI() (string, error) {
	var spki string
	err := repo.dbConn.Get(&spki, `SELECT spki FROM app LIMIT 1`)
	if err != nil {
		return "", fmt.Errorf("getting spki : %w", err)
	}
	return spki, nil
}
