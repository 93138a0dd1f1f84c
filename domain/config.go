package domain

// ConfigRepository stores application level values that are not user settings.
type ConfigRepository interface {
	// UpdateSPKI saves the Subject Public Key Information hash of the MITM
	// authority so that a reused database can tell whether the CA changed.
	UpdateSPKI(spki string) error

	// GetSPKI returns the saved SPKI hash, or "" when none was recorded.
	GetSPKI() (string, error)
}
