package auth

import "golang.org/x/crypto/bcrypt"

// HashIntakeKey hashes a tenant intake key for storage. Intake keys guard
// the unauthenticated QR intake endpoint and are printed on the asset tag
// posters, so they are stored like passwords.
func HashIntakeKey(key string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareIntakeKey verifies a presented intake key against its hash.
func CompareIntakeKey(hashed, presented string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(presented))
}
