// Copyright (c) 2018 Shivaram Lingamneni
// released under the MIT license

package passwd

import (
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"
)

const (
	MinCost     = bcrypt.MinCost
	DefaultCost = 12 // ballpark: 250 msec on a modern Intel CPU
)

// we apply an initial pass of SHA3-512 before bcrypt, so that passphrases
// longer than the 80-character bcrypt limit (e.g., Diceware/XKCD-style
// passphrases) are still fully significant:
// https://blogs.dropbox.com/tech/2016/09/how-dropbox-securely-stores-your-passwords/

// GenerateFromPassword hashes a plaintext password or passphrase.
func GenerateFromPassword(password []byte, cost int) (result []byte, err error) {
	sum := sha3.Sum512(password)
	return bcrypt.GenerateFromPassword(sum[:], cost)
}

// CompareHashAndPassword checks a plaintext password against a stored hash.
func CompareHashAndPassword(hashedPassword, password []byte) error {
	sum := sha3.Sum512(password)
	return bcrypt.CompareHashAndPassword(hashedPassword, sum[:])
}
