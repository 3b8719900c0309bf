package digiflazz

import (
	"crypto/md5"
	"encoding/hex"
)

// SignDiscriminatorDeposit is the signature discriminator for balance checks.
// Transactional calls use the ref_id and PLN inquiries use the customer_no instead.
const SignDiscriminatorDeposit = "depo"

// Sign computes the request signature: hex(md5(username + apiKey + discriminator))
func Sign(username, apiKey, discriminator string) string {
	sum := md5.Sum([]byte(username + apiKey + discriminator))
	return hex.EncodeToString(sum[:])
}
