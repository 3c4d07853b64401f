// Package ntlm verifies SMB1 challenge responses. Hash derivation
// follows https://github.com/hirochachacha/go-smb2.
package ntlm

import (
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"

	"golang.org/x/crypto/md4"
)

// ntowfv1 is the NT hash: MD4 over the UTF-16LE password.
func ntowfv1(password []byte) []byte {
	h := md4.New()
	h.Write(password)
	return h.Sum(nil)
}

// ntowfv2Hash derives the NTLMv2 hash from the NT hash, the uppercased
// user name and the domain, both UTF-16LE.
func ntowfv2Hash(USER, hash, domain []byte) []byte {
	hm := hmac.New(md5.New, hash)
	hm.Write(USER)
	hm.Write(domain)
	return hm.Sum(nil)
}

// desl pads the 16-byte key to 21 bytes, splits it into three DES keys
// and encrypts the 8-byte challenge with each.
func desl(k, d []byte) ([]byte, error) {
	var key [21]byte
	copy(key[:], k)
	out := make([]byte, 24)
	for i := 0; i < 3; i++ {
		c, err := des.NewCipher(desKey(key[i*7 : i*7+7]))
		if err != nil {
			return nil, err
		}
		c.Encrypt(out[i*8:i*8+8], d)
	}
	return out, nil
}

// desKey spreads 7 key bytes over 8, seven key bits to a byte. The low
// bit of each byte, the DES parity bit, is not adjusted.
func desKey(k []byte) []byte {
	return []byte{
		k[0],
		k[0]<<7 | k[1]>>1,
		k[1]<<6 | k[2]>>2,
		k[2]<<5 | k[3]>>3,
		k[3]<<4 | k[4]>>4,
		k[4]<<3 | k[5]>>5,
		k[5]<<2 | k[6]>>6,
		k[6] << 1,
	}
}
