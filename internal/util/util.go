package util

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Code alphabet without ambiguous characters (no 0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateVoucherCode returns a random human-presentable voucher code.
func GenerateVoucherCode() (string, error) {
	token, errToken := randomToken(8)
	if errToken != nil {
		return "", errToken
	}
	return "GIFT-" + token, nil
}

// randomToken returns a random uppercase token of the requested length.
func randomToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// MaskEmail obscures an address for logging, keeping the domain readable.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	domain := email[at:]
	if len(local) <= 2 {
		return "**" + domain
	}
	return fmt.Sprintf("%c***%c%s", local[0], local[len(local)-1], domain)
}
