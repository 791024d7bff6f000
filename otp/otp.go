// Package otp implements the one-time-pad token codec used to escrow
// database credentials. Credentials are rendered as a textual bit-string,
// XOR-ed against a random pad of the same shape, and base64-wrapped for
// cookie transport. Only the pad is kept server-side; recovering the
// credentials requires both the client-held token and the stored pad.
//
// The construction is a straight stream cipher over a textual alphabet.
// Its security depends entirely on the pad never being reused and the
// cookie staying confidential; neither is enforced here. The package
// boundary exists so the whole scheme can be swapped for an authenticated
// primitive without touching the request gate.
package otp

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// dataMarker prefixes the plaintext so decryption with a wrong or stale
// pad is detectable.
const dataMarker = "Data:"

// ErrLengthMismatch is returned when the two XOR operands were not
// generated at the same bit length. The pad is always sized to the
// plaintext, so a mismatch means a tampered token or a foreign pad.
var ErrLengthMismatch = errors.New("otp: operand length mismatch")

// ErrInvalidCipherText is returned when decryption does not yield the
// expected data marker.
var ErrInvalidCipherText = errors.New("otp: invalid cipher text")

// InputData builds the canonical plaintext for a credential pair.
func InputData(username, password string) string {
	return dataMarker + username + "@" + password
}

// ToBits renders each character of s as its 8-bit code point, bytes
// joined by single spaces: "ab" -> "01100001 01100010".
func ToBits(s string) string {
	var sb strings.Builder
	for i, c := range s {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%08b", c)
	}
	return sb.String()
}

// FromBits is the inverse of ToBits: split on spaces, parse each group
// as a base-2 integer, map back to a character.
func FromBits(b string) (string, error) {
	var sb strings.Builder
	for _, group := range strings.Split(b, " ") {
		n, err := strconv.ParseUint(group, 2, 32)
		if err != nil {
			return "", fmt.Errorf("otp: parsing bit group %q: %w", group, err)
		}
		sb.WriteRune(rune(n))
	}
	return sb.String(), nil
}

// RandomBits returns n cryptographically random bits grouped into
// 8-bit bytes separated by spaces, matching the ToBits convention.
func RandomBits(n int) (string, error) {
	raw := make([]byte, (n+7)/8)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("otp: generating random bits: %w", err)
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		bit := (raw[i/8] >> (uint(i) % 8)) & 1
		sb.WriteByte('0' + bit)
		if (i+1)%8 == 0 && i != n-1 {
			sb.WriteByte(' ')
		}
	}
	return sb.String(), nil
}

// NewPad returns a random pad with exactly the shape of
// ToBits(inputData): same length, separators in the same positions.
// Encrypt demands this alignment; sizing the pad any other way breaks
// on multi-byte characters.
func NewPad(inputData string) (string, error) {
	bits := ToBits(inputData)
	raw := make([]byte, len(bits))
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("otp: generating pad: %w", err)
	}
	pad := make([]byte, len(bits))
	for i := range bits {
		if bits[i] == ' ' {
			pad[i] = ' '
			continue
		}
		pad[i] = '0' + (raw[i] & 1)
	}
	return string(pad), nil
}

// XORBits combines two bit-strings position by position. A space in a
// passes through unchanged so byte-boundary separators survive; equal
// characters emit '0', differing ones '1'. The shorter operand is
// left-padded with '0', though callers are expected to supply operands
// of equal original length (see Encrypt).
func XORBits(a, b string) string {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	a = padLeft(a, n)
	b = padLeft(b, n)
	res := make([]byte, n)
	for i := 0; i < n; i++ {
		switch {
		case a[i] == ' ':
			res[i] = ' '
		case a[i] == b[i]:
			res[i] = '0'
		default:
			res[i] = '1'
		}
	}
	return string(res)
}

func padLeft(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

// Encrypt XORs the bit rendering of inputData against pad and wraps the
// resulting textual bit-string in base64 for cookie transport. The pad
// must have been generated for a plaintext of exactly this length;
// separator alignment is only guaranteed then.
func Encrypt(inputData, pad string) (string, error) {
	bits := ToBits(inputData)
	if len(bits) != len(pad) {
		return "", ErrLengthMismatch
	}
	return base64.StdEncoding.EncodeToString([]byte(XORBits(bits, pad))), nil
}

// Decrypt reverses Encrypt given the raw (already base64-decoded) cipher
// bit-string and the session pad. Output lacking the data marker means a
// wrong pad, a tampered token, or an expired or foreign session.
func Decrypt(cipherBits, pad string) (string, error) {
	if len(cipherBits) != len(pad) {
		return "", ErrLengthMismatch
	}
	plain, err := FromBits(XORBits(cipherBits, pad))
	if err != nil {
		return "", ErrInvalidCipherText
	}
	if !strings.Contains(plain, dataMarker) {
		return "", ErrInvalidCipherText
	}
	return plain, nil
}

// SplitCredentials extracts the username and password from a decrypted
// plaintext. Valid only when stripping the marker leaves exactly one '@'
// separating the two parts.
func SplitCredentials(decrypted string) (username, password string, ok bool) {
	parts := strings.Split(strings.ReplaceAll(decrypted, dataMarker, ""), "@")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
