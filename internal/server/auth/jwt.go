// Package auth signs and verifies sender receipts. A receipt is an HS256
// JWT naming one letter, handed to the anonymous sender on submit so they
// can later look up the letter's status.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nsendoda/suggestion-box/internal/common"
)

type ReceiptClaims struct {
	jwt.RegisteredClaims
	LetterID int64  `json:"letter_id"`
	OwnerID  string `json:"owner_id"`
}

func GenerateReceipt(ownerID string, letterID int64, secretKey []byte, validity time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ReceiptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		LetterID: letterID,
		OwnerID:  ownerID,
	})
	return token.SignedString(secretKey)
}

// ParseReceipt verifies the signature and expiry of tokenString as of now
// and returns the owner and letter it names.
func ParseReceipt(tokenString string, secretKey []byte, now time.Time) (string, int64, error) {
	claims := &ReceiptClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", 0, common.ErrReceiptExpired
		}
		return "", 0, common.ErrInvalidReceipt
	}
	if !token.Valid || claims.OwnerID == "" || claims.LetterID <= 0 {
		return "", 0, common.ErrInvalidReceipt
	}
	return claims.OwnerID, claims.LetterID, nil
}
