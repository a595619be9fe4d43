package utils

import (
	"crypto/rand"
	"fmt"
)

// 紛らわしい文字(0/O, 1/I)を除いたコード用アルファベット。
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateAccessCode は参加用の6文字コードを生成する。
func GenerateAccessCode() (string, error) {
	return generateCode(6)
}

func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
