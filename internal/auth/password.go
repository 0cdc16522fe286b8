package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength 密码最短长度
const MinPasswordLength = 8

// legacyHashPattern 旧系统使用的无盐 SHA-256 十六进制摘要
var legacyHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// HashPassword 使用 bcrypt 生成密码哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 校验密码，同时兼容旧系统的 SHA-256 摘要
func VerifyPassword(password, hashed string) bool {
	if hashed == "" {
		return false
	}
	if isLegacyHash(hashed) {
		sum := sha256.Sum256([]byte(password))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(hashed))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// NeedsRehash 是否为需要升级的旧哈希
func NeedsRehash(hashed string) bool {
	return isLegacyHash(hashed)
}

func isLegacyHash(hashed string) bool {
	return legacyHashPattern.MatchString(strings.ToLower(hashed))
}
