package service

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

// Verifier checks a username/password pair.
type Verifier interface {
	Verify(username, password string) bool
}

// usersFile:
//
//	users:
//	  admin: "$2a$10$..."
type usersFile struct {
	Users map[string]string `yaml:"users"`
}

// BcryptVerifier holds bcrypt hashes keyed by username.
type BcryptVerifier struct {
	hashes map[string][]byte
}

func NewBcryptVerifier(hashes map[string]string) *BcryptVerifier {
	v := &BcryptVerifier{hashes: make(map[string][]byte, len(hashes))}
	for user, h := range hashes {
		v.hashes[user] = []byte(h)
	}
	return v
}

// LoadUsers reads the YAML users file. A missing file yields a verifier
// that rejects everyone.
func LoadUsers(path string) (*BcryptVerifier, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewBcryptVerifier(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	var f usersFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode users file %s: %w", path, err)
	}
	return NewBcryptVerifier(f.Users), nil
}

func (v *BcryptVerifier) Verify(username, password string) bool {
	h, ok := v.hashes[username]
	if !ok {
		// то же время ответа, что и для известного пользователя
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(h, []byte(password)) == nil
}

func (v *BcryptVerifier) Len() int { return len(v.hashes) }

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.MinCost)

// HashPassword produces a users-file entry value.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
