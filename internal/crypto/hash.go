package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost - фиксированный work factor для хеширования паролей
const DefaultBcryptCost = 12

// ErrEmptyPassword возвращается при попытке захешировать пустой пароль
var ErrEmptyPassword = errors.New("password cannot be empty")

// PasswordHasher хеширует пароли и сравнивает их с сохраненным хешем
type PasswordHasher interface {
	// Hash возвращает хеш пароля
	Hash(password string) (string, error)

	// Compare возвращает (true, nil) при совпадении, (false, nil) при несовпадении
	// и ошибку только если сам хеш поврежден
	Compare(password, hash string) (bool, error)
}

// BcryptHasher реализует PasswordHasher поверх bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher создает hasher с указанным cost.
// Значение вне диапазона bcrypt заменяется на DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost возвращает используемый work factor
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash хеширует пароль
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Compare сравнивает пароль с bcrypt хешем за константное время
func (h *BcryptHasher) Compare(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, fmt.Errorf("failed to compare password: %w", err)
}
