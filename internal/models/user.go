package models

import "time"

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time `json:"created_at"`    // время создания
	Email        string    `json:"email"`         // уникальный email
	PasswordHash string    `json:"-"`             // bcrypt хеш пароля, клиенту не отдается
	ID           int64     `json:"id"`            // автоинкрементный идентификатор
	TokenVersion int64     `json:"token_version"` // счетчик отзыва refresh токенов, только растет
}
