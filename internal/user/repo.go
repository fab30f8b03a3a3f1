package user

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
}

func Create(db *sql.DB, username, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Username: username, PasswordHash: string(hash)}
	_, err = db.Exec(`INSERT INTO users(id, username, password_hash) VALUES(?,?,?)`,
		u.ID, u.Username, u.PasswordHash)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func VerifyLogin(db *sql.DB, username, password string) (User, error) {
	var u User
	err := db.QueryRow(`SELECT id, username, password_hash FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, errors.New("invalid credentials")
	}
	return u, nil
}
