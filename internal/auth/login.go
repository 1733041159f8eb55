package auth

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// operator is the single back-office account allowed to read stored reports
type operator struct {
	email        string
	passwordHash []byte
}

// operatorFromEnv reads AUTH_EMAIL and the bcrypt hash in AUTH_PASSWORD_HASH
func operatorFromEnv() (operator, bool) {
	email := strings.TrimSpace(os.Getenv("AUTH_EMAIL"))
	hash := strings.TrimSpace(os.Getenv("AUTH_PASSWORD_HASH"))
	if email == "" || hash == "" {
		return operator{}, false
	}
	return operator{email: email, passwordHash: []byte(hash)}, true
}

// LoginHandler exchanges operator credentials for a JWT
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, `{"error":"email and password are required"}`, http.StatusBadRequest)
		return
	}

	op, ok := operatorFromEnv()
	if !ok {
		http.Error(w, `{"error":"login is not configured"}`, http.StatusServiceUnavailable)
		return
	}

	if !strings.EqualFold(req.Email, op.email) ||
		bcrypt.CompareHashAndPassword(op.passwordHash, []byte(req.Password)) != nil {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	token, err := GenerateToken(op.email, op.email, "operator")
	if err != nil {
		http.Error(w, `{"error":"failed to generate token"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(LoginResponse{
		Token: token,
		Email: op.email,
		Role:  "operator",
	})
}
