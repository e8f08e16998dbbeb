package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"sniperctl/internal/models"
	"sniperctl/pkg/utils"
)

// Незащищённые endpoint'ы аутентификации и операции над профилем

// authResponse - wire-формат ответов /auth/*
type authResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

// doPlain выполняет запрос МИМО session guard'а (логин ещё не состоялся)
func (c *Client) doPlain(ctx context.Context, path string, body interface{}) (*authResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, &models.TransientError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransientError{Err: err}
	}

	var ar authResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ar); err != nil {
			return nil, &models.TransientError{Err: fmt.Errorf("malformed auth payload: %w", err)}
		}
	}
	if !ar.Success {
		msg := ar.Message
		if msg == "" {
			msg = fmt.Sprintf("server returned %d", resp.StatusCode)
		}
		return nil, &models.CommandRejectedError{Command: path, Message: msg}
	}
	return &ar, nil
}

// Login аутентифицируется и кладёт полученный токен в session guard
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", &models.ValidationError{Message: "username and password are required"}
	}

	ar, err := c.doPlain(ctx, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	if ar.Token == "" {
		return "", &models.CommandRejectedError{Command: "/auth/login", Message: "server returned no token"}
	}

	if err := c.guard.SetToken(ar.Token); err != nil {
		return "", fmt.Errorf("failed to persist session token: %w", err)
	}
	return ar.Username, nil
}

// Register создаёт аккаунт. Пароль и email проверяются локально по тем же
// правилам, что и на сервере
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	if username == "" {
		return &models.ValidationError{Field: "username", Message: "required"}
	}
	if err := utils.ValidateEmail(email); err != nil {
		return &models.ValidationError{Field: "email", Message: err.Error()}
	}
	if err := utils.ValidatePasswordStrength(password); err != nil {
		return &models.ValidationError{Field: "password", Message: err.Error()}
	}

	_, err := c.doPlain(ctx, "/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	return err
}

// ProfileUpdate - изменяемые поля профиля. Пустые поля не отправляются
type ProfileUpdate struct {
	TelegramChatID  string `json:"telegram_chat_id,omitempty"`
	RealKey         string `json:"real_key,omitempty"`
	RealSecret      string `json:"real_secret,omitempty"`
	NewPassword     string `json:"new_password,omitempty"`
	CurrentPassword string `json:"current_password"`
}

// UpdateProfile меняет профиль. Требует текущий пароль. Если сервер
// вернул новый токен (смена пароля), сессия обновляется прозрачно
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (string, error) {
	if upd.CurrentPassword == "" {
		return "", &models.ValidationError{Field: "current_password", Message: "required"}
	}
	if upd.NewPassword != "" {
		if err := utils.ValidatePasswordStrength(upd.NewPassword); err != nil {
			return "", &models.ValidationError{Field: "new_password", Message: err.Error()}
		}
	}

	cr, err := c.command(ctx, "profile_update", "/profile/update", upd)
	if err != nil {
		return "", err
	}

	if cr.NewToken != "" {
		if err := c.guard.SetToken(cr.NewToken); err != nil {
			return "", fmt.Errorf("failed to persist rotated token: %w", err)
		}
	}
	return cr.Message, nil
}

// DeleteAccount удаляет аккаунт. Фраза подтверждения проверяется локально
// до сетевого вызова; успех сваливает сессию
func (c *Client) DeleteAccount(ctx context.Context, username, password, confirmPhrase string) error {
	if password == "" {
		return &models.ValidationError{Field: "password", Message: "required"}
	}
	if err := utils.ValidateConfirmPhrase(confirmPhrase, username); err != nil {
		return &models.ValidationError{Field: "confirm_phrase", Message: err.Error()}
	}

	_, err := c.command(ctx, "profile_delete", "/profile/delete", map[string]string{
		"password":       password,
		"confirm_phrase": confirmPhrase,
	})
	if err != nil {
		return err
	}

	c.guard.Invalidate()
	return nil
}
