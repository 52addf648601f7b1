package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"otp-auth/internal/domain"
	"otp-auth/internal/email"
	"otp-auth/internal/repository"
)

// AuthService coordina el login por password y el flujo de OTP por correo.
type AuthService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
	skipEmail   bool
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, skipEmail bool) *AuthService {
	return &AuthService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
		skipEmail:   skipEmail,
	}
}

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrWrongPassword    = errors.New("wrong password")
	ErrOTPInvalid       = errors.New("invalid otp")
	ErrEmailSendFailure = errors.New("email send failed")
	ErrInvalidEmail     = errors.New("invalid email")
)

// IssueResult indica si el código fue enviado por correo o solo generado
// (modo skip, sin conectividad SMTP).
type IssueResult struct {
	Delivered bool
}

// Authenticate verifica email y password contra la cuenta almacenada.
// No tiene efectos secundarios en caso de fallo.
func (s *AuthService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if password == "" {
		return domain.User{}, ErrWrongPassword
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrWrongPassword
	}
	return user, nil
}

// IssueOTP genera un código de 6 dígitos, lo persiste como código pendiente
// de la cuenta y lo despacha por correo. Debe llamarse solo después de un
// Authenticate exitoso. La escritura en la base ocurre antes de cualquier
// intento de envío; si el envío falla el código persistido queda vigente.
func (s *AuthService) IssueOTP(ctx context.Context, emailAddr string) (IssueResult, error) {
	if s.users == nil {
		return IssueResult{}, errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return IssueResult{}, ErrInvalidEmail
	}

	code, err := generateOTP()
	if err != nil {
		return IssueResult{}, err
	}

	if err := s.users.UpdateOTP(ctx, emailAddr, &code); err != nil {
		return IssueResult{}, err
	}

	if s.skipEmail {
		// Canal de diagnóstico para ambientes sin SMTP: el operador lee
		// el código desde el log.
		if s.logger != nil {
			s.logger.Info("otp generated (email skipped)",
				zap.String("email", emailAddr),
				zap.String("otp", code),
			)
		}
		return IssueResult{Delivered: false}, nil
	}

	if s.emailSender == nil {
		return IssueResult{}, ErrEmailSendFailure
	}
	if err := s.emailSender.SendLoginOTP(ctx, emailAddr, code); err != nil {
		if s.logger != nil {
			s.logger.Warn("send login otp failed", zap.Error(err), zap.String("email", emailAddr))
		}
		return IssueResult{}, fmt.Errorf("%w: %v", ErrEmailSendFailure, err)
	}

	if s.logger != nil {
		s.logger.Info("otp sent", zap.String("email", emailAddr))
	}
	return IssueResult{Delivered: true}, nil
}

// VerifyOTP valida el código enviado contra el pendiente de la cuenta y lo
// limpia si coincide. Cuenta inexistente, sin código pendiente o código
// distinto responden el mismo ErrOTPInvalid: no se revela cuál fue el caso.
func (s *AuthService) VerifyOTP(ctx context.Context, emailAddr, code string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if !isValidOTPCode(code) {
		return domain.User{}, ErrOTPInvalid
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrOTPInvalid
		}
		return domain.User{}, err
	}

	if user.OtpCode == nil {
		return domain.User{}, ErrOTPInvalid
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(*user.OtpCode)) != 1 {
		return domain.User{}, ErrOTPInvalid
	}

	if err := s.users.UpdateOTP(ctx, emailAddr, nil); err != nil {
		return domain.User{}, err
	}

	user.OtpCode = nil
	return user, nil
}

// GetUser devuelve la cuenta asociada al email.
func (s *AuthService) GetUser(ctx context.Context, emailAddr string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// generateOTP devuelve un código decimal uniforme en [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
