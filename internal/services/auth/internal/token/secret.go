package token

import "log/slog"

// MinSecretLength is the HS256 key size below which a secret is considered weak.
const MinSecretLength = 32

type secretProvider interface {
	Get() []byte
}

// SecretString holds the session signing key. It never prints or logs its value.
type SecretString struct {
	secret []byte
}

func NewSecretString(secret string) *SecretString {
	return &SecretString{
		secret: []byte(secret),
	}
}

func (s *SecretString) Get() []byte {
	return s.secret
}

func (s *SecretString) Weak() bool {
	return len(s.secret) < MinSecretLength
}

func (s *SecretString) String() string {
	return "[redacted]"
}

func (s *SecretString) GoString() string {
	return s.String()
}

func (s *SecretString) LogValue() slog.Value {
	return slog.StringValue(s.String())
}
