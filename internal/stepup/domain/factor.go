package domain

import "fmt"

// FactorKind identifies one category of verification evidence.
type FactorKind string

const (
	FactorPassword          FactorKind = "password"
	FactorBiometricImage    FactorKind = "biometric_image"
	FactorEmailCode         FactorKind = "email_code"
	FactorAuthenticatorCode FactorKind = "authenticator_code"
	FactorAlternateIdentity FactorKind = "alternate_identity"
)

// VerificationFactor is a tagged factor value. Exactly one of Text or Image is
// populated depending on the kind. Factors are ephemeral: they live only for
// the duration of a single action attempt and are never persisted.
type VerificationFactor struct {
	Kind  FactorKind
	Text  string // password, email code, authenticator code, alternate identity
	Image []byte // biometric still frame
}

// PasswordFactor wraps a literal password entry.
func PasswordFactor(password string) VerificationFactor {
	return VerificationFactor{Kind: FactorPassword, Text: password}
}

// BiometricFactor wraps a captured still frame.
func BiometricFactor(image []byte) VerificationFactor {
	return VerificationFactor{Kind: FactorBiometricImage, Image: image}
}

// EmailCodeFactor wraps an emailed one-time code.
func EmailCodeFactor(code string) VerificationFactor {
	return VerificationFactor{Kind: FactorEmailCode, Text: code}
}

// AuthenticatorCodeFactor wraps a 6-digit TOTP entry.
func AuthenticatorCodeFactor(code string) VerificationFactor {
	return VerificationFactor{Kind: FactorAuthenticatorCode, Text: code}
}

// AlternateIdentityFactor wraps a 7-digit alternate identity number.
func AlternateIdentityFactor(id string) VerificationFactor {
	return VerificationFactor{Kind: FactorAlternateIdentity, Text: id}
}

// IsZero reports whether the factor carries no value.
func (f VerificationFactor) IsZero() bool {
	return f.Text == "" && len(f.Image) == 0
}

func (f VerificationFactor) String() string {
	// Never include the factor value itself; these end up in logs.
	return fmt.Sprintf("factor(%s)", f.Kind)
}
