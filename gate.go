package authvault

import (
	"fmt"

	"github.com/iaminawe/authvault/strength"
)

// Finding describes one mandatory secret that failed the startup check.
type Finding struct {
	Name   string
	Level  strength.Level
	Reason string
	Fatal  bool
}

// VerifyProductionSecrets scores every mandatory secret and reports the
// ones that are forbidden placeholders or score below the medium tier.
// Pure: the caller decides whether findings abort startup.
func VerifyProductionSecrets(values map[string]string) []Finding {
	var findings []Finding
	for name, value := range values {
		if isForbiddenValue(value) {
			findings = append(findings, Finding{
				Name:   name,
				Reason: "matches a forbidden placeholder value",
				Fatal:  true,
			})
			continue
		}
		analysis := strength.Analyze(value)
		if !analysis.Strength.Meets(strength.Medium) {
			findings = append(findings, Finding{
				Name:   name,
				Level:  analysis.Strength,
				Reason: fmt.Sprintf("strength %s is below medium", analysis.Strength),
				Fatal:  true,
			})
		}
	}
	return findings
}

// mandatorySecrets collects the secrets the gate must score: the signing
// keys plus the encryption key when configured.
func mandatorySecrets(cfg *SecretsConfig) map[string]string {
	out := map[string]string{
		"signing key": cfg.SigningKey,
	}
	if cfg.RefreshSigningKey != "" {
		out["refresh signing key"] = cfg.RefreshSigningKey
	}
	if cfg.EncryptionKey != "" {
		out["encryption key"] = cfg.EncryptionKey
	}
	return out
}
