package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenShape(t *testing.T) {
	raw, prefix, hash, err := generate()
	require.NoError(t, err)

	assert.Len(t, prefix, tokenPrefixLen)
	assert.Equal(t, "cc_"+prefix, raw[:3+tokenPrefixLen])

	sum := sha256.Sum256([]byte(raw))
	assert.Equal(t, hex.EncodeToString(sum[:]), hash)

	got, err := splitPrefix(raw)
	require.NoError(t, err)
	assert.Equal(t, prefix, got)
}

func TestSplitPrefixRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"cc_short_x",
		"cc_0123456789abcdef", // no secret separator
		"xx_01234567_secret",
		"cc_01234567_",
	} {
		_, err := splitPrefix(raw)
		require.Error(t, err, "raw=%q", raw)
		assert.True(t, fault.Is(err, fault.KindAuth))
	}
}

func TestIdentityHasScope(t *testing.T) {
	id := &Identity{Scopes: []domain.Scope{domain.ScopeAgentRead, domain.ScopeCallsWrite}}
	assert.True(t, id.HasScope(domain.ScopeCallsWrite))
	assert.False(t, id.HasScope(domain.ScopeQAWrite))
}

func TestValidateAdminKey(t *testing.T) {
	secret := "admin-secret"
	signed := func(secret string, exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
		s, err := tok.SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	assert.NoError(t, ValidateAdminKey(signed(secret, time.Now().Add(time.Hour)), secret))

	err := ValidateAdminKey(signed("wrong-secret", time.Now().Add(time.Hour)), secret)
	assert.True(t, fault.Is(err, fault.KindAuth))

	err = ValidateAdminKey(signed(secret, time.Now().Add(-time.Hour)), secret)
	assert.True(t, fault.Is(err, fault.KindAuth))

	err = ValidateAdminKey("", secret)
	assert.True(t, fault.Is(err, fault.KindAuth))

	err = ValidateAdminKey(signed(secret, time.Now().Add(time.Hour)), "")
	assert.True(t, fault.Is(err, fault.KindFatal))
}
