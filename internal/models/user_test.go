package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfile_Stage(t *testing.T) {
	tests := []struct {
		name    string
		profile UserProfile
		want    Stage
	}{
		{
			name:    "пустой профиль",
			profile: UserProfile{ID: "u1"},
			want:    StageNeedsContactInfo,
		},
		{
			name:    "нет телефона",
			profile: UserProfile{ID: "u1", NumeroCuenta: Ptr("12345"), Tipo: Ptr(RoleDriver)},
			want:    StageNeedsContactInfo,
		},
		{
			name:    "нет номера счёта",
			profile: UserProfile{ID: "u1", Telefono: Ptr("+59171234567"), Tipo: Ptr(RoleDriver)},
			want:    StageNeedsContactInfo,
		},
		{
			name:    "пустой телефон из пробелов",
			profile: UserProfile{ID: "u1", Telefono: Ptr("   "), NumeroCuenta: Ptr("12345")},
			want:    StageNeedsContactInfo,
		},
		{
			name:    "контакты есть, роли нет",
			profile: UserProfile{ID: "u1", Telefono: Ptr("+59171234567"), NumeroCuenta: Ptr("12345")},
			want:    StageNeedsRole,
		},
		{
			name:    "некорректная роль",
			profile: UserProfile{ID: "u1", Telefono: Ptr("+59171234567"), NumeroCuenta: Ptr("12345"), Tipo: Ptr(Role(7))},
			want:    StageNeedsRole,
		},
		{
			name:    "полный профиль",
			profile: UserProfile{ID: "u1", Telefono: Ptr("+59171234567"), NumeroCuenta: Ptr("12345"), Tipo: Ptr(RoleUnion)},
			want:    StageComplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.Stage())
		})
	}
}

func TestUserProfile_ContactInfoIndependentOfRole(t *testing.T) {
	for r := RolePassenger; r <= RoleUnion; r++ {
		noPhone := UserProfile{NumeroCuenta: Ptr("1234"), Tipo: Ptr(r)}
		noAccount := UserProfile{Telefono: Ptr("1234567"), Tipo: Ptr(r)}
		full := UserProfile{Telefono: Ptr("1234567"), NumeroCuenta: Ptr("1234"), Tipo: Ptr(r)}

		assert.False(t, noPhone.Complete(), "role %d", r)
		assert.False(t, noAccount.Complete(), "role %d", r)
		assert.True(t, full.Complete(), "role %d", r)
	}
}

func TestUserProfile_JSONRoundTripKeepsAbsentFields(t *testing.T) {
	created := time.Date(2024, 5, 10, 14, 30, 0, 123000000, time.UTC)

	tests := []struct {
		name    string
		profile UserProfile
	}{
		{
			name:    "только обязательные поля",
			profile: UserProfile{ID: "u1", Email: "ana@example.com", FullName: "Ana", CreatedAt: created},
		},
		{
			name: "все поля",
			profile: UserProfile{
				ID: "u2", Email: "luis@example.com", FullName: "Luis", CreatedAt: created,
				Tipo: Ptr(RoleOwner), Telefono: Ptr("+59170000000"), NumeroCuenta: Ptr("0001-22"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.profile)
			require.NoError(t, err)

			if tt.profile.Tipo == nil {
				assert.NotContains(t, string(raw), "tipo")
				assert.NotContains(t, string(raw), "telefono")
				assert.NotContains(t, string(raw), "numero_cuenta")
			}

			var restored UserProfile
			require.NoError(t, json.Unmarshal(raw, &restored))
			assert.Equal(t, tt.profile, restored)
		})
	}
}

func TestProfilePatch_Apply(t *testing.T) {
	p := &UserProfile{ID: "u1", FullName: "Ana", Telefono: Ptr("1234567")}
	patch := ProfilePatch{NumeroCuenta: Ptr("9999"), Tipo: Ptr(RolePassenger)}

	patch.Apply(p)

	assert.Equal(t, "Ana", p.FullName)
	assert.Equal(t, "1234567", *p.Telefono)
	assert.Equal(t, "9999", *p.NumeroCuenta)
	assert.Equal(t, RolePassenger, *p.Tipo)
	assert.True(t, ProfilePatch{}.Empty())
	assert.False(t, patch.Empty())
}

func TestUserProfile_CloneIsDeep(t *testing.T) {
	p := &UserProfile{ID: "u1", Telefono: Ptr("1234567"), Tipo: Ptr(RoleDriver)}
	c := p.Clone()
	*c.Telefono = "7654321"
	*c.Tipo = RoleOwner

	assert.Equal(t, "1234567", *p.Telefono)
	assert.Equal(t, RoleDriver, *p.Tipo)
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now}

	assert.True(t, s.IsExpired(now))
	assert.True(t, s.IsExpired(now.Add(time.Second)))
	assert.False(t, s.IsExpired(now.Add(-time.Second)))
}

func TestCard_DefaultColorsAndSaldo(t *testing.T) {
	a, b := DefaultColors(CardPhysical)
	assert.Equal(t, "#42af56", a)
	assert.Equal(t, "#2e8741", b)

	a, b = DefaultColors(CardVirtual)
	assert.Equal(t, "#0d5f2b", a)
	assert.Equal(t, "#064420", b)

	assert.False(t, CardKind("CREDITO").Valid())
	c := Card{}
	assert.Equal(t, "0.00", c.SaldoText())
}
