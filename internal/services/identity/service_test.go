package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HarborBit/ShipPortal/internal/broker/messages"
	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	byTracking map[string]*models.Account
	byCustomer map[string]*models.Account
	byToken    map[string]*models.Account

	touchedID uint64
	touchErr  error
}

func (f *fakeRepo) FindAccountByTrackingNumber(ctx context.Context, n string) (*models.Account, error) {
	return f.byTracking[n], nil
}
func (f *fakeRepo) FindAccountByCustomerNumber(ctx context.Context, n string) (*models.Account, error) {
	return f.byCustomer[n], nil
}
func (f *fakeRepo) FindAccountByDirectToken(ctx context.Context, tok string) (*models.Account, error) {
	return f.byToken[tok], nil
}
func (f *fakeRepo) TouchLastLogin(ctx context.Context, id uint64) error {
	f.touchedID = id
	return f.touchErr
}

type fakeAudit struct {
	msgs []messages.PortalAudit
}

func (f *fakeAudit) Publish(ctx context.Context, m messages.PortalAudit) {
	f.msgs = append(f.msgs, m)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func activeAccount(t *testing.T, password string) *models.Account {
	return &models.Account{
		ID:              7,
		TrackingNumber:  "MSKU4603728",
		PasswordHash:    mustHash(t, password),
		IsActive:        true,
		HasPortalAccess: true,
	}
}

func TestResolve_TrackingNumberSuccess(t *testing.T) {
	acc := activeAccount(t, "customer123")
	r := &fakeRepo{byTracking: map[string]*models.Account{"MSKU4603728": acc}}
	au := &fakeAudit{}
	s := New(r, au)

	got, err := s.Resolve(context.Background(), models.IdentifierTrackingNumber, "msku4603728", "customer123")
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.ID)
	require.Equal(t, uint64(7), r.touchedID)
	require.NotNil(t, got.LastLogin)

	require.Len(t, au.msgs, 1)
	require.Equal(t, "success", au.msgs[0].Outcome)
	require.Equal(t, "MSKU4603728", au.msgs[0].Identifier)
}

func TestResolve_WrongPasswordVsNotFound(t *testing.T) {
	acc := activeAccount(t, "customer123")
	r := &fakeRepo{byTracking: map[string]*models.Account{"MSKU4603728": acc}}
	s := New(r, nil)

	_, err := s.Resolve(context.Background(), models.IdentifierTrackingNumber, "MSKU4603728", "wrong")
	kind, ok := AuthKindOf(err)
	require.True(t, ok)
	require.Equal(t, AuthInvalidCredentials, kind)

	_, err = s.Resolve(context.Background(), models.IdentifierTrackingNumber, "NOPE0000000", "whatever")
	kind, ok = AuthKindOf(err)
	require.True(t, ok)
	require.Equal(t, AuthNotFound, kind)

	// Никаких записей при неуспехе.
	require.Zero(t, r.touchedID)
}

func TestResolve_CustomerNumberUpperNormalized(t *testing.T) {
	acc := activeAccount(t, "pw")
	cn := "CUS-100500"
	acc.CustomerNumber = &cn
	r := &fakeRepo{byCustomer: map[string]*models.Account{"CUS-100500": acc}}
	s := New(r, nil)

	got, err := s.Resolve(context.Background(), models.IdentifierCustomerNumber, "cus-100500", "pw")
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.ID)
}

func TestResolve_AuditCarriesCanonicalIdentifier(t *testing.T) {
	acc := activeAccount(t, "pw")
	cn := "CUS-100500"
	acc.CustomerNumber = &cn
	r := &fakeRepo{byCustomer: map[string]*models.Account{"CUS-100500": acc}}
	au := &fakeAudit{}
	s := New(r, au)

	_, err := s.Resolve(context.Background(), models.IdentifierCustomerNumber, "  cus-100500 ", "pw")
	require.NoError(t, err)

	_, err = s.Resolve(context.Background(), models.IdentifierCustomerNumber, "nope-1", "pw")
	kind, ok := AuthKindOf(err)
	require.True(t, ok)
	require.Equal(t, AuthNotFound, kind)

	// В аудит уходит канонический идентификатор, каким бы его ни ввели.
	require.Len(t, au.msgs, 2)
	require.Equal(t, "CUS-100500", au.msgs[0].Identifier)
	require.Equal(t, "NOPE-1", au.msgs[1].Identifier)
}

func TestResolve_DirectTokenBypassesPassword(t *testing.T) {
	acc := activeAccount(t, "pw")
	tok := "tok_CaseSensitive"
	exp := time.Now().UTC().Add(time.Hour)
	acc.DirectAccessToken = &tok
	acc.TokenExpiresAt = &exp
	r := &fakeRepo{byToken: map[string]*models.Account{"tok_CaseSensitive": acc}}
	s := New(r, nil)

	got, err := s.Resolve(context.Background(), models.IdentifierDirectToken, "tok_CaseSensitive", "")
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.ID)

	// Токены регистрозависимы: другой регистр — другой токен.
	_, err = s.Resolve(context.Background(), models.IdentifierDirectToken, "TOK_CASESENSITIVE", "")
	kind, ok := AuthKindOf(err)
	require.True(t, ok)
	require.Equal(t, AuthNotFound, kind)
}

func TestResolve_DirectTokenExpired(t *testing.T) {
	acc := activeAccount(t, "pw")
	tok := "tok_old"
	exp := time.Now().UTC().Add(-time.Minute)
	acc.DirectAccessToken = &tok
	acc.TokenExpiresAt = &exp
	r := &fakeRepo{byToken: map[string]*models.Account{"tok_old": acc}}
	s := New(r, nil)

	_, err := s.Resolve(context.Background(), models.IdentifierDirectToken, "tok_old", "")
	kind, ok := AuthKindOf(err)
	require.True(t, ok)
	require.Equal(t, AuthTokenExpired, kind)
}

func TestResolve_DirectTokenNilExpiryIsValid(t *testing.T) {
	acc := activeAccount(t, "pw")
	tok := "tok_forever"
	acc.DirectAccessToken = &tok
	r := &fakeRepo{byToken: map[string]*models.Account{"tok_forever": acc}}
	s := New(r, nil)

	_, err := s.Resolve(context.Background(), models.IdentifierDirectToken, "tok_forever", "")
	require.NoError(t, err)
}

func TestResolve_GatingAfterCredentials(t *testing.T) {
	acc := activeAccount(t, "pw")
	acc.IsActive = false
	r := &fakeRepo{byTracking: map[string]*models.Account{"MSKU4603728": acc}}
	s := New(r, nil)

	// Неверный пароль на неактивном аккаунте — InvalidCredentials, не Inactive:
	// порядок проверок не должен подсказывать, что пароль верный.
	_, err := s.Resolve(context.Background(), models.IdentifierTrackingNumber, "MSKU4603728", "wrong")
	kind, _ := AuthKindOf(err)
	require.Equal(t, AuthInvalidCredentials, kind)

	_, err = s.Resolve(context.Background(), models.IdentifierTrackingNumber, "MSKU4603728", "pw")
	kind, _ = AuthKindOf(err)
	require.Equal(t, AuthInactive, kind)
}

func TestResolve_NoPortalAccess(t *testing.T) {
	acc := activeAccount(t, "pw")
	acc.HasPortalAccess = false
	r := &fakeRepo{byTracking: map[string]*models.Account{"MSKU4603728": acc}}
	au := &fakeAudit{}
	s := New(r, au)

	_, err := s.Resolve(context.Background(), models.IdentifierTrackingNumber, "MSKU4603728", "pw")
	kind, _ := AuthKindOf(err)
	require.Equal(t, AuthNoPortalAccess, kind)
	require.Len(t, au.msgs, 1)
	require.Equal(t, string(AuthNoPortalAccess), au.msgs[0].Outcome)
}

func TestResolve_TouchLastLoginFailureStillSucceeds(t *testing.T) {
	acc := activeAccount(t, "pw")
	r := &fakeRepo{
		byTracking: map[string]*models.Account{"MSKU4603728": acc},
		touchErr:   errors.New("db down"),
	}
	s := New(r, nil)

	got, err := s.Resolve(context.Background(), models.IdentifierTrackingNumber, "MSKU4603728", "pw")
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.ID)
	require.Nil(t, got.LastLogin)
}

func TestResolve_Validation(t *testing.T) {
	s := New(&fakeRepo{}, nil)

	_, err := s.Resolve(context.Background(), "passport", "x", "")
	require.Error(t, err)
	_, ok := AuthKindOf(err)
	require.False(t, ok)

	_, err = s.Resolve(context.Background(), models.IdentifierTrackingNumber, "  ", "")
	require.Error(t, err)
}

func TestHashPassword_RoundTrip(t *testing.T) {
	h, err := HashPassword("customer123")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("customer123")))
	require.Error(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("other")))
}
